package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stabledracor/internal/compose"
	"stabledracor/internal/system"
)

func newServiceCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Record the containers of the system",
	}

	var container string
	var image string
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Record the container and image of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				entry, err := sys.SetService(cmd.Context(), args[0], container, image)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entry)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service %s: container=%s image=%s\n",
					args[0], valueOrDash(entry.Container), valueOrDash(entry.Image))
				return nil
			})
		},
	}
	set.Flags().StringVar(&container, "container", "", "Container name")
	set.Flags().StringVar(&image, "image", "", "Image reference")
	cmd.AddCommand(set)
	return cmd
}

func newImageCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Work with saved container images",
	}

	var req system.ImageRequest
	label := &cobra.Command{
		Use:   "label <tarball>",
		Short: "Write the manifest into the labels of a saved image",
		Long: "Refresh the manifest, then write it as labels into an image saved with `docker save`.\n" +
			"Load the result with `docker load`.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Source = args[0]
			return ctx.withSystem(func(sys *system.System) error {
				res, err := sys.LabelImage(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"tag":        res.Tag,
						"base_image": res.BaseImage,
						"labels":     res.Labels,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Tagged %s (base %s)\n", res.Tag, valueOrDash(res.BaseImage))
				fmt.Fprintf(out, "Wrote %d labels\n", len(res.Labels))
				return nil
			})
		},
	}
	label.Flags().StringVar(&req.Service, "service", "", "Service the image belongs to (default: api)")
	label.Flags().StringVarP(&req.Destination, "output", "o", "", "Write to another tarball")
	label.Flags().StringVar(&req.Tag, "tag", "", "Tag of the new image")
	cmd.AddCommand(label)
	return cmd
}

func newComposeCommand(ctx *commandContext) *cobra.Command {
	var output string
	var dir string
	var opts compose.Options

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Write a compose file for the recorded services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				res, err := sys.WriteCompose(output, dir, opts)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"path": res.Path, "skipped": res.Skipped})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", res.Path)
				for _, name := range res.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s (no image)\n", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Compose file path")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory for the default file name")
	cmd.Flags().StringVar(&opts.APIBase, "api-base", "", "API base URL exposed to the frontend")
	cmd.Flags().StringVar(&opts.FrontendAPI, "frontend-api", "", "Internal API URL used by the frontend proxy")
	cmd.Flags().StringVar(&opts.ExistPassword, "exist-password", "", "eXist-db admin password")
	cmd.Flags().StringVar(&opts.TriplestorePassword, "triplestore-password", "", "Triplestore admin password")
	return cmd
}
