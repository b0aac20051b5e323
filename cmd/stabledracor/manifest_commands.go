package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"stabledracor/internal/labels"
	"stabledracor/internal/manifest"
	"stabledracor/internal/statefile"
	"stabledracor/internal/system"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and maintain the system manifest",
	}
	cmd.AddCommand(newManifestShowCommand(ctx))
	cmd.AddCommand(newManifestLabelsCommand(ctx))
	cmd.AddCommand(newManifestRefreshCommand(ctx))
	cmd.AddCommand(newManifestValidateCommand(ctx))
	cmd.AddCommand(newManifestFromImageCommand(ctx))
	cmd.AddCommand(newManifestRestoreCommand(ctx))
	return cmd
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the manifest as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				doc, err := sys.Manifest()
				if err != nil {
					return err
				}
				return writeJSON(cmd, doc)
			})
		},
	}
}

func newManifestLabelsCommand(ctx *commandContext) *cobra.Command {
	var instruction bool

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the manifest as container labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				set, err := sys.Labels()
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, set)
				}
				out := cmd.OutOrStdout()
				if instruction {
					fmt.Fprintln(out, labels.Instruction(set))
					return nil
				}
				keys := make([]string, 0, len(set))
				for k := range set {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "%s=%s\n", k, set[k])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&instruction, "instruction", false, "Print a Dockerfile LABEL instruction")
	return cmd
}

func newManifestRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Update API versions and play counts from the local instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				doc, err := sys.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, doc)
				}
				printManifestSummary(cmd, doc)
				return nil
			})
		},
	}
}

func newManifestValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a manifest file against the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.ManifestPath()
			if len(args) == 1 {
				path = args[0]
			}
			store, err := statefile.Open(path, nil)
			if err != nil {
				return err
			}
			doc, exists, err := store.Load()
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("no manifest at %s", path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Manifest %s is valid (system %s)\n", path, valueOrDash(doc.System.ID))
			return nil
		},
	}
}

func newManifestFromImageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "from-image <tarball>",
		Short: "Decode the manifest stored in the labels of a saved image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				doc, err := sys.ManifestFromImage(args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, doc)
			})
		},
	}
}

func newManifestRestoreCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <tarball>",
		Short: "Replace the local manifest with the one stored in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				doc, err := sys.Restore(cmd.Context(), args[0], force)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, doc)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored manifest of system %s\n", doc.System.ID)
				printManifestSummary(cmd, doc)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing manifest")
	return cmd
}

func printManifestSummary(cmd *cobra.Command, doc manifest.Document) {
	out := cmd.OutOrStdout()
	if names := doc.ServiceNames(); len(names) > 0 {
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			svc := doc.Services[name]
			rows = append(rows, []string{name, valueOrDash(svc.Image), valueOrDash(svc.Version), valueOrDash(svc.ExistDB)})
		}
		fmt.Fprintln(out, renderTable(out, []string{"Service", "Image", "Version", "eXist-db"}, rows))
	}
	names := doc.CorpusNames()
	if len(names) == 0 {
		fmt.Fprintln(out, "No corpora recorded")
		return
	}
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		entry := doc.Corpora[name]
		plays := "-"
		if entry.NumOfPlays != nil {
			plays = fmt.Sprint(*entry.NumOfPlays)
		}
		rows = append(rows, []string{name, plays, strings.Join(entry.SourceNames(), ", ")})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Corpus", "Plays", "Sources"}, rows, 1))
}
