package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stabledracor/internal/replication"
	"stabledracor/internal/system"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Import corpora or plays from other sources",
	}
	cmd.AddCommand(newAddRepoCommand(ctx))
	cmd.AddCommand(newAddDirCommand(ctx))
	cmd.AddCommand(newAddPlayCommand(ctx))
	return cmd
}

func newAddRepoCommand(ctx *commandContext) *cobra.Command {
	var req system.RepositoryRequest

	cmd := &cobra.Command{
		Use:   "repo <[owner/]name>",
		Short: "Import a corpus from a GitHub repository",
		Long: "Import the TEI files of a GitHub repository at a commit. The owner defaults to\n" +
			"[github] owner. Files that fail to load are recorded as excluded.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Repository = args[0]
			return ctx.withSystem(func(sys *system.System) error {
				outcome, err := sys.AddRepository(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printOutcome(cmd, ctx, outcome)
			})
		},
	}

	cmd.Flags().StringVar(&req.Commit, "commit", "", "Commit to import (default: latest)")
	cmd.Flags().StringVar(&req.DataFolder, "data-folder", "", "Folder holding the TEI files")
	cmd.Flags().BoolVar(&req.SkipCorpusXML, "no-corpus-xml", false, "Do not read corpus.xml for metadata")
	addSelectionFlags(cmd, &req.Options)
	return cmd
}

func newAddDirCommand(ctx *commandContext) *cobra.Command {
	var req system.DirectoryRequest
	var title string
	var description string

	cmd := &cobra.Command{
		Use:   "dir <directory> <corpus>",
		Short: "Import the TEI files of a local directory as a corpus",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Dir = args[0]
			req.Corpus = args[1]
			meta := map[string]any{}
			if v := strings.TrimSpace(title); v != "" {
				meta["title"] = v
			}
			if v := strings.TrimSpace(description); v != "" {
				meta["description"] = v
			}
			if len(meta) > 0 {
				req.Metadata = meta
			}
			return ctx.withSystem(func(sys *system.System) error {
				outcome, err := sys.AddDirectory(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printOutcome(cmd, ctx, outcome)
			})
		},
	}

	cmd.Flags().StringVar(&req.Pattern, "pattern", "", "Glob selecting the files (default: *.xml)")
	cmd.Flags().StringVar(&title, "title", "", "Corpus title")
	cmd.Flags().StringVar(&description, "description", "", "Corpus description")
	addSelectionFlags(cmd, &req.Options)
	return cmd
}

func newAddPlayCommand(ctx *commandContext) *cobra.Command {
	var req replication.PlayVersionRequest
	var repo string

	cmd := &cobra.Command{
		Use:   "play <[owner/]repo> <file>",
		Short: "Add one play from a repository at a commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo = args[0]
			req.Filename = args[1]
			return ctx.withSystem(func(sys *system.System) error {
				parsed, err := sys.ParseRepository(repo)
				if err != nil {
					return err
				}
				req.Repository = parsed
				res, err := sys.AddPlay(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, res)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Added play %s to corpus %s\n", res.Play, res.Corpus)
				fmt.Fprintf(out, "Source: %s (commit %s)\n", res.Source, res.Commit)
				fmt.Fprintf(out, "Corpus created: %s\n", yesNo(res.CreatedCorpus))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Commit, "commit", "", "Commit to read the file from (default: latest)")
	cmd.Flags().StringVar(&req.DataFolder, "data-folder", "", "Folder holding the TEI files")
	cmd.Flags().StringVar(&req.Corpus, "corpus", "", "Target corpus (default: repository name)")
	cmd.Flags().StringVar(&req.Play, "play", "", "Play name (default: file name)")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete corpora or plays from the local instance",
		Long:  "Delete corpora or plays from the local instance. The manifest keeps its entries.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "corpus <corpus>",
		Short: "Delete a corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				removed, err := sys.RemoveCorpus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printRemoval(cmd, ctx, args[0], removed)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "play <corpus> <play>",
		Short: "Delete a play",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				removed, err := sys.RemovePlay(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printRemoval(cmd, ctx, args[0]+"/"+args[1], removed)
			})
		},
	})
	return cmd
}

func printRemoval(cmd *cobra.Command, ctx *commandContext, target string, removed bool) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, map[string]any{"target": target, "removed": removed})
	}
	if removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", target)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s not found; nothing removed\n", target)
	}
	return nil
}
