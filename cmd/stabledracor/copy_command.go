package main

import (
	"strings"

	"github.com/spf13/cobra"

	"stabledracor/internal/system"
)

func newCopyCommand(ctx *commandContext) *cobra.Command {
	var req system.CopyRequest
	var rename string

	cmd := &cobra.Command{
		Use:   "copy <corpus>",
		Short: "Copy a corpus from a DraCor API into the local system",
		Long: "Copy a corpus from a remote DraCor API into the local instance and record it in the manifest.\n" +
			"--source accepts \"production\", \"staging\" or an API URL.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Corpus = args[0]
			if name := strings.TrimSpace(rename); name != "" {
				req.Options.Overrides = map[string]any{"name": name}
			}
			return ctx.withSystem(func(sys *system.System) error {
				outcome, err := sys.Copy(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printOutcome(cmd, ctx, outcome)
			})
		},
	}

	cmd.Flags().StringVarP(&req.Source, "source", "s", "", "Source API (production, staging or URL)")
	cmd.Flags().StringVar(&rename, "name", "", "Store the corpus under a different name")
	addSelectionFlags(cmd, &req.Options)
	return cmd
}
