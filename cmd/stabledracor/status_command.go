package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stabledracor/internal/preflight"
	"stabledracor/internal/system"
)

type statusReport struct {
	SystemID string             `json:"system_id"`
	Name     string             `json:"name,omitempty"`
	Corpora  int                `json:"corpora"`
	Services []string           `json:"services"`
	Checks   []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system identity and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				doc, err := sys.Manifest()
				if err != nil {
					return err
				}
				report := statusReport{
					SystemID: doc.System.ID,
					Name:     doc.System.Name,
					Corpora:  len(doc.Corpora),
					Services: doc.ServiceNames(),
					Checks:   preflight.RunAll(cmd.Context(), sys.Config()),
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "System:   %s\n", valueOrDash(report.SystemID))
				if report.Name != "" {
					fmt.Fprintf(out, "Name:     %s\n", report.Name)
				}
				fmt.Fprintf(out, "Corpora:  %s\n", strconv.Itoa(report.Corpora))
				fmt.Fprintln(out)

				rows := make([][]string, 0, len(report.Checks))
				for _, check := range report.Checks {
					rows = append(rows, []string{check.Name, statusLabel(check), check.Detail})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Check", "Status", "Detail"}, rows))
				if failed := preflight.Failed(report.Checks); len(failed) > 0 {
					return fmt.Errorf("%d required check(s) failed", len(failed))
				}
				return nil
			})
		},
	}
}

func statusLabel(r preflight.Result) string {
	switch {
	case r.Passed:
		return "ok"
	case r.Required:
		return "FAILED"
	default:
		return "warning"
	}
}

func valueOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
