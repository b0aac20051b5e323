package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stabledracor/internal/journal"
	"stabledracor/internal/services"
	"stabledracor/internal/system"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded replication runs",
	}
	cmd.AddCommand(newHistoryListCommand(ctx))
	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryStatsCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

type runView struct {
	ID        string   `json:"id"`
	Operation string   `json:"operation"`
	Corpus    string   `json:"corpus"`
	Source    string   `json:"source"`
	State     string   `json:"state"`
	Outcome   string   `json:"outcome"`
	Copied    int      `json:"copied"`
	Failed    int      `json:"failed"`
	Excluded  int      `json:"excluded"`
	Expected  *int     `json:"expected,omitempty"`
	Actual    *int     `json:"actual,omitempty"`
	Error     string   `json:"error,omitempty"`
	Started   string   `json:"started_at"`
	Duration  string   `json:"duration"`
	Plays     []string `json:"failed_plays,omitempty"`
}

func newRunView(run journal.Run) runView {
	return runView{
		ID:        run.ID,
		Operation: string(run.Operation),
		Corpus:    run.Corpus,
		Source:    run.Source,
		State:     run.State,
		Outcome:   string(run.Outcome),
		Copied:    run.Copied,
		Failed:    run.Failed,
		Excluded:  run.Excluded,
		Expected:  run.Expected,
		Actual:    run.Actual,
		Error:     run.Error,
		Started:   run.StartedAt.UTC().Format(time.RFC3339),
		Duration:  run.Duration().Round(time.Millisecond).String(),
	}
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var corpus string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				runs, err := sys.Journal().List(cmd.Context(), corpus, limit)
				if err != nil {
					return err
				}
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, newRunView(run))
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						v.ID, v.Started, v.Operation, v.Corpus, v.Outcome,
						strconv.Itoa(v.Copied), strconv.Itoa(v.Failed),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Started", "Operation", "Corpus", "Outcome", "Copied", "Failed"}, rows, 5, 6))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&corpus, "corpus", "", "Only runs of this corpus")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one run with its per-play results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				run, err := sys.Journal().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				view := newRunView(run)
				view.Plays, err = sys.Journal().FailedPlays(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"run": view, "items": run.Items})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:       %s\n", view.ID)
				fmt.Fprintf(out, "Operation: %s\n", view.Operation)
				fmt.Fprintf(out, "Corpus:    %s\n", view.Corpus)
				fmt.Fprintf(out, "Source:    %s\n", valueOrDash(view.Source))
				fmt.Fprintf(out, "Outcome:   %s (%s)\n", view.Outcome, view.State)
				fmt.Fprintf(out, "Started:   %s (%s)\n", view.Started, view.Duration)
				if view.Expected != nil && view.Actual != nil {
					fmt.Fprintf(out, "Verified:  expected %d, found %d\n", *view.Expected, *view.Actual)
				}
				if view.Error != "" {
					fmt.Fprintf(out, "Error:     %s\n", view.Error)
				}
				if len(run.Items) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(run.Items))
				for _, item := range run.Items {
					rows = append(rows, []string{strconv.Itoa(item.Position + 1), item.Play, item.Status, item.Error})
				}
				fmt.Fprintln(out, renderTable(out, []string{"#", "Play", "Status", "Error"}, rows, 0))
				return nil
			})
		},
	}
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count runs by outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				stats, err := sys.Journal().Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				for _, outcome := range []services.Outcome{services.OutcomeDone, services.OutcomePartialFailure, services.OutcomeFailed} {
					fmt.Fprintf(out, "%-16s %d\n", outcome, stats[outcome])
				}
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSystem(func(sys *system.System) error {
				keep := sys.Config().Logging.RetentionDays
				if cmd.Flags().Changed("days") {
					keep = days
				}
				if keep <= 0 {
					return fmt.Errorf("retention must be positive, got %d days", keep)
				}
				cutoff := time.Now().AddDate(0, 0, -keep)
				removed, err := sys.Journal().Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": removed, "cutoff": cutoff.UTC().Format(time.RFC3339)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s) older than %d days\n", removed, keep)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Keep runs of the last N days (default: logging retention)")
	return cmd
}
