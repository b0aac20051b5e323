package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stabledracor/internal/replication"
	"stabledracor/internal/services"
	"stabledracor/internal/system"
)

type itemView struct {
	Name   string `json:"name"`
	Ref    string `json:"ref,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	// Retryable marks failures that may succeed on a plain retry.
	Retryable bool `json:"retryable,omitempty"`
}

type verificationView struct {
	Reachable bool `json:"reachable"`
	Counted   bool `json:"counted"`
	Expected  int  `json:"expected"`
	Actual    int  `json:"actual"`
}

type outcomeView struct {
	RunID        string            `json:"run_id,omitempty"`
	Corpus       string            `json:"corpus"`
	Source       string            `json:"source"`
	State        string            `json:"state"`
	Outcome      string            `json:"outcome"`
	Created      bool              `json:"created"`
	Copied       int               `json:"copied"`
	Failed       []string          `json:"failed"`
	Excluded     []string          `json:"excluded"`
	Verification *verificationView `json:"verification,omitempty"`
	Trace        []string          `json:"trace"`
	Items        []itemView        `json:"items"`
}

func newOutcomeView(o system.Outcome) outcomeView {
	view := outcomeView{
		RunID:    o.RunID,
		Corpus:   o.Corpus,
		Source:   o.Source,
		State:    string(o.State),
		Outcome:  string(o.Outcome),
		Created:  o.Created,
		Copied:   o.Copied,
		Failed:   append([]string{}, o.Failed...),
		Excluded: append([]string{}, o.Excluded...),
		Trace:    make([]string, 0, len(o.Trace)),
		Items:    make([]itemView, 0, len(o.Items)),
	}
	for _, state := range o.Trace {
		view.Trace = append(view.Trace, string(state))
	}
	for _, item := range o.Items {
		iv := itemView{Name: item.Item.Name, Ref: item.Item.Ref, Status: string(item.Status)}
		if item.Err != nil {
			iv.Error = item.Err.Error()
			iv.Retryable = services.Retryable(item.Err)
		}
		view.Items = append(view.Items, iv)
	}
	if v := o.Verification; v.Performed {
		view.Verification = &verificationView{
			Reachable: v.Reachable,
			Counted:   v.Counted,
			Expected:  v.Expected,
			Actual:    v.Actual,
		}
	}
	return view
}

// printOutcome reports a replication. A partial failure is printed in full
// and then returned as errPartialFailure so the exit status shows it.
func printOutcome(cmd *cobra.Command, ctx *commandContext, o system.Outcome) error {
	view := newOutcomeView(o)
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, view); err != nil {
			return err
		}
		return view.err()
	}

	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(view.Items))
	for i, item := range view.Items {
		rows = append(rows, []string{strconv.Itoa(i + 1), item.Name, item.Status, item.Error})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(out, []string{"#", "Play", "Status", "Error"}, rows, 0))
	}

	created := "existing"
	if view.Created {
		created = "created"
	}
	fmt.Fprintf(out, "Corpus %s (%s) from %s\n", view.Corpus, created, view.Source)
	fmt.Fprintf(out, "Outcome: %s  copied=%d failed=%d excluded=%d\n",
		view.Outcome, view.Copied, len(view.Failed), len(view.Excluded))
	if v := view.Verification; v != nil {
		switch {
		case !v.Reachable:
			fmt.Fprintln(out, "Verification: local corpus not reachable")
		case v.Counted:
			fmt.Fprintf(out, "Verification: expected %d plays, found %d\n", v.Expected, v.Actual)
		default:
			fmt.Fprintln(out, "Verification: local corpus reachable")
		}
	}
	if len(view.Failed) > 0 {
		fmt.Fprintf(out, "Failed plays: %s\n", strings.Join(view.Failed, ", "))
	}
	retry, fix := view.failuresByRetry()
	if len(retry) > 0 {
		fmt.Fprintf(out, "Retry with: --include %s\n", strings.Join(retry, ","))
	}
	if len(fix) > 0 {
		fmt.Fprintf(out, "Check credentials or play files before retrying: %s\n", strings.Join(fix, ", "))
	}
	if view.RunID != "" {
		fmt.Fprintf(out, "Run: %s\n", view.RunID)
	}
	return view.err()
}

// failuresByRetry splits failed plays into those worth a plain retry and
// those that need a fix first.
func (v outcomeView) failuresByRetry() (retry, fix []string) {
	for _, item := range v.Items {
		if item.Status != string(replication.ItemFailed) {
			continue
		}
		if item.Retryable {
			retry = append(retry, item.Name)
		} else {
			fix = append(fix, item.Name)
		}
	}
	return retry, fix
}

func (v outcomeView) err() error {
	if v.Outcome != string(services.OutcomePartialFailure) {
		return nil
	}
	return fmt.Errorf("%w: corpus %s, %d of %d plays failed", errPartialFailure, v.Corpus, len(v.Failed), v.Copied+len(v.Failed))
}

// addSelectionFlags registers the flags shared by every replication command.
func addSelectionFlags(cmd *cobra.Command, opts *replication.Options) {
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "Plays to leave out (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "Copy only these plays (repeatable)")
	cmd.Flags().BoolVar(&opts.MetadataOnly, "metadata-only", false, "Create and register the corpus without copying plays")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "Compare the local play count after copying")
}
