package journal

import (
	"errors"
	"time"

	"stabledracor/internal/replication"
	"stabledracor/internal/services"
)

// Operation names the command that produced a run.
type Operation string

const (
	OperationCopy      Operation = "copy"
	OperationRepo      Operation = "add-repo"
	OperationDirectory Operation = "add-dir"
	OperationPlay      Operation = "add-play"
)

// Run is one recorded replication.
type Run struct {
	ID        string
	Operation Operation
	Corpus    string
	Source    string
	State     string
	Outcome   services.Outcome
	Copied    int
	Failed    int
	Excluded  int
	// Expected and Actual are set when a counted verification ran.
	Expected   *int
	Actual     *int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	Items      []RunItem
}

// RunItem is the result of one play within a run.
type RunItem struct {
	Position int
	Play     string
	Status   string
	Error    string
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromResult converts a pipeline result and its error into a run.
func FromResult(op Operation, res replication.Result, runErr error, started time.Time) Run {
	run := Run{
		Operation: op,
		Corpus:    res.Corpus,
		Source:    res.Source,
		State:     string(res.State),
		Outcome:   res.Outcome,
		Copied:    res.Copied,
		Failed:    len(res.Failed),
		Excluded:  len(res.Excluded),
		StartedAt: started,
	}
	if run.Outcome == "" {
		run.Outcome = services.OutcomeFor(runErr)
	}
	if runErr != nil {
		run.Error = runErr.Error()
		var fatal *replication.FatalOperationError
		if errors.As(runErr, &fatal) && run.Corpus == "" {
			run.Corpus = fatal.Corpus
		}
	}
	if v := res.Verification; v.Performed && v.Counted && v.Reachable {
		expected, actual := v.Expected, v.Actual
		run.Expected = &expected
		run.Actual = &actual
	}
	for i, item := range res.Items {
		entry := RunItem{Position: i, Play: item.Item.Name, Status: string(item.Status)}
		if item.Err != nil {
			entry.Error = item.Err.Error()
		}
		run.Items = append(run.Items, entry)
	}
	return run
}
