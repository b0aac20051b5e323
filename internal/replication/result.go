package replication

import (
	"stabledracor/internal/services"
)

// State is a step of a copy operation.
type State string

const (
	StateInit                   State = "init"
	StateMetadataFetched        State = "metadata_fetched"
	StateLocalCollectionEnsured State = "local_collection_ensured"
	StateRegistered             State = "registered"
	StateItemsEnumerated        State = "items_enumerated"
	StatePerItemCopy            State = "per_item_copy"
	StateVerified               State = "verified"
	StateDone                   State = "done"
	StatePartialFailure         State = "partial_failure"
	StateFailed                 State = "failed"
)

// ItemStatus is the outcome for one roster entry.
type ItemStatus string

const (
	ItemCopied   ItemStatus = "copied"
	ItemExcluded ItemStatus = "excluded"
	ItemFailed   ItemStatus = "failed"
	// ItemSkipped marks items outside a non-empty include list.
	ItemSkipped ItemStatus = "skipped"
)

// ItemResult is the outcome of one roster entry, in roster order.
type ItemResult struct {
	Item   Item
	Status ItemStatus
	Err    error
}

// Verification holds the figures of the post-copy count check.
type Verification struct {
	Performed bool
	// Reachable is false when the local corpus could not be fetched.
	Reachable bool
	Expected  int
	Actual    int
	// Counted is false when only reachability was checked.
	Counted bool
}

// Matches reports whether the check passed.
func (v Verification) Matches() bool {
	if !v.Performed {
		return true
	}
	if !v.Reachable {
		return false
	}
	return !v.Counted || v.Expected == v.Actual
}

// Result describes a finished copy operation.
type Result struct {
	Corpus  string
	Source  string
	State   State
	Outcome services.Outcome
	// Created is false when the local corpus already existed.
	Created      bool
	Items        []ItemResult
	Copied       int
	Failed       []string
	Excluded     []string
	Verification Verification
	// Trace lists the states passed through, in order.
	Trace []State
}

// OK reports whether the operation finished without any failure.
func (r Result) OK() bool {
	return r.Outcome == services.OutcomeDone
}

func (r *Result) enter(state State) {
	r.State = state
	r.Trace = append(r.Trace, state)
}

func (r *Result) finish() {
	if len(r.Failed) == 0 && r.Verification.Matches() {
		r.enter(StateDone)
		r.Outcome = services.OutcomeDone
		return
	}
	r.enter(StatePartialFailure)
	r.Outcome = services.OutcomePartialFailure
}
