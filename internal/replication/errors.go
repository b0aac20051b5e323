package replication

import (
	"fmt"

	"stabledracor/internal/services"
)

// FatalOperationError aborts a copy operation before any item is copied.
type FatalOperationError struct {
	Corpus string
	Stage  State
	Err    error
}

func (e *FatalOperationError) Error() string {
	target := e.Corpus
	if target == "" {
		target = "corpus"
	}
	return fmt.Sprintf("copy %s aborted at %s: %v", target, e.Stage, e.Err)
}

func (e *FatalOperationError) Unwrap() []error {
	return []error{services.ErrFatalOperation, e.Err}
}

// ItemCopyError records why one item could not be copied. It is stored in
// the item result and never returned from Run.
type ItemCopyError struct {
	Corpus string
	Item   string
	// Step is "fetch" or "store".
	Step string
	Err  error
}

func (e *ItemCopyError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Step, e.Corpus, e.Item, e.Err)
}

func (e *ItemCopyError) Unwrap() []error {
	return []error{services.ErrItemCopy, e.Err}
}
