package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFatalOperation marks a pipeline failure that aborts the whole run.
	ErrFatalOperation = errors.New("fatal operation")
	// ErrItemCopy marks a single item that could not be copied.
	ErrItemCopy = errors.New("item copy failed")
	// ErrNotRegistered marks a manifest mutation against an unknown corpus or source.
	ErrNotRegistered = errors.New("not registered")
	// ErrConnectionUnavailable marks a service that never answered its readiness probe.
	ErrConnectionUnavailable = errors.New("connection unavailable")
	// ErrStructuralDecode marks a label set that cannot be turned back into a manifest.
	ErrStructuralDecode = errors.New("structural decode error")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTransient     = errors.New("transient failure")
)

// Outcome classifies how a replication run ended.
type Outcome string

const (
	OutcomeDone           Outcome = "done"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeFailed         Outcome = "failed"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// OutcomeFor maps a run error to the outcome recorded in the journal.
// A nil error is a clean run; item-level failures are partial.
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeDone
	case errors.Is(err, ErrItemCopy):
		return OutcomePartialFailure
	default:
		return OutcomeFailed
	}
}

// Retryable reports whether a failure is worth another attempt without
// operator intervention.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotRegistered), errors.Is(err, ErrStructuralDecode):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
