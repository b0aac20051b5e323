package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"stabledracor/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrFatalOperation, "metadata", "fetch", "corpus unavailable", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrFatalOperation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"metadata", "fetch", "corpus unavailable"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestOutcomeFor(t *testing.T) {
	if got := services.OutcomeFor(nil); got != services.OutcomeDone {
		t.Fatalf("expected done for nil error, got %s", got)
	}
	itemErr := fmt.Errorf("play x: %w", services.ErrItemCopy)
	if got := services.OutcomeFor(itemErr); got != services.OutcomePartialFailure {
		t.Fatalf("expected partial failure, got %s", got)
	}
	fatal := services.Wrap(services.ErrFatalOperation, "local", "create", "", errors.New("500"))
	if got := services.OutcomeFor(fatal); got != services.OutcomeFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestRetryable(t *testing.T) {
	if services.Retryable(nil) {
		t.Fatal("nil error should not be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrNotRegistered, "manifest", "exclude", "", nil)) {
		t.Fatal("not-registered error should not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrConnectionUnavailable, "readiness", "wait", "", nil)) {
		t.Fatal("connection errors should be retryable")
	}
}
