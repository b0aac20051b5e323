// Package readiness waits for the local DraCor service to answer.
//
// The service starts asynchronously and signals nothing when it is up, so
// a Monitor polls a cheap probe on a fixed interval for a bounded number
// of attempts.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stabledracor/internal/logging"
	"stabledracor/internal/services"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 10
)

// Probe reports whether the service answers.
type Probe func(ctx context.Context) error

// Monitor polls a Probe.
type Monitor struct {
	Probe       Probe
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// New returns a monitor with the default interval and attempt budget.
func New(probe Probe, logger *slog.Logger) *Monitor {
	return &Monitor{
		Probe:       probe,
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
		Logger:      logging.NewComponentLogger(logger, "readiness"),
	}
}

// Wait probes up to MaxAttempts times and reports whether one probe
// succeeded. It returns false early when ctx is cancelled.
func (m *Monitor) Wait(ctx context.Context) bool {
	ok, _ := m.wait(ctx)
	return ok
}

// Err is Wait for callers that treat an unavailable service as fatal.
func (m *Monitor) Err(ctx context.Context) error {
	ok, last := m.wait(ctx)
	if ok {
		return nil
	}
	return services.Wrap(services.ErrConnectionUnavailable, "readiness", "wait",
		fmt.Sprintf("service not ready after %d attempts", m.attempts()), last)
}

func (m *Monitor) wait(ctx context.Context) (bool, error) {
	logger := m.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if m.Probe == nil {
		return false, fmt.Errorf("readiness probe is required")
	}
	sleep := m.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	attempts := m.attempts()
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = m.Probe(ctx)
		if last == nil {
			logger.Debug("service ready", logging.Int("attempt", attempt))
			return true, nil
		}
		logger.Debug("service not ready",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(last),
		)
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, m.Interval); err != nil {
			return false, err
		}
	}
	logging.WarnWithContext(logger, "service not ready", "service_unavailable",
		logging.Int("attempts", attempts),
		logging.Duration("interval", m.Interval),
		logging.Error(last),
		logging.String(logging.FieldErrorHint, "check that the DraCor API container is running"),
		logging.String(logging.FieldImpact, "operations against the local service will fail"),
	)
	return false, last
}

func (m *Monitor) attempts() int {
	if m.MaxAttempts < 1 {
		return 1
	}
	return m.MaxAttempts
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
