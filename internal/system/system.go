package system

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stabledracor/internal/config"
	"stabledracor/internal/dracor"
	"stabledracor/internal/github"
	"stabledracor/internal/journal"
	"stabledracor/internal/labels"
	"stabledracor/internal/logging"
	"stabledracor/internal/manifest"
	"stabledracor/internal/readiness"
	"stabledracor/internal/replication"
	"stabledracor/internal/services"
	"stabledracor/internal/statefile"
)

// Aliases accepted wherever a source API URL is expected.
const (
	SourceProduction = "production"
	SourceStaging    = "staging"
)

// System wires the collaborators of one stable system.
type System struct {
	cfg     *config.Config
	base    *slog.Logger
	logger  *slog.Logger
	now     func() time.Time
	local   *dracor.Client
	github  *github.Client
	state   *statefile.Store
	journal *journal.Store
	monitor *readiness.Monitor
	codec   labels.Codec
}

// Option configures a System.
type Option func(*System)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		if logger != nil {
			s.base = logger
		}
	}
}

// WithClock overrides the time source for manifest timestamps and journal runs.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMonitor replaces the readiness monitor built from the configuration.
func WithMonitor(m *readiness.Monitor) Option {
	return func(s *System) { s.monitor = m }
}

// Open builds a System from cfg, creating the state directory, the journal
// database and the manifest store when missing.
func Open(cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "system", "open", "config is required", nil)
	}
	s := &System{
		cfg:   cfg,
		base:  logging.NewNop(),
		now:   time.Now,
		codec: labels.Codec{Namespace: cfg.Labels.Namespace},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.base, "system")

	s.local = dracor.New(cfg.Local.APIURL,
		dracor.WithCredentials(cfg.Local.Username, cfg.Local.Password),
		dracor.WithTimeout(cfg.RequestTimeout()),
		dracor.WithLogger(s.base),
	)
	s.github = github.New(
		github.WithAPIURL(cfg.GitHub.APIURL),
		github.WithRawURL(cfg.GitHub.RawURL),
		github.WithToken(cfg.GitHub.Token),
		github.WithLogger(s.base),
	)
	if s.monitor == nil {
		s.monitor = readiness.New(s.local.Ping, s.base)
		s.monitor.Interval = cfg.ReadinessInterval()
		s.monitor.MaxAttempts = cfg.Readiness.MaxAttempts
	}

	state, err := statefile.New(cfg, s.base)
	if err != nil {
		return nil, err
	}
	s.state = state

	store, err := journal.Open(cfg)
	if err != nil {
		return nil, err
	}
	s.journal = store
	return s, nil
}

// Close releases the journal database.
func (s *System) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// Config returns the configuration the system was opened with.
func (s *System) Config() *config.Config { return s.cfg }

// Local returns the client of the local DraCor API.
func (s *System) Local() *dracor.Client { return s.local }

// Journal returns the replication journal.
func (s *System) Journal() *journal.Store { return s.journal }

// State returns the manifest state file.
func (s *System) State() *statefile.Store { return s.state }

// Codec returns the label codec for the configured namespace.
func (s *System) Codec() labels.Codec { return s.codec }

// Ready waits for the local API with the configured attempt budget.
func (s *System) Ready(ctx context.Context) error {
	return s.monitor.Err(ctx)
}

// Remote returns a client for a source DraCor API. ref is a URL or one of
// the aliases "production" and "staging"; empty means production.
func (s *System) Remote(ref string) *dracor.Client {
	return dracor.New(s.resolveSourceURL(ref),
		dracor.WithTimeout(s.cfg.RequestTimeout()),
		dracor.WithLogger(s.base),
	)
}

func (s *System) resolveSourceURL(ref string) string {
	switch strings.ToLower(strings.TrimSpace(ref)) {
	case "", SourceProduction:
		return s.cfg.Source.APIURL
	case SourceStaging:
		return s.cfg.Source.StagingURL
	default:
		return strings.TrimSpace(ref)
	}
}

func (s *System) manifestOptions() []manifest.Option {
	return []manifest.Option{
		manifest.WithLogger(s.base),
		manifest.WithClock(s.now),
		manifest.WithIdentity(s.cfg.System.Name, s.cfg.System.Description),
	}
}

// Manifest returns the live manifest without contacting any service. A
// system that never ran an operation gets a new, unsaved identity.
func (s *System) Manifest() (manifest.Document, error) {
	m, err := s.state.Current(s.manifestOptions()...)
	if err != nil {
		return manifest.Document{}, err
	}
	return m.Snapshot(), nil
}

// update runs fn against the live manifest under the state-file lock and
// saves the manifest afterwards, even when fn reports an operation error.
// Registrations made before a fatal failure stay recorded.
func (s *System) update(ctx context.Context, fn func(*manifest.Manifest) error) (manifest.Document, error) {
	var opErr error
	doc, err := s.state.Update(ctx, func(m *manifest.Manifest) error {
		opErr = fn(m)
		return nil
	}, s.manifestOptions()...)
	if err != nil {
		return manifest.Document{}, err
	}
	return doc, opErr
}

func (s *System) pipeline(m *manifest.Manifest) *replication.Pipeline {
	return replication.New(s.local, m, replication.WithLogger(s.base))
}

// record writes a run to the journal. Journal failures never fail the
// operation.
func (s *System) record(ctx context.Context, run journal.Run) string {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}
	id, err := s.journal.Record(ctx, run)
	if err != nil {
		logging.WarnWithContext(s.logger, "failed to record run in journal", "journal_write_failed",
			logging.Corpus(run.Corpus),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run is missing from history"),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("check %s", s.journal.Path())),
		)
		return ""
	}
	return id
}
