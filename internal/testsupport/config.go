package testsupport

import (
	"path/filepath"
	"testing"

	"stabledracor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Readiness polling is reduced to one immediate attempt.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Readiness.IntervalSeconds = 0
	cfgVal.Readiness.MaxAttempts = 1
	cfgVal.Local.RequestTimeout = 5

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithLocalAPI points the local API at url with the given credentials.
func WithLocalAPI(url, username, password string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Local.APIURL = url
		b.cfg.Local.Username = username
		b.cfg.Local.Password = password
	}
}

// WithSourceAPI points the default remote API at url.
func WithSourceAPI(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.APIURL = url
	}
}

// WithGitHub points the GitHub API and raw host at a fake.
func WithGitHub(apiURL, rawURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.GitHub.APIURL = apiURL
		b.cfg.GitHub.RawURL = rawURL
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
