package preflight

import (
	"context"

	"stabledracor/internal/config"
	"stabledracor/internal/dracor"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	Required bool
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	state := CheckDirectoryAccess("State directory", cfg.Paths.StateDir)
	state.Required = true
	results = append(results, state)

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	local := CheckDraCor(ctx, "Local DraCor API", dracor.New(cfg.Local.APIURL))
	local.Required = true
	results = append(results, local)

	if cfg.Source.APIURL != "" {
		results = append(results, CheckDraCor(ctx, "Source DraCor API", dracor.New(cfg.Source.APIURL)))
	}

	results = append(results, CheckGitHub(ctx, cfg.GitHub.APIURL, cfg.GitHub.Token))
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
