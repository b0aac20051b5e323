package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"stabledracor/internal/config"
	"stabledracor/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	local      *testsupport.FakeDraCor
	remote     *testsupport.FakeDraCor
	github     *testsupport.FakeGitHub
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("STABLEDRACOR_PASSWORD", "")
	t.Setenv("GITHUB_TOKEN", "")

	local := testsupport.NewFakeDraCor(t)
	remote := testsupport.NewFakeDraCor(t)
	gh := testsupport.NewFakeGitHub(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLocalAPI(local.URL(), "admin", ""),
		testsupport.WithSourceAPI(remote.URL()),
		testsupport.WithGitHub(gh.APIURL(), gh.RawURL()),
	)
	cfg.System.Name = "demo"
	cfg.Readiness.MaxAttempts = 1

	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		local:      local,
		remote:     remote,
		github:     gh,
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func seedRemote(f *testsupport.FakeDraCor) {
	f.AddCorpus("test", "Test Drama Corpus",
		testsupport.FakePlay{Name: "p1", TEI: testsupport.TEI("One")},
		testsupport.FakePlay{Name: "p2", TEI: testsupport.TEI("Two")},
		testsupport.FakePlay{Name: "p3", TEI: testsupport.TEI("Three")},
	)
}

func TestCLICopyRecordsManifestAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRemote(env.remote)

	out, _, err := runCLI(t, []string{"copy", "test", "--exclude", "p2", "--verify"}, env.configPath)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	requireContains(t, out, "p1", "p3", "excluded", "copied=2", "expected 2 plays, found 2")
	if got := env.local.Plays("test"); len(got) != 2 {
		t.Fatalf("local plays = %v", got)
	}

	out, _, err = runCLI(t, []string{"manifest", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest show: %v", err)
	}
	var doc struct {
		System struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"system"`
		Corpora map[string]json.RawMessage `json:"corpora"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode manifest: %v\n%s", err, out)
	}
	if doc.System.ID == "" || doc.System.Name != "demo" {
		t.Fatalf("unexpected identity %+v", doc.System)
	}
	if _, ok := doc.Corpora["test"]; !ok {
		t.Fatalf("corpus missing from manifest: %s", out)
	}

	out, _, err = runCLI(t, []string{"manifest", "labels", "--instruction"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest labels: %v", err)
	}
	if !strings.HasPrefix(out, "LABEL ") {
		t.Fatalf("expected LABEL instruction, got %q", out)
	}
	requireContains(t, out, env.cfg.Labels.Namespace+".corpora.test")

	out, _, err = runCLI(t, []string{"--json", "history", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []runView
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Operation != "copy" || runs[0].Copied != 2 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	out, _, err = runCLI(t, []string{"history", "show", runs[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "Operation: copy", "Corpus:    test", "p2")
}

func TestCLICopyJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRemote(env.remote)

	out, _, err := runCLI(t, []string{"--json", "copy", "test", "--include", "p3", "--name", "mine"}, env.configPath)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	var view outcomeView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode outcome: %v\n%s", err, out)
	}
	if view.Corpus != "mine" || view.Copied != 1 || view.Outcome != "done" {
		t.Fatalf("unexpected outcome %+v", view)
	}
	if view.RunID == "" {
		t.Fatal("expected journal run id")
	}
	if !env.local.HasCorpus("mine") {
		t.Fatal("expected renamed corpus in local instance")
	}
}

func TestCLICopyPartialFailureExitsWithDistinctCode(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRemote(env.remote)
	env.local.PutStatus["test/p2"] = http.StatusInternalServerError
	env.local.PutStatus["test/p3"] = http.StatusUnauthorized

	out, _, err := runCLI(t, []string{"copy", "test"}, env.configPath)
	if !errors.Is(err, errPartialFailure) {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if code := exitCode(err); code != exitPartialFailure {
		t.Fatalf("exit code = %d, want %d", code, exitPartialFailure)
	}
	requireContains(t, out,
		"Outcome: partial_failure",
		"Retry with: --include p2",
		"Check credentials or play files before retrying: p3",
	)
}

func TestExitCode(t *testing.T) {
	if exitCode(nil) != 0 {
		t.Fatal("nil error should exit 0")
	}
	if exitCode(errors.New("boom")) != exitFailure {
		t.Fatal("plain errors should exit 1")
	}
	if exitCode(fmt.Errorf("copy: %w", errPartialFailure)) != exitPartialFailure {
		t.Fatal("wrapped partial failure should exit 2")
	}
}

func TestCLICopyFailsWhenLocalUnavailable(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRemote(env.remote)
	env.cfg.Local.APIURL = "http://127.0.0.1:1/api/"
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"copy", "test"}, env.configPath)
	if err == nil {
		t.Fatal("expected copy to fail without a local API")
	}
	requireContains(t, err.Error(), "not ready")
}

func TestCLIRemoveCorpusKeepsManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRemote(env.remote)

	if _, _, err := runCLI(t, []string{"copy", "test"}, env.configPath); err != nil {
		t.Fatalf("copy: %v", err)
	}
	out, _, err := runCLI(t, []string{"remove", "corpus", "test"}, env.configPath)
	if err != nil {
		t.Fatalf("remove corpus: %v", err)
	}
	requireContains(t, out, "Removed test")
	if env.local.HasCorpus("test") {
		t.Fatal("corpus still present in local instance")
	}

	out, _, err = runCLI(t, []string{"remove", "corpus", "test"}, env.configPath)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	requireContains(t, out, "nothing removed")

	out, _, err = runCLI(t, []string{"manifest", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest show: %v", err)
	}
	requireContains(t, out, `"test"`)
}

func TestCLIServiceAndCompose(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"service", "set", "api", "--container", "dracor-api", "--image", "dracor/api:1.0"}, env.configPath)
	if err != nil {
		t.Fatalf("service set: %v", err)
	}
	requireContains(t, out, "Service api", "dracor/api:1.0")

	if _, _, err := runCLI(t, []string{"service", "set", "frontend", "--container", "dracor-frontend"}, env.configPath); err != nil {
		t.Fatalf("service set frontend: %v", err)
	}

	dir := t.TempDir()
	out, _, err = runCLI(t, []string{"compose", "--dir", dir}, env.configPath)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	requireContains(t, out, "compose.demo.yml", "Skipped frontend")

	data, err := os.ReadFile(filepath.Join(dir, "compose.demo.yml"))
	if err != nil {
		t.Fatalf("read compose file: %v", err)
	}
	requireContains(t, string(data), "dracor/api:1.0")
}

func TestCLIStatusReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if report.SystemID == "" {
		t.Fatal("expected a system id")
	}
	if len(report.Checks) == 0 {
		t.Fatal("expected preflight checks")
	}
	for _, check := range report.Checks {
		if check.Required && !check.Passed {
			t.Fatalf("required check failed: %+v", check)
		}
	}
}

func TestCLIWait(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"wait", "--interval", "0s", "--attempts", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	requireContains(t, out, "is available")
}

func TestCLILogsPrintsNewestFile(t *testing.T) {
	env := setupCLITestEnv(t)
	seedRemote(env.remote)

	if _, _, err := runCLI(t, []string{"copy", "test"}, env.configPath); err != nil {
		t.Fatalf("copy: %v", err)
	}
	out, _, err := runCLI(t, []string{"logs", "-n", "200"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "test")
}
