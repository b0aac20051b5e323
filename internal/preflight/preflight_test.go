package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stabledracor/internal/dracor"
	"stabledracor/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDraCor_OK(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	result := CheckDraCor(context.Background(), "local", dracor.New(fake.URL()))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "API 1.1.0") || !strings.Contains(result.Detail, "eXist-db 6.2.0") {
		t.Fatalf("detail = %q", result.Detail)
	}
}

func TestCheckDraCor_Unavailable(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	fake.InfoFailures = 1
	result := CheckDraCor(context.Background(), "local", dracor.New(fake.URL()))
	if result.Passed {
		t.Fatal("expected failure while the API answers 503")
	}
}

func TestCheckGitHub_Anonymous(t *testing.T) {
	fake := testsupport.NewFakeGitHub(t)
	fake.RateRemaining = 42

	result := CheckGitHub(context.Background(), fake.APIURL(), "")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "42 requests left") || !strings.Contains(result.Detail, "GITHUB_TOKEN") {
		t.Fatalf("detail = %q", result.Detail)
	}
}

func TestCheckGitHub_Token(t *testing.T) {
	fake := testsupport.NewFakeGitHub(t)
	result := CheckGitHub(context.Background(), fake.APIURL(), "secret")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if got := fake.AuthorizationHeaders(); len(got) != 1 || got[0] != "Bearer secret" {
		t.Fatalf("authorization headers = %v", got)
	}
}

func TestCheckGitHub_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckGitHub(context.Background(), srv.URL, "bad")
	if result.Passed {
		t.Fatal("expected failure for bad token")
	}
}

func TestCheckGitHub_MissingURL(t *testing.T) {
	result := CheckGitHub(context.Background(), "", "")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	local := testsupport.NewFakeDraCor(t)
	gh := testsupport.NewFakeGitHub(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLocalAPI(local.URL(), "admin", ""),
		testsupport.WithSourceAPI(""),
		testsupport.WithGitHub(gh.APIURL(), gh.RawURL()),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	// state dir, log dir, local API, GitHub
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected required failures: %+v", failed)
	}
}

func TestFailedReportsOnlyRequired(t *testing.T) {
	gh := testsupport.NewFakeGitHub(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLocalAPI("http://127.0.0.1:1/api/", "admin", ""),
		testsupport.WithSourceAPI(""),
		testsupport.WithGitHub(gh.APIURL(), gh.RawURL()),
	)
	results := RunAll(context.Background(), cfg)
	failed := Failed(results)
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
	}
	if len(failed) != 2 || names[0] != "State directory" || names[1] != "Local DraCor API" {
		t.Fatalf("failed = %v", names)
	}
}
