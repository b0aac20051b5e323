package testsupport

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

type fakeRepo struct {
	commit string
	files  map[string]string
}

// FakeGitHub serves the subset of the GitHub REST API and the raw host
// used to import corpus repositories. Files live in a single commit per
// repository.
type FakeGitHub struct {
	Server *httptest.Server

	// RateRemaining is sent as X-RateLimit-Remaining when non-negative.
	RateRemaining int
	// RawStatus forces raw downloads of a path to answer with a status.
	RawStatus map[string]int

	mu       sync.Mutex
	repos    map[string]*fakeRepo
	blobs    map[string]string
	authSeen []string
}

// NewFakeGitHub starts the fake and closes it when the test ends.
func NewFakeGitHub(t testing.TB) *FakeGitHub {
	t.Helper()
	f := &FakeGitHub{
		RateRemaining: -1,
		RawStatus:     map[string]int{},
		repos:         map[string]*fakeRepo{},
		blobs:         map[string]string{},
	}
	r := mux.NewRouter()
	api := r.PathPrefix("/api/repos/{owner}/{repo}").Subrouter()
	api.HandleFunc("/commits", f.handleCommits).Methods(http.MethodGet)
	api.HandleFunc("/commits/{ref}", f.handleCommit).Methods(http.MethodGet)
	api.HandleFunc("/git/trees/{sha}", f.handleTree).Methods(http.MethodGet)
	api.HandleFunc("/git/blobs/{sha}", f.handleBlob).Methods(http.MethodGet)
	r.HandleFunc("/api/rate_limit", f.handleRateLimit).Methods(http.MethodGet)
	r.PathPrefix("/raw/").HandlerFunc(f.handleRaw).Methods(http.MethodGet)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// APIURL is the fake API root.
func (f *FakeGitHub) APIURL() string { return f.Server.URL + "/api/" }

// RawURL is the fake raw host root.
func (f *FakeGitHub) RawURL() string { return f.Server.URL + "/raw/" }

// AddRepo publishes files (path to content) as commit of owner/name.
// Paths may be nested one folder deep.
func (f *FakeGitHub) AddRepo(owner, name, commit string, files map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[string]string, len(files))
	for p, content := range files {
		copied[p] = content
		f.blobs[blobSHA(p, content)] = content
	}
	f.repos[owner+"/"+name] = &fakeRepo{commit: commit, files: copied}
}

// AuthorizationHeaders returns the Authorization headers seen on API calls.
func (f *FakeGitHub) AuthorizationHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.authSeen)
}

// observe records the Authorization header and sets rate-limit headers.
// Callers hold f.mu.
func (f *FakeGitHub) observe(w http.ResponseWriter, r *http.Request) {
	f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
	if f.RateRemaining >= 0 {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(f.RateRemaining))
	}
}

func (f *FakeGitHub) repo(w http.ResponseWriter, r *http.Request) (*fakeRepo, bool) {
	vars := mux.Vars(r)
	f.observe(w, r)
	repo, ok := f.repos[vars["owner"]+"/"+vars["repo"]]
	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return nil, false
	}
	return repo, true
}

func (f *FakeGitHub) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe(w, r)
	writeJSON(w, map[string]any{"resources": map[string]any{}})
}

func (f *FakeGitHub) handleCommits(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repo(w, r)
	if !ok {
		return
	}
	writeJSON(w, []map[string]any{{"sha": repo.commit}})
}

func (f *FakeGitHub) handleCommit(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repo(w, r)
	if !ok {
		return
	}
	if mux.Vars(r)["ref"] != repo.commit {
		http.Error(w, `{"message":"No commit found"}`, http.StatusNotFound)
		return
	}
	treeURL := f.treeURL(r, "root")
	writeJSON(w, map[string]any{
		"sha":    repo.commit,
		"commit": map[string]any{"tree": map[string]any{"sha": "root", "url": treeURL}},
	})
}

func (f *FakeGitHub) handleTree(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	repo, ok := f.repo(w, r)
	if !ok {
		return
	}
	sha := mux.Vars(r)["sha"]
	folder := ""
	if sha != "root" {
		folder = strings.TrimPrefix(sha, "dir-")
	}

	seenDirs := map[string]bool{}
	entries := []map[string]any{}
	paths := make([]string, 0, len(repo.files))
	for p := range repo.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		dir, file := path.Split(p)
		dir = strings.TrimSuffix(dir, "/")
		switch {
		case folder == "" && dir == "":
			entries = append(entries, f.blobEntry(r, file, p, repo.files[p]))
		case folder == "" && dir != "":
			top := strings.SplitN(dir, "/", 2)[0]
			if !seenDirs[top] {
				seenDirs[top] = true
				entries = append(entries, map[string]any{"path": top, "type": "tree", "sha": "dir-" + top, "url": f.treeURL(r, "dir-"+top)})
			}
		case dir == folder:
			entries = append(entries, f.blobEntry(r, file, p, repo.files[p]))
		}
	}
	writeJSON(w, map[string]any{"sha": sha, "truncated": false, "tree": entries})
}

func (f *FakeGitHub) handleBlob(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repo(w, r); !ok {
		return
	}
	content, ok := f.blobs[mux.Vars(r)["sha"]]
	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	// GitHub wraps the payload at 60 columns.
	var wrapped strings.Builder
	for len(encoded) > 60 {
		wrapped.WriteString(encoded[:60] + "\n")
		encoded = encoded[60:]
	}
	wrapped.WriteString(encoded)
	writeJSON(w, map[string]any{"sha": mux.Vars(r)["sha"], "encoding": "base64", "content": wrapped.String()})
}

func (f *FakeGitHub) handleRaw(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/raw/"), "/", 4)
	if len(parts) != 4 {
		http.NotFound(w, r)
		return
	}
	if status := f.RawStatus[parts[3]]; status != 0 {
		http.Error(w, "forced", status)
		return
	}
	repo, ok := f.repos[parts[0]+"/"+parts[1]]
	if !ok || parts[2] != repo.commit {
		http.NotFound(w, r)
		return
	}
	content, ok := repo.files[parts[3]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = io.WriteString(w, content)
}

func (f *FakeGitHub) blobEntry(r *http.Request, name, fullPath, content string) map[string]any {
	sha := blobSHA(fullPath, content)
	vars := mux.Vars(r)
	return map[string]any{
		"path": name,
		"type": "blob",
		"sha":  sha,
		"url":  f.Server.URL + "/api/repos/" + vars["owner"] + "/" + vars["repo"] + "/git/blobs/" + sha,
	}
}

func (f *FakeGitHub) treeURL(r *http.Request, sha string) string {
	vars := mux.Vars(r)
	return f.Server.URL + "/api/repos/" + vars["owner"] + "/" + vars["repo"] + "/git/trees/" + sha
}

func blobSHA(p, content string) string {
	sum := sha1.Sum([]byte(p + "\x00" + content))
	return hex.EncodeToString(sum[:])
}
