package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// FakePlay is one play served by FakeDraCor.
type FakePlay struct {
	Name string
	TEI  string
}

type fakeCorpus struct {
	meta  map[string]any
	order []string
	tei   map[string]string
}

// RecordedRequest is one request seen by a fake server.
type RecordedRequest struct {
	Method string
	Path   string
}

// FakeDraCor is an in-memory DraCor API served over httptest. Its zero
// configuration accepts the default admin/empty credentials.
type FakeDraCor struct {
	Server   *httptest.Server
	Username string
	Password string
	Version  string
	ExistDB  string

	mu       sync.Mutex
	corpora  map[string]*fakeCorpus
	requests []RecordedRequest

	// InfoFailures makes the first n /info requests answer 503.
	InfoFailures int
	// CorpusStatus forces GET /corpora/{name} to answer with a status.
	CorpusStatus map[string]int
	// CreateStatus forces POST /corpora to answer with a status.
	CreateStatus int
	// GetStatus forces GET .../tei of "corpus/play" to answer with a status.
	GetStatus map[string]int
	// PutStatus forces PUT .../tei of "corpus/play" to answer with a status.
	PutStatus map[string]int
	// SilentDrop accepts PUT .../tei of "corpus/play" without storing it.
	SilentDrop map[string]bool
}

// NewFakeDraCor starts a fake API and closes it when the test ends.
func NewFakeDraCor(t testing.TB) *FakeDraCor {
	t.Helper()
	f := &FakeDraCor{
		Username:     "admin",
		Version:      "1.1.0",
		ExistDB:      "6.2.0",
		corpora:      make(map[string]*fakeCorpus),
		CorpusStatus: map[string]int{},
		GetStatus:    map[string]int{},
		PutStatus:    map[string]int{},
		SilentDrop:   map[string]bool{},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/info", f.handleInfo).Methods(http.MethodGet)
	api.HandleFunc("/corpora", f.handleList).Methods(http.MethodGet)
	api.HandleFunc("/corpora", f.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/corpora/{corpus}", f.handleCorpus).Methods(http.MethodGet)
	api.HandleFunc("/corpora/{corpus}", f.handleDeleteCorpus).Methods(http.MethodDelete)
	api.HandleFunc("/corpora/{corpus}/play/{play}", f.handlePlay).Methods(http.MethodGet)
	api.HandleFunc("/corpora/{corpus}/play/{play}", f.handleDeletePlay).Methods(http.MethodDelete)
	api.HandleFunc("/corpora/{corpus}/play/{play}/tei", f.handleGetTEI).Methods(http.MethodGet)
	api.HandleFunc("/corpora/{corpus}/play/{play}/tei", f.handlePutTEI).Methods(http.MethodPut)
	r.Use(f.record)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the API root with a trailing slash.
func (f *FakeDraCor) URL() string {
	return f.Server.URL + "/api/"
}

// AddCorpus seeds a corpus with plays in roster order.
func (f *FakeDraCor) AddCorpus(name, title string, plays ...FakePlay) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeCorpus{meta: map[string]any{"name": name, "title": title}, tei: map[string]string{}}
	for _, p := range plays {
		c.order = append(c.order, p.Name)
		c.tei[p.Name] = p.TEI
	}
	f.corpora[name] = c
}

// HasCorpus reports whether the corpus exists.
func (f *FakeDraCor) HasCorpus(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.corpora[name]
	return ok
}

// Plays returns the stored play names of a corpus in insertion order.
func (f *FakeDraCor) Plays(corpus string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.corpora[corpus]
	if !ok {
		return nil
	}
	return slices.Clone(c.order)
}

// CorpusMeta returns the stored metadata of a corpus.
func (f *FakeDraCor) CorpusMeta(corpus string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.corpora[corpus]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(c.meta))
	for k, v := range c.meta {
		out[k] = v
	}
	return out
}

// Requests returns the requests seen so far.
func (f *FakeDraCor) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// Count returns how often method was called on path.
func (f *FakeDraCor) Count(method, path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *FakeDraCor) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path})
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeDraCor) authorized(w http.ResponseWriter, r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok || user != f.Username || pass != f.Password {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *FakeDraCor) handleInfo(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	failing := f.InfoFailures > 0
	if failing {
		f.InfoFailures--
	}
	f.mu.Unlock()
	if failing {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{"name": "DraCor API", "version": f.Version, "existdb": f.ExistDB, "status": "beta"})
}

func (f *FakeDraCor) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.corpora))
	for name := range f.corpora {
		names = append(names, name)
	}
	slices.Sort(names)
	withMetrics := r.URL.Query().Get("include") == "metrics"
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		entry := map[string]any{"name": name, "title": f.corpora[name].meta["title"]}
		if withMetrics {
			entry["metrics"] = map[string]any{"plays": len(f.corpora[name].order)}
		}
		out = append(out, entry)
	}
	writeJSON(w, out)
}

func (f *FakeDraCor) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateStatus != 0 {
		http.Error(w, "forced", f.CreateStatus)
		return
	}
	var meta map[string]any
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name, _ := meta["name"].(string)
	if name == "" {
		http.Error(w, "name missing", http.StatusBadRequest)
		return
	}
	if _, exists := f.corpora[name]; exists {
		http.Error(w, "corpus exists", http.StatusConflict)
		return
	}
	f.corpora[name] = &fakeCorpus{meta: meta, tei: map[string]string{}}
	writeJSON(w, map[string]any{"name": name})
}

func (f *FakeDraCor) handleCorpus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["corpus"]
	f.mu.Lock()
	defer f.mu.Unlock()
	if status := f.CorpusStatus[name]; status != 0 {
		http.Error(w, "forced", status)
		return
	}
	c, ok := f.corpora[name]
	if !ok {
		http.Error(w, "no such corpus", http.StatusNotFound)
		return
	}
	out := make(map[string]any, len(c.meta)+1)
	for k, v := range c.meta {
		out[k] = v
	}
	plays := make([]map[string]any, 0, len(c.order))
	for i, p := range c.order {
		plays = append(plays, map[string]any{"name": p, "id": fmt.Sprintf("%s%06d", name, i+1)})
	}
	out["plays"] = plays
	writeJSON(w, out)
}

func (f *FakeDraCor) handleDeleteCorpus(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	name := mux.Vars(r)["corpus"]
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.corpora[name]; !ok {
		http.Error(w, "no such corpus", http.StatusNotFound)
		return
	}
	delete(f.corpora, name)
	w.WriteHeader(http.StatusOK)
}

func (f *FakeDraCor) play(w http.ResponseWriter, r *http.Request) (*fakeCorpus, string, bool) {
	vars := mux.Vars(r)
	c, ok := f.corpora[vars["corpus"]]
	if !ok {
		http.Error(w, "no such corpus", http.StatusNotFound)
		return nil, "", false
	}
	return c, vars["play"], true
}

func (f *FakeDraCor) handlePlay(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, play, ok := f.play(w, r)
	if !ok {
		return
	}
	if _, exists := c.tei[play]; !exists {
		http.Error(w, "no such play", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"name": play, "corpus": mux.Vars(r)["corpus"]})
}

func (f *FakeDraCor) handleDeletePlay(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, play, ok := f.play(w, r)
	if !ok {
		return
	}
	if _, exists := c.tei[play]; !exists {
		http.Error(w, "no such play", http.StatusNotFound)
		return
	}
	delete(c.tei, play)
	c.order = slices.DeleteFunc(c.order, func(p string) bool { return p == play })
	w.WriteHeader(http.StatusOK)
}

func (f *FakeDraCor) handleGetTEI(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := mux.Vars(r)["corpus"] + "/" + mux.Vars(r)["play"]
	if status := f.GetStatus[key]; status != 0 {
		http.Error(w, "forced", status)
		return
	}
	c, play, ok := f.play(w, r)
	if !ok {
		return
	}
	tei, exists := c.tei[play]
	if !exists {
		http.Error(w, "no such play", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, tei)
}

func (f *FakeDraCor) handlePutTEI(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := mux.Vars(r)["corpus"] + "/" + mux.Vars(r)["play"]
	if status := f.PutStatus[key]; status != 0 {
		http.Error(w, "forced", status)
		return
	}
	if r.Header.Get("Content-Type") != "application/xml" {
		http.Error(w, "expected application/xml", http.StatusUnsupportedMediaType)
		return
	}
	c, play, ok := f.play(w, r)
	if !ok {
		return
	}
	if f.SilentDrop[key] {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, exists := c.tei[play]; !exists {
		c.order = append(c.order, play)
	}
	c.tei[play] = string(body)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
