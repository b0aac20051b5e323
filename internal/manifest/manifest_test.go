package manifest_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestNewAssignsIdentity(t *testing.T) {
	m := manifest.New(manifest.WithClock(fixedClock), manifest.WithIdentity(" demo ", "a test system"))
	doc := m.Snapshot()
	if doc.System.ID == "" {
		t.Fatal("expected generated system id")
	}
	if doc.System.Name != "demo" || doc.System.Description != "a test system" {
		t.Fatalf("unexpected identity: %+v", doc.System)
	}
	if doc.System.Timestamp != "2024-03-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", doc.System.Timestamp)
	}
	if doc.Version != manifest.Version {
		t.Fatalf("expected version %q, got %q", manifest.Version, doc.Version)
	}
	other := manifest.New()
	if other.ID() == m.ID() {
		t.Fatal("expected independent manifests to have distinct ids")
	}
}

func TestRegisterCorpusIsIdempotent(t *testing.T) {
	m := manifest.New(manifest.WithClock(fixedClock))
	changed, err := m.RegisterCorpus(manifest.Registration{
		Corpusname:       "x",
		SourceCorpusname: "upstream",
		Type:             manifest.SourceAPI,
		URL:              "https://dracor.org/api/corpora/upstream",
	})
	if err != nil || !changed {
		t.Fatalf("first registration: changed=%v err=%v", changed, err)
	}
	first, _ := m.Corpus("x")

	changed, err = m.RegisterCorpus(manifest.Registration{
		Corpusname:       "x",
		SourceCorpusname: "upstream",
		Type:             manifest.SourceRepository,
		URL:              "https://github.com/dracor-org/x",
	})
	if err != nil {
		t.Fatalf("second registration: %v", err)
	}
	if changed {
		t.Fatal("expected same source name to be a no-op")
	}
	entry, _ := m.Corpus("x")
	if entry.Timestamp != first.Timestamp || len(entry.Sources) != 1 {
		t.Fatalf("corpus changed on repeated registration: %+v", entry)
	}
	if got := entry.Sources["upstream"].Type; got != manifest.SourceAPI {
		t.Fatalf("expected first source type to win, got %s", got)
	}

	changed, err = m.RegisterCorpus(manifest.Registration{
		Corpusname: "x",
		SourceName: "repo",
		Type:       manifest.SourceRepository,
		Commit:     "abc123",
	})
	if err != nil || !changed {
		t.Fatalf("third registration: changed=%v err=%v", changed, err)
	}
	entry, _ = m.Corpus("x")
	if len(entry.Sources) != 2 {
		t.Fatalf("expected additional source entry, got %v", entry.SourceNames())
	}
	if entry.Sources["repo"].Commit != "abc123" {
		t.Fatalf("unexpected repo source: %+v", entry.Sources["repo"])
	}
	if entry.Corpusname != "x" || entry.Timestamp != first.Timestamp {
		t.Fatalf("corpus level fields changed: %+v", entry)
	}
}

func TestRegisterCorpusDefaultsSourceName(t *testing.T) {
	m := manifest.New()
	if _, err := m.RegisterCorpus(manifest.Registration{Corpusname: "ger"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	entry, _ := m.Corpus("ger")
	src, ok := entry.Sources["ger"]
	if !ok {
		t.Fatalf("expected source keyed by corpusname, got %v", entry.SourceNames())
	}
	if src.Type != manifest.SourceAPI {
		t.Fatalf("expected default api type, got %s", src.Type)
	}
}

func TestRegisterCorpusRequiresName(t *testing.T) {
	m := manifest.New()
	_, err := m.RegisterCorpus(manifest.Registration{Corpusname: "  "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRejectsNamesThatCollideInLabels(t *testing.T) {
	m := manifest.New()
	regs := map[string]manifest.Registration{
		"comma in corpus":        {Corpusname: "ger,fre"},
		"reserved corpus":        {Corpusname: "ger.sources.x"},
		"filter suffixed source": {Corpusname: "ger", SourceName: "s.exclude"},
		"include segment source": {Corpusname: "ger", SourceName: "s.include.v2"},
	}
	for name, reg := range regs {
		if _, err := m.RegisterCorpus(reg); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, ok := m.Corpus("ger"); ok {
		t.Fatal("rejected registration must not create the corpus")
	}

	if _, err := m.RegisterCorpus(manifest.Registration{Corpusname: "ger", SourceName: "v1.2"}); err != nil {
		t.Fatalf("dotted source name: %v", err)
	}
	for _, id := range []string{" p2", "p2 ", "a,b", ""} {
		if err := m.ExcludeItem("ger", "v1.2", "slug", id); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("exclude %q: expected validation error, got %v", id, err)
		}
		if err := m.IncludeItem("ger", "v1.2", "slug", id); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("include %q: expected validation error, got %v", id, err)
		}
	}
	entry, _ := m.Corpus("ger")
	if src := entry.Sources["v1.2"]; src.Exclude != nil || src.Include != nil {
		t.Fatalf("rejected ids were recorded: %+v", src)
	}
}

func TestMutationsRequireRegistration(t *testing.T) {
	m := manifest.New()
	if _, err := m.RegisterCorpus(manifest.Registration{Corpusname: "ger", SourceName: "gerdracor"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := map[string]error{
		"count unknown corpus":   m.RecordCopiedItemCount("fre", "gerdracor", 1),
		"count unknown source":   m.RecordCopiedItemCount("ger", "other", 1),
		"exclude unknown corpus": m.ExcludeItem("fre", "gerdracor", "slug", "a"),
		"exclude unknown source": m.ExcludeItem("ger", "other", "slug", "a"),
		"include unknown source": m.IncludeItem("ger", "other", "slug", "a"),
		"corpus count unknown":   m.SetCorpusItemCount("fre", 3),
	}
	for name, err := range cases {
		var nre *manifest.NotRegisteredError
		if !errors.As(err, &nre) {
			t.Fatalf("%s: expected NotRegisteredError, got %v", name, err)
		}
		if !errors.Is(err, services.ErrNotRegistered) {
			t.Fatalf("%s: expected ErrNotRegistered marker", name)
		}
	}
}

func TestExcludeItemDeduplicatesAndChecksKind(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := manifest.New(manifest.WithLogger(logger))
	if _, err := m.RegisterCorpus(manifest.Registration{Corpusname: "ger", SourceName: "src"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, id := range []string{"a", "b", "a"} {
		if err := m.ExcludeItem("ger", "src", "", id); err != nil {
			t.Fatalf("exclude %s: %v", id, err)
		}
	}
	if err := m.ExcludeItem("ger", "src", "id", "ger000001"); err != nil {
		t.Fatalf("exclude with conflicting kind should not fail: %v", err)
	}
	entry, _ := m.Corpus("ger")
	filter := entry.Sources["src"].Exclude
	if filter == nil || filter.Type != "slug" {
		t.Fatalf("unexpected filter: %+v", filter)
	}
	if strings.Join(filter.IDs, ",") != "a,b" {
		t.Fatalf("unexpected ids: %v", filter.IDs)
	}
	if !strings.Contains(buf.String(), "filter_kind_conflict") {
		t.Fatalf("expected kind conflict warning, got %q", buf.String())
	}
}

func TestRecordCopiedItemCount(t *testing.T) {
	m := manifest.New()
	if _, err := m.RegisterCorpus(manifest.Registration{Corpusname: "ger"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	entry, _ := m.Corpus("ger")
	if entry.Sources["ger"].NumOfPlays != nil {
		t.Fatal("count must stay unset until a copy attempt completed")
	}
	if err := m.RecordCopiedItemCount("ger", "ger", 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	entry, _ = m.Corpus("ger")
	if n := entry.Sources["ger"].NumOfPlays; n == nil || *n != 0 {
		t.Fatalf("expected explicit zero count, got %v", n)
	}
	if err := m.RecordCopiedItemCount("ger", "ger", -1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for negative count, got %v", err)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	m := manifest.New()
	if _, err := m.RegisterCorpus(manifest.Registration{Corpusname: "ger"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.ExcludeItem("ger", "ger", "slug", "a"); err != nil {
		t.Fatalf("exclude: %v", err)
	}
	snap := m.Snapshot()
	snap.Corpora["ger"].Sources["ger"].Exclude.IDs[0] = "mutated"
	delete(snap.Corpora, "ger")

	entry, ok := m.Corpus("ger")
	if !ok {
		t.Fatal("snapshot mutation removed corpus from manifest")
	}
	if entry.Sources["ger"].Exclude.IDs[0] != "a" {
		t.Fatalf("snapshot shares filter storage: %v", entry.Sources["ger"].Exclude.IDs)
	}
}

func TestServices(t *testing.T) {
	m := manifest.New()
	m.SetService("api", "c1", "dracor/dracor-api:v1")
	m.SetAPIInfo("1.0.0", "6.2.0")
	m.SetServiceImage("api", "dracor/stable-dracor-api:abc", "dracor/dracor-api:v1")
	m.SetService("", "ignored", "ignored")

	svc := m.Services()
	if len(svc) != 1 {
		t.Fatalf("expected one service, got %v", svc)
	}
	api := svc["api"]
	if api.Container != "c1" || api.Version != "1.0.0" || api.ExistDB != "6.2.0" {
		t.Fatalf("unexpected api entry: %+v", api)
	}
	if api.Image != "dracor/stable-dracor-api:abc" || api.BaseImage != "dracor/dracor-api:v1" {
		t.Fatalf("unexpected api images: %+v", api)
	}
}

func TestFromDocumentKeepsIdentity(t *testing.T) {
	src := manifest.New(manifest.WithIdentity("demo", ""))
	doc := src.Snapshot()
	restored := manifest.FromDocument(doc, manifest.WithIdentity("other", "x"))
	if restored.ID() != src.ID() {
		t.Fatalf("expected id %s, got %s", src.ID(), restored.ID())
	}
	if restored.Snapshot().System.Name != "demo" {
		t.Fatal("expected stored identity to win over options")
	}
}
