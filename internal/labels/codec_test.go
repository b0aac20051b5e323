package labels_test

import (
	"errors"
	"maps"
	"reflect"
	"strings"
	"testing"
	"time"

	"stabledracor/internal/labels"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

const ns = "org.dracor.stable-dracor"

func buildManifest(t *testing.T) manifest.Document {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	m := manifest.New(manifest.WithClock(clock), manifest.WithIdentity("demo", "two corpora"))
	m.SetService("api", "a1b2", "dracor/dracor-api:v1.1.0")
	m.SetAPIInfo("1.1.0", "6.2.0")
	m.SetServiceImage("frontend", "dracor/stable-dracor-frontend:x", "dracor/dracor-frontend:v2")

	mustRegister := func(reg manifest.Registration) {
		if _, err := m.RegisterCorpus(reg); err != nil {
			t.Fatalf("register %+v: %v", reg, err)
		}
	}
	mustRegister(manifest.Registration{Corpusname: "ger", SourceCorpusname: "ger", Type: manifest.SourceAPI, URL: "https://dracor.org/api/corpora/ger"})
	mustRegister(manifest.Registration{Corpusname: "ger", SourceName: "v1.2", Type: manifest.SourceRepository, URL: "https://github.com/dracor-org/gerdracor", Commit: "0123abcd"})
	mustRegister(manifest.Registration{Corpusname: "tat", SourceName: "5e1a9c0f", Type: manifest.SourceFiles})

	if err := m.RecordCopiedItemCount("ger", "ger", 3); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordCopiedItemCount("ger", "v1.2", 0); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"lessing-emilia-galotti", "goethe-faust-eine-tragoedie"} {
		if err := m.ExcludeItem("ger", "ger", "slug", id); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.IncludeItem("ger", "v1.2", "slug", "schiller-die-raeuber"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetCorpusItemCount("ger", 5); err != nil {
		t.Fatal(err)
	}
	return m.Snapshot()
}

func TestRoundTripFromManifest(t *testing.T) {
	doc := buildManifest(t)
	encoded := labels.Encode(doc)
	decoded, err := labels.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, doc) {
		t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", doc, decoded)
	}
	again := labels.Encode(decoded)
	if !maps.Equal(again, encoded) {
		t.Fatalf("re-encoding changed label set\nwant %v\ngot  %v", encoded, again)
	}
}

func TestEncodeLayout(t *testing.T) {
	encoded := labels.Encode(buildManifest(t))
	want := map[string]string{
		ns + ".version":                               "v1",
		ns + ".system.name":                           "demo",
		ns + ".services":                              "api,frontend",
		ns + ".services.api.existdb":                  "6.2.0",
		ns + ".services.frontend.base-image":          "dracor/dracor-frontend:v2",
		ns + ".corpora":                               "ger,tat",
		ns + ".corpora.ger.num-of-plays":              "5",
		ns + ".corpora.ger.sources":                   "ger,v1.2",
		ns + ".corpora.ger.sources.ger.type":          "api",
		ns + ".corpora.ger.sources.ger.num-of-plays":  "3",
		ns + ".corpora.ger.sources.ger.exclude.type":  "slug",
		ns + ".corpora.ger.sources.ger.exclude.ids":   "lessing-emilia-galotti,goethe-faust-eine-tragoedie",
		ns + ".corpora.ger.sources.v1.2.commit":       "0123abcd",
		ns + ".corpora.ger.sources.v1.2.num-of-plays": "0",
		ns + ".corpora.ger.sources.v1.2.include.ids":  "schiller-die-raeuber",
		ns + ".corpora.tat.sources.5e1a9c0f.type":     "files",
	}
	for key, value := range want {
		if got, ok := encoded[key]; !ok || got != value {
			t.Fatalf("label %s: got %q (present=%v), want %q", key, got, ok, value)
		}
	}
	for key := range encoded {
		if !strings.HasPrefix(key, ns+".") {
			t.Fatalf("key outside namespace: %s", key)
		}
	}
	if _, ok := encoded[ns+".corpora.tat.num-of-plays"]; ok {
		t.Fatal("absent count must not produce a key")
	}
	if _, ok := encoded[ns+".corpora.tat.sources.5e1a9c0f.url"]; ok {
		t.Fatal("empty url must not produce a key")
	}
}

func TestDecodeIgnoresOrphansAndForeignKeys(t *testing.T) {
	input := map[string]string{
		ns + ".version":                      "v1",
		ns + ".corpora":                      "ger",
		ns + ".corpora.ger.sources":          "ger",
		ns + ".corpora.ger.sources.ger.type": "api",
		ns + ".corpora.fre.corpusname":       "fre",
		ns + ".corpora.ger.sources.old.type": "files",
		ns + ".services.api.image":           "dracor/dracor-api",
		ns + ".unknown":                      "x",
		"org.opencontainers.image.title":     "dracor",
	}
	doc, err := labels.Decode(input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Corpora) != 1 {
		t.Fatalf("expected only indexed corpus, got %v", doc.CorpusNames())
	}
	if len(doc.Corpora["ger"].Sources) != 1 {
		t.Fatalf("expected only indexed source, got %v", doc.Corpora["ger"].SourceNames())
	}
	if doc.Services != nil {
		t.Fatalf("services without index must be ignored, got %v", doc.Services)
	}
	if doc.Corpora["ger"].Corpusname != "ger" {
		t.Fatalf("expected corpusname to default to index name, got %q", doc.Corpora["ger"].Corpusname)
	}
}

func TestDecodeSplitsFilterOnFirstDot(t *testing.T) {
	input := map[string]string{
		ns + ".corpora":                                 "ger",
		ns + ".corpora.ger.sources":                     "a,a.exclude",
		ns + ".corpora.ger.sources.a.type":              "api",
		ns + ".corpora.ger.sources.a.exclude.ids":       "x.y,z",
		ns + ".corpora.ger.sources.a.exclude.type":      "id",
		ns + ".corpora.ger.sources.a.exclude.type.ids":  "ignored",
		ns + ".corpora.ger.sources.a.exclude.ids.extra": "ignored",
		ns + ".corpora.ger.sources.a.exclude.commit":    "abc",
	}
	doc, err := labels.Decode(input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	src := doc.Corpora["ger"].Sources["a"]
	if src.Exclude == nil || src.Exclude.Type != "id" {
		t.Fatalf("unexpected exclude filter %+v", src.Exclude)
	}
	if strings.Join(src.Exclude.IDs, "|") != "x.y|z" {
		t.Fatalf("unexpected ids %v", src.Exclude.IDs)
	}
	if src.Commit != "" {
		t.Fatalf("filter sub-key leaked into source fields: %+v", src)
	}
	other := doc.Corpora["ger"].Sources["a.exclude"]
	if other.Commit != "abc" {
		t.Fatalf("expected source named with a dot to resolve, got %+v", other)
	}
}

func TestDecodeStructuralErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"empty corpus index": {ns + ".corpora": ""},
		"gap in index":       {ns + ".corpora": "a,,b"},
		"duplicate service":  {ns + ".services": "api,api"},
		"duplicate source":   {ns + ".corpora": "a", ns + ".corpora.a.sources": "s,s"},
		"bad corpus count":   {ns + ".corpora": "a", ns + ".corpora.a.num-of-plays": "many"},
		"negative count": {
			ns + ".corpora":                          "a",
			ns + ".corpora.a.sources":                "s",
			ns + ".corpora.a.sources.s.num-of-plays": "-1",
		},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := labels.Decode(input)
			var sde *labels.StructuralDecodeError
			if !errors.As(err, &sde) {
				t.Fatalf("expected StructuralDecodeError, got %v", err)
			}
			if !errors.Is(err, services.ErrStructuralDecode) {
				t.Fatalf("expected ErrStructuralDecode marker, got %v", err)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	doc, err := labels.Decode(nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if !reflect.DeepEqual(doc, manifest.Document{}) {
		t.Fatalf("expected zero document, got %+v", doc)
	}
}

func TestCustomNamespace(t *testing.T) {
	codec := labels.Codec{Namespace: "org.example.test."}
	doc := buildManifest(t)
	encoded := codec.Encode(doc)
	if _, ok := encoded["org.example.test.corpora"]; !ok {
		t.Fatalf("expected custom namespace keys, got %v", encoded)
	}
	if decoded, _ := labels.Decode(encoded); len(decoded.Corpora) != 0 {
		t.Fatal("default codec must not read a foreign namespace")
	}
	decoded, err := codec.Decode(encoded)
	if err != nil || !reflect.DeepEqual(decoded, doc) {
		t.Fatalf("custom namespace round trip failed: %v", err)
	}
	if got := codec.Filter(map[string]string{"org.example.test.version": "v1", "other": "x"}); len(got) != 1 {
		t.Fatalf("unexpected filter result %v", got)
	}
}

func TestInstruction(t *testing.T) {
	got := labels.Instruction(map[string]string{"b.key": `say "hi"`, "a.key": "1"})
	want := `LABEL a.key="1" b.key="say \"hi\""`
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if labels.Instruction(nil) != "" {
		t.Fatal("expected empty instruction for no labels")
	}
}
