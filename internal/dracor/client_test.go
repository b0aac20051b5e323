package dracor_test

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"

	"stabledracor/internal/dracor"
	"stabledracor/internal/services"
	"stabledracor/internal/testsupport"
)

func TestInfoReadsVersion(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	client := dracor.New(fake.URL())

	info, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Version != "1.1.0" || info.ExistDB != "6.2.0" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestNewAddsTrailingSlash(t *testing.T) {
	client := dracor.New("http://localhost:8088/api")
	if client.BaseURL() != "http://localhost:8088/api/" {
		t.Fatalf("base url = %q", client.BaseURL())
	}
	if got := client.CorpusURL("ger"); got != "http://localhost:8088/api/corpora/ger" {
		t.Fatalf("corpus url = %q", got)
	}
}

func TestCorpusReturnsRosterInOrder(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	fake.AddCorpus("test", "Test Corpus",
		testsupport.FakePlay{Name: "b-play", TEI: testsupport.TEI("B")},
		testsupport.FakePlay{Name: "a-play", TEI: testsupport.TEI("A")},
	)
	client := dracor.New(fake.URL())

	meta, err := client.Corpus(context.Background(), "test")
	if err != nil {
		t.Fatalf("Corpus: %v", err)
	}
	if meta.Name() != "test" {
		t.Fatalf("name = %q", meta.Name())
	}
	var names []string
	for _, p := range meta.Roster() {
		names = append(names, p.Name)
	}
	if !slices.Equal(names, []string{"b-play", "a-play"}) {
		t.Fatalf("roster = %v", names)
	}
}

func TestCorpusMissingIsNotFound(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	client := dracor.New(fake.URL())

	_, err := client.Corpus(context.Background(), "nope")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var statusErr *dracor.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
}

func TestStatusErrorClassification(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:            services.ErrNotFound,
		http.StatusConflict:            services.ErrConflict,
		http.StatusUnauthorized:        services.ErrConfiguration,
		http.StatusForbidden:           services.ErrConfiguration,
		http.StatusBadGateway:          services.ErrTransient,
		http.StatusUnprocessableEntity: services.ErrValidation,
	}
	for status, marker := range cases {
		err := &dracor.StatusError{Method: http.MethodGet, URL: "x", StatusCode: status}
		if !errors.Is(err, marker) {
			t.Fatalf("status %d: expected %v", status, marker)
		}
	}
}

func TestAddCorpusCreatesWithoutRoster(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	client := dracor.New(fake.URL())

	meta := dracor.CorpusMetadata{
		"name":  "test",
		"title": "Test",
		"plays": []any{map[string]any{"name": "x"}},
	}
	created, err := client.AddCorpus(context.Background(), meta)
	if err != nil {
		t.Fatalf("AddCorpus: %v", err)
	}
	if !created {
		t.Fatal("expected corpus to be created")
	}
	stored := fake.CorpusMeta("test")
	if _, ok := stored["plays"]; ok {
		t.Fatalf("roster should not be sent: %v", stored)
	}
	if stored["title"] != "Test" {
		t.Fatalf("title = %v", stored["title"])
	}
}

func TestAddCorpusExistingIsNotAnError(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	fake.AddCorpus("test", "Test")
	client := dracor.New(fake.URL())

	created, err := client.AddCorpus(context.Background(), dracor.CorpusMetadata{"name": "test"})
	if err != nil {
		t.Fatalf("AddCorpus: %v", err)
	}
	if created {
		t.Fatal("expected existing corpus to be reported as not created")
	}
}

func TestWritesRequireCredentials(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	fake.Password = "secret"
	fake.AddCorpus("test", "Test")
	client := dracor.New(fake.URL())

	err := client.PutPlayTEI(context.Background(), "test", "p", []byte(testsupport.TEI("P")))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}

	authed := dracor.New(fake.URL(), dracor.WithCredentials("admin", "secret"))
	if err := authed.PutPlayTEI(context.Background(), "test", "p", []byte(testsupport.TEI("P"))); err != nil {
		t.Fatalf("PutPlayTEI: %v", err)
	}
	if !slices.Equal(fake.Plays("test"), []string{"p"}) {
		t.Fatalf("plays = %v", fake.Plays("test"))
	}
}

func TestPlayTEIRoundTrip(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	fake.AddCorpus("test", "Test")
	client := dracor.New(fake.URL())
	ctx := context.Background()

	doc := testsupport.TEI("Emilia Galotti")
	if err := client.PutPlayTEI(ctx, "test", "lessing-emilia-galotti", []byte(doc)); err != nil {
		t.Fatalf("PutPlayTEI: %v", err)
	}
	got, err := client.PlayTEI(ctx, "test", "lessing-emilia-galotti")
	if err != nil {
		t.Fatalf("PlayTEI: %v", err)
	}
	if string(got) != doc {
		t.Fatalf("tei mismatch: %q", got)
	}
	if _, err := client.Play(ctx, "test", "lessing-emilia-galotti"); err != nil {
		t.Fatalf("Play: %v", err)
	}
}

func TestDeleteReportsMissing(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	fake.AddCorpus("test", "Test", testsupport.FakePlay{Name: "p", TEI: testsupport.TEI("P")})
	client := dracor.New(fake.URL())
	ctx := context.Background()

	removed, err := client.DeletePlay(ctx, "test", "p")
	if err != nil || !removed {
		t.Fatalf("DeletePlay = %v, %v", removed, err)
	}
	removed, err = client.DeletePlay(ctx, "test", "p")
	if err != nil || removed {
		t.Fatalf("second DeletePlay = %v, %v", removed, err)
	}
	removed, err = client.DeleteCorpus(ctx, "test")
	if err != nil || !removed {
		t.Fatalf("DeleteCorpus = %v, %v", removed, err)
	}
	removed, err = client.DeleteCorpus(ctx, "test")
	if err != nil || removed {
		t.Fatalf("second DeleteCorpus = %v, %v", removed, err)
	}
}

func TestCorporaWithMetrics(t *testing.T) {
	fake := testsupport.NewFakeDraCor(t)
	fake.AddCorpus("ger", "German", testsupport.FakePlay{Name: "p", TEI: testsupport.TEI("P")})
	fake.AddCorpus("rus", "Russian")
	client := dracor.New(fake.URL())

	list, err := client.Corpora(context.Background(), true)
	if err != nil {
		t.Fatalf("Corpora: %v", err)
	}
	if len(list) != 2 || list[0].Name != "ger" || list[0].Metrics == nil || list[0].Metrics.Plays != 1 {
		t.Fatalf("unexpected corpora %+v", list)
	}
	if fake.Count(http.MethodGet, "/api/corpora") != 1 {
		t.Fatalf("expected one list request, got %v", fake.Requests())
	}
}
