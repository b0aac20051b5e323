package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"stabledracor/internal/journal"
	"stabledracor/internal/replication"
	"stabledracor/internal/services"
	"stabledracor/internal/testsupport"
)

func sampleResult() replication.Result {
	return replication.Result{
		Corpus:  "test",
		Source:  "test",
		State:   replication.StatePartialFailure,
		Outcome: services.OutcomePartialFailure,
		Items: []replication.ItemResult{
			{Item: replication.Item{Name: "p1"}, Status: replication.ItemCopied},
			{Item: replication.Item{Name: "p2"}, Status: replication.ItemFailed, Err: errors.New("store failed")},
			{Item: replication.Item{Name: "p3"}, Status: replication.ItemExcluded},
			{Item: replication.Item{Name: "p4"}, Status: replication.ItemFailed, Err: errors.New("fetch failed")},
		},
		Copied:       1,
		Failed:       []string{"p2", "p4"},
		Excluded:     []string{"p3"},
		Verification: replication.Verification{Performed: true, Reachable: true, Counted: true, Expected: 3, Actual: 1},
	}
}

func TestRecordAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.Record(ctx, journal.FromResult(journal.OperationCopy, sampleResult(), nil, started))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	run, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Outcome != services.OutcomePartialFailure || run.Copied != 1 || run.Failed != 2 || run.Excluded != 1 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Expected == nil || *run.Expected != 3 || run.Actual == nil || *run.Actual != 1 {
		t.Fatalf("verification not stored: %v %v", run.Expected, run.Actual)
	}
	if !run.StartedAt.Equal(started) {
		t.Fatalf("started = %s", run.StartedAt)
	}
	if len(run.Items) != 4 || run.Items[1].Error != "store failed" || run.Items[2].Status != "excluded" {
		t.Fatalf("unexpected items %+v", run.Items)
	}

	failed, err := store.FailedPlays(ctx, id)
	if err != nil {
		t.Fatalf("FailedPlays: %v", err)
	}
	if !slices.Equal(failed, []string{"p2", "p4"}) {
		t.Fatalf("failed plays = %v", failed)
	}
}

func TestGetMissingRun(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFatalRunRecordsError(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	fatal := &replication.FatalOperationError{Corpus: "gone", Stage: replication.StateMetadataFetched, Err: services.ErrNotFound}
	res := replication.Result{State: replication.StateFailed, Outcome: services.OutcomeFailed}
	id, err := store.Record(ctx, journal.FromResult(journal.OperationCopy, res, fatal, time.Now()))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	run, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Corpus != "gone" || run.Outcome != services.OutcomeFailed || run.Error == "" {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Expected != nil {
		t.Fatal("unexpected verification figures")
	}
}

func TestListNewestFirstAndFilter(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, corpus := range []string{"a", "b", "a"} {
		run := journal.Run{
			Operation: journal.OperationCopy,
			Corpus:    corpus,
			Outcome:   services.OutcomeDone,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || !all[0].StartedAt.Equal(base.Add(2*time.Second)) {
		t.Fatalf("unexpected order %+v", all)
	}
	onlyA, err := store.List(ctx, "a", 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].Corpus != "a" {
		t.Fatalf("unexpected filtered list %+v", onlyA)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[services.OutcomeDone] != 3 {
		t.Fatalf("stats = %v", stats)
	}

	pruned, err := store.Prune(ctx, base.Add(time.Second))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d", pruned)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := store.Record(context.Background(), journal.Run{Operation: journal.OperationDirectory, Outcome: services.OutcomeDone})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenJournal(t, cfg)
	if _, err := reopened.Get(context.Background(), id); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}

func TestReopenKeepsRunsAndRejectsOtherVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	store, err := journal.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	id, err := store.Record(ctx, journal.Run{Operation: journal.OperationCopy, Corpus: "test", Outcome: services.OutcomeDone})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = journal.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := store.Get(ctx, id); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := journal.OpenPath(path); !errors.Is(err, journal.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
