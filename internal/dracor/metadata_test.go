package dracor

import (
	"slices"
	"testing"
)

func TestRosterFallsBackToDramas(t *testing.T) {
	meta := CorpusMetadata{"dramas": []any{
		map[string]any{"name": "a", "id": "x000001"},
		map[string]any{"id": "nameless"},
	}}
	roster := meta.Roster()
	if len(roster) != 1 || roster[0].Name != "a" || roster[0].ID != "x000001" {
		t.Fatalf("roster = %+v", roster)
	}
}

func TestMergeOverridesFields(t *testing.T) {
	meta := CorpusMetadata{"name": "ger", "title": "German"}
	merged := meta.Merge(map[string]any{"name": "ger2"})
	if merged.Name() != "ger2" || merged["title"] != "German" {
		t.Fatalf("merged = %v", merged)
	}
	if meta.Name() != "ger" {
		t.Fatal("merge must not modify the receiver")
	}
}

func TestMismatchedFieldsComparesByJSON(t *testing.T) {
	got := CorpusMetadata{"name": "ger", "year": float64(2020), "plays": []any{}}
	want := CorpusMetadata{"name": "ger", "year": 2020, "title": "German", "plays": []any{"x"}}
	diff := got.MismatchedFields(want)
	slices.Sort(diff)
	if !slices.Equal(diff, []string{"title"}) {
		t.Fatalf("diff = %v", diff)
	}
}
