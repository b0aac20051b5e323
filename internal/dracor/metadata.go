package dracor

import (
	"bytes"
	"encoding/json"
	"strings"
)

// rosterKeys hold the play list of a corpus document. Older API versions
// use "dramas", newer ones "plays".
var rosterKeys = []string{"plays", "dramas"}

// PlaySummary is one roster entry.
type PlaySummary struct {
	ID   string
	Name string
}

// CorpusMetadata is a corpus document as returned by GET /corpora/{name}.
// It is kept as a generic map so unknown fields survive a copy.
type CorpusMetadata map[string]any

// Name returns the corpus name.
func (m CorpusMetadata) Name() string {
	if v, ok := m["name"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Roster returns the plays of the corpus in document order.
func (m CorpusMetadata) Roster() []PlaySummary {
	for _, key := range rosterKeys {
		raw, ok := m[key].([]any)
		if !ok {
			continue
		}
		out := make([]PlaySummary, 0, len(raw))
		for _, entry := range raw {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			play := PlaySummary{}
			play.Name, _ = obj["name"].(string)
			play.ID, _ = obj["id"].(string)
			if play.Name == "" {
				continue
			}
			out = append(out, play)
		}
		return out
	}
	return nil
}

// Merge returns a copy with overrides applied field by field.
func (m CorpusMetadata) Merge(overrides map[string]any) CorpusMetadata {
	out := make(CorpusMetadata, len(m)+len(overrides))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// WithoutRoster returns a copy without the play list.
func (m CorpusMetadata) WithoutRoster() CorpusMetadata {
	out := make(CorpusMetadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, key := range rosterKeys {
		delete(out, key)
	}
	return out
}

// MismatchedFields lists the keys of want whose value differs in m or is
// missing from m. The roster is ignored.
func (m CorpusMetadata) MismatchedFields(want CorpusMetadata) []string {
	var out []string
	for key, value := range want.WithoutRoster() {
		got, ok := m[key]
		if !ok || !equalJSON(got, value) {
			out = append(out, key)
		}
	}
	return out
}

// equalJSON compares two values by their JSON encoding, so overrides given
// as Go types compare equal to the same values decoded from a response.
func equalJSON(a, b any) bool {
	ad, errA := json.Marshal(a)
	bd, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ad, bd)
}
