package replication

import (
	"context"
	"strings"

	"stabledracor/internal/dracor"
	"stabledracor/internal/manifest"
)

// Item is one roster entry of a source.
type Item struct {
	// Name is the play identifier in the local corpus.
	Name string
	// Ref locates the item inside the source, e.g. a file name. Empty when
	// the name is sufficient.
	Ref string
}

// Matches reports whether id names this item by its name or reference.
// A reference also matches without its .xml extension.
func (i Item) Matches(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if id == i.Name {
		return true
	}
	if i.Ref == "" {
		return false
	}
	return id == i.Ref || id == strings.TrimSuffix(i.Ref, ".xml")
}

func matchesAny(item Item, ids []string) bool {
	for _, id := range ids {
		if item.Matches(id) {
			return true
		}
	}
	return false
}

// Provenance is what the manifest records about a source.
type Provenance struct {
	// Name keys the source inside the corpus entry.
	Name       string
	Corpusname string
	Type       manifest.SourceType
	URL        string
	Commit     string
}

// Source is where a corpus is copied from.
type Source interface {
	// Metadata fetches the corpus metadata. A failure aborts the run.
	Metadata(ctx context.Context) (dracor.CorpusMetadata, error)
	// Provenance describes the source once metadata is known.
	Provenance(meta dracor.CorpusMetadata) Provenance
	// Items lists the roster in copy order.
	Items(meta dracor.CorpusMetadata) []Item
	// Fetch returns the TEI document of an item.
	Fetch(ctx context.Context, item Item) ([]byte, error)
}
