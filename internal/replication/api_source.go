package replication

import (
	"context"
	"strings"

	"stabledracor/internal/dracor"
	"stabledracor/internal/manifest"
)

// RemoteService is the read side of a DraCor API used as a source.
type RemoteService interface {
	Corpus(ctx context.Context, name string) (dracor.CorpusMetadata, error)
	PlayTEI(ctx context.Context, corpus, play string) ([]byte, error)
	CorpusURL(corpus string) string
}

// APISource copies a corpus from another DraCor instance, by default
// https://dracor.org/api/.
type APISource struct {
	remote RemoteService
	corpus string
}

// NewAPISource returns a source for corpus on remote.
func NewAPISource(remote RemoteService, corpus string) *APISource {
	return &APISource{remote: remote, corpus: strings.TrimSpace(corpus)}
}

func (s *APISource) Metadata(ctx context.Context) (dracor.CorpusMetadata, error) {
	return s.remote.Corpus(ctx, s.corpus)
}

// Provenance registers the source under the upstream corpus name.
func (s *APISource) Provenance(dracor.CorpusMetadata) Provenance {
	return Provenance{
		Name:       s.corpus,
		Corpusname: s.corpus,
		Type:       manifest.SourceAPI,
		URL:        s.remote.CorpusURL(s.corpus),
	}
}

func (s *APISource) Items(meta dracor.CorpusMetadata) []Item {
	roster := meta.Roster()
	items := make([]Item, 0, len(roster))
	for _, play := range roster {
		items = append(items, Item{Name: play.Name})
	}
	return items
}

func (s *APISource) Fetch(ctx context.Context, item Item) ([]byte, error) {
	return s.remote.PlayTEI(ctx, s.corpus, item.Name)
}
