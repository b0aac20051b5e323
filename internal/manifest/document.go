package manifest

import (
	"slices"
	"sort"
)

// Version is written to every encoded manifest.
const Version = "v1"

// DefaultIDKind is the item identifier kind used when a caller does not name one.
const DefaultIDKind = "slug"

// SourceType names where the contents of a corpus source were copied from.
type SourceType string

const (
	SourceAPI        SourceType = "api"
	SourceRepository SourceType = "repository"
	SourceFiles      SourceType = "files"
)

// Canonical service names.
const (
	ServiceAPI         = "api"
	ServiceFrontend    = "frontend"
	ServiceMetrics     = "metrics"
	ServiceTriplestore = "triplestore"
)

// CanonicalServices lists the services every stable system is expected to run.
var CanonicalServices = []string{ServiceAPI, ServiceFrontend, ServiceMetrics, ServiceTriplestore}

// IsCanonicalService reports whether name is one of CanonicalServices.
func IsCanonicalService(name string) bool {
	return slices.Contains(CanonicalServices, name)
}

// SystemIdentity identifies one stable system.
type SystemIdentity struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// ServiceEntry describes one container of the system.
type ServiceEntry struct {
	Container string `json:"container,omitempty"`
	Image     string `json:"image,omitempty"`
	BaseImage string `json:"base_image,omitempty"`
	ExistDB   string `json:"existdb,omitempty"`
	Version   string `json:"version,omitempty"`
}

// SelectionFilter is an include or exclude list of item identifiers.
type SelectionFilter struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids,omitempty"`
}

// Contains reports whether id is listed in the filter.
func (f *SelectionFilter) Contains(id string) bool {
	if f == nil {
		return false
	}
	return slices.Contains(f.IDs, id)
}

// SourceEntry records one provenance of a corpus.
type SourceEntry struct {
	Type       SourceType       `json:"type"`
	Corpusname string           `json:"corpusname,omitempty"`
	URL        string           `json:"url,omitempty"`
	Commit     string           `json:"commit,omitempty"`
	Timestamp  string           `json:"timestamp,omitempty"`
	NumOfPlays *int             `json:"num_of_plays,omitempty"`
	Exclude    *SelectionFilter `json:"exclude,omitempty"`
	Include    *SelectionFilter `json:"include,omitempty"`
}

// CorpusEntry records one corpus of the local system.
type CorpusEntry struct {
	Corpusname string                 `json:"corpusname"`
	Timestamp  string                 `json:"timestamp,omitempty"`
	NumOfPlays *int                   `json:"num_of_plays,omitempty"`
	Sources    map[string]SourceEntry `json:"sources,omitempty"`
}

// SourceNames returns the source names in sorted order.
func (c CorpusEntry) SourceNames() []string {
	return sortedKeys(c.Sources)
}

// Document is the serialisable form of a Manifest.
type Document struct {
	Version  string                  `json:"version"`
	System   SystemIdentity          `json:"system"`
	Services map[string]ServiceEntry `json:"services,omitempty"`
	Corpora  map[string]CorpusEntry  `json:"corpora,omitempty"`
}

// ServiceNames returns the service names in sorted order.
func (d Document) ServiceNames() []string {
	return sortedKeys(d.Services)
}

// CorpusNames returns the corpus names in sorted order.
func (d Document) CorpusNames() []string {
	return sortedKeys(d.Corpora)
}

// Clone returns a deep copy of d. Empty maps and lists come back as nil so that
// documents built through different paths compare equal.
func (d Document) Clone() Document {
	out := Document{Version: d.Version, System: d.System}
	if len(d.Services) > 0 {
		out.Services = make(map[string]ServiceEntry, len(d.Services))
		for name, svc := range d.Services {
			out.Services[name] = svc
		}
	}
	if len(d.Corpora) > 0 {
		out.Corpora = make(map[string]CorpusEntry, len(d.Corpora))
		for name, corpus := range d.Corpora {
			out.Corpora[name] = corpus.clone()
		}
	}
	return out
}

func (c CorpusEntry) clone() CorpusEntry {
	out := CorpusEntry{
		Corpusname: c.Corpusname,
		Timestamp:  c.Timestamp,
		NumOfPlays: cloneInt(c.NumOfPlays),
	}
	if len(c.Sources) > 0 {
		out.Sources = make(map[string]SourceEntry, len(c.Sources))
		for name, src := range c.Sources {
			out.Sources[name] = src.clone()
		}
	}
	return out
}

func (s SourceEntry) clone() SourceEntry {
	out := s
	out.NumOfPlays = cloneInt(s.NumOfPlays)
	out.Exclude = s.Exclude.clone()
	out.Include = s.Include.clone()
	return out
}

func (f *SelectionFilter) clone() *SelectionFilter {
	if f == nil {
		return nil
	}
	out := &SelectionFilter{Type: f.Type}
	if len(f.IDs) > 0 {
		out.IDs = slices.Clone(f.IDs)
	}
	return out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
