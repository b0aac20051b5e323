package manifest

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stabledracor/internal/logging"
	"stabledracor/internal/services"
)

// Registration carries the provenance recorded by RegisterCorpus.
type Registration struct {
	// Corpusname is the name of the corpus in the local system.
	Corpusname string
	// SourceName keys the SourceEntry. Defaults to SourceCorpusname, then Corpusname.
	SourceName       string
	SourceCorpusname string
	Type             SourceType
	URL              string
	Commit           string
}

// SourceKey is the name the source is registered under.
func (r Registration) SourceKey() string {
	for _, candidate := range []string{r.SourceName, r.SourceCorpusname, r.Corpusname} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// Manifest is the live, mutable description of one stable system.
type Manifest struct {
	mu     sync.Mutex
	doc    Document
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Manifest.
type Option func(*Manifest)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manifest) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger attaches a logger for non-fatal inconsistencies.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manifest) {
		m.logger = logging.NewComponentLogger(logger, "manifest")
	}
}

// WithIdentity sets the optional system name and description.
func WithIdentity(name, description string) Option {
	return func(m *Manifest) {
		m.doc.System.Name = strings.TrimSpace(name)
		m.doc.System.Description = strings.TrimSpace(description)
	}
}

// New creates a manifest for a freshly created system with a new identity.
func New(opts ...Option) *Manifest {
	m := &Manifest{now: time.Now, logger: logging.NewComponentLogger(nil, "manifest")}
	m.doc.Version = Version
	for _, opt := range opts {
		opt(m)
	}
	m.doc.System.ID = uuid.NewString()
	m.doc.System.Timestamp = m.timestamp()
	return m
}

// FromDocument rebuilds a live manifest from a stored or decoded document,
// keeping its system identity. Options that set the identity are ignored.
func FromDocument(doc Document, opts ...Option) *Manifest {
	m := &Manifest{now: time.Now, logger: logging.NewComponentLogger(nil, "manifest")}
	for _, opt := range opts {
		opt(m)
	}
	m.doc = doc.Clone()
	if m.doc.Version == "" {
		m.doc.Version = Version
	}
	return m
}

func (m *Manifest) timestamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

// ID returns the system identifier.
func (m *Manifest) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.System.ID
}

// Snapshot returns a deep copy of the whole manifest.
func (m *Manifest) Snapshot() Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

// Corpus returns a copy of the named corpus entry.
func (m *Manifest) Corpus(name string) (CorpusEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.doc.Corpora[name]
	if !ok {
		return CorpusEntry{}, false
	}
	return entry.clone(), true
}

// RegisterCorpus records a corpus and one of its sources. The corpus level
// fields are set by the first registration only; a registration with a new
// source name adds a SourceEntry, one with a known source name changes nothing.
// It reports whether the manifest changed.
func (m *Manifest) RegisterCorpus(reg Registration) (bool, error) {
	corpusname := strings.TrimSpace(reg.Corpusname)
	if corpusname == "" {
		return false, services.Wrap(services.ErrValidation, "manifest", "register corpus", "corpusname is required", nil)
	}
	sourceName := reg.SourceKey()
	if err := checkName("corpus name", corpusname, reservedCorpusSegments); err != nil {
		return false, err
	}
	if err := checkName("source name", sourceName, reservedSourceSegments); err != nil {
		return false, err
	}
	sourceType := reg.Type
	if sourceType == "" {
		sourceType = SourceAPI
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.timestamp()
	if m.doc.Corpora == nil {
		m.doc.Corpora = make(map[string]CorpusEntry)
	}
	corpus, exists := m.doc.Corpora[corpusname]
	if !exists {
		corpus = CorpusEntry{Corpusname: corpusname, Timestamp: ts}
	}
	if _, ok := corpus.Sources[sourceName]; ok {
		m.logger.Debug("source already registered",
			logging.Corpus(corpusname),
			logging.Source(sourceName),
		)
		return false, nil
	}
	if corpus.Sources == nil {
		corpus.Sources = make(map[string]SourceEntry)
	}
	corpus.Sources[sourceName] = SourceEntry{
		Type:       sourceType,
		Corpusname: strings.TrimSpace(reg.SourceCorpusname),
		URL:        strings.TrimSpace(reg.URL),
		Commit:     strings.TrimSpace(reg.Commit),
		Timestamp:  ts,
	}
	m.doc.Corpora[corpusname] = corpus
	return true, nil
}

// RecordCopiedItemCount sets the number of items successfully copied from a source.
func (m *Manifest) RecordCopiedItemCount(corpus, source string, count int) error {
	if count < 0 {
		return services.Wrap(services.ErrValidation, "manifest", "record count", fmt.Sprintf("negative count %d", count), nil)
	}
	return m.updateSource(corpus, source, func(src *SourceEntry) {
		src.NumOfPlays = IntPtr(count)
	})
}

// ExcludeItem adds id to the exclude filter of a source. An id kind that
// differs from the kind already stored is logged and leaves the filter as is.
func (m *Manifest) ExcludeItem(corpus, source, idKind, id string) error {
	if err := checkToken("id", id); err != nil {
		return err
	}
	return m.updateSource(corpus, source, func(src *SourceEntry) {
		src.Exclude = m.addToFilter(src.Exclude, "exclude", corpus, source, idKind, id)
	})
}

// IncludeItem adds id to the include filter of a source, with the same kind
// rules as ExcludeItem.
func (m *Manifest) IncludeItem(corpus, source, idKind, id string) error {
	if err := checkToken("id", id); err != nil {
		return err
	}
	return m.updateSource(corpus, source, func(src *SourceEntry) {
		src.Include = m.addToFilter(src.Include, "include", corpus, source, idKind, id)
	})
}

// SetCorpusItemCount records the item count the local service reports for a corpus.
func (m *Manifest) SetCorpusItemCount(corpus string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.doc.Corpora[corpus]
	if !ok {
		return &NotRegisteredError{Corpus: corpus}
	}
	entry.NumOfPlays = IntPtr(count)
	m.doc.Corpora[corpus] = entry
	return nil
}

// SetService records or replaces the container and image of a service.
func (m *Manifest) SetService(name, container, image string) {
	m.mutateService(name, func(svc *ServiceEntry) {
		svc.Container = strings.TrimSpace(container)
		svc.Image = strings.TrimSpace(image)
	})
}

// SetServiceImage records a newly built image for a service together with the
// image it was derived from.
func (m *Manifest) SetServiceImage(name, image, baseImage string) {
	m.mutateService(name, func(svc *ServiceEntry) {
		svc.Image = strings.TrimSpace(image)
		svc.BaseImage = strings.TrimSpace(baseImage)
	})
}

// SetAPIInfo records the versions reported by the api service.
func (m *Manifest) SetAPIInfo(version, existdb string) {
	m.mutateService(ServiceAPI, func(svc *ServiceEntry) {
		svc.Version = strings.TrimSpace(version)
		svc.ExistDB = strings.TrimSpace(existdb)
	})
}

// Services returns a copy of the service registry.
func (m *Manifest) Services() map[string]ServiceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone().Services
}

func (m *Manifest) mutateService(name string, fn func(*ServiceEntry)) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !IsCanonicalService(name) {
		m.logger.Info("registering non-canonical service", logging.String("service", name))
	}
	if m.doc.Services == nil {
		m.doc.Services = make(map[string]ServiceEntry)
	}
	svc := m.doc.Services[name]
	fn(&svc)
	m.doc.Services[name] = svc
}

func (m *Manifest) updateSource(corpus, source string, fn func(*SourceEntry)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.doc.Corpora[corpus]
	if !ok {
		return &NotRegisteredError{Corpus: corpus, Source: source}
	}
	src, ok := entry.Sources[source]
	if !ok {
		return &NotRegisteredError{Corpus: corpus, Source: source}
	}
	fn(&src)
	entry.Sources[source] = src
	m.doc.Corpora[corpus] = entry
	return nil
}

func (m *Manifest) addToFilter(filter *SelectionFilter, kind, corpus, source, idKind, id string) *SelectionFilter {
	idKind = strings.TrimSpace(idKind)
	if idKind == "" {
		idKind = DefaultIDKind
	}
	if filter == nil {
		return &SelectionFilter{Type: idKind, IDs: []string{id}}
	}
	if filter.Type != idKind {
		logging.WarnWithContext(m.logger, "selection filter id kind mismatch; id not recorded", "filter_kind_conflict",
			logging.Corpus(corpus),
			logging.Source(source),
			logging.String("filter", kind),
			logging.String("filter_type", filter.Type),
			logging.String("requested_type", idKind),
			logging.String("id", id),
			logging.String(logging.FieldErrorHint, "use the id kind already stored for this source"),
			logging.String(logging.FieldImpact, "manifest does not list the item"),
		)
		return filter
	}
	if !filter.Contains(id) {
		filter.IDs = append(filter.IDs, id)
	}
	return filter
}
