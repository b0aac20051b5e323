package replication

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stabledracor/internal/dracor"
	"stabledracor/internal/logging"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

// LocalService is the subset of the DraCor API the pipeline writes to.
type LocalService interface {
	AddCorpus(ctx context.Context, meta dracor.CorpusMetadata) (bool, error)
	Corpus(ctx context.Context, name string) (dracor.CorpusMetadata, error)
	Play(ctx context.Context, corpus, play string) (map[string]any, error)
	PutPlayTEI(ctx context.Context, corpus, play string, tei []byte) error
	DeleteCorpus(ctx context.Context, corpus string) (bool, error)
	DeletePlay(ctx context.Context, corpus, play string) (bool, error)
}

// Options controls one Run.
type Options struct {
	// Overrides replace fields of the source metadata before the local
	// corpus is created. {"name": "x"} renames the corpus.
	Overrides map[string]any
	// Exclude names items that are never fetched.
	Exclude []string
	// Include limits the run to the named items when non-empty.
	Include []string
	// MetadataOnly creates and registers the corpus without copying items.
	MetadataOnly bool
	// Verify refetches the local corpus and compares its play count.
	Verify bool
	// RecordFailedAsExcluded also adds failed items to the exclude filter.
	RecordFailedAsExcluded bool
	// IDKind tags recorded ids. Defaults to manifest.DefaultIDKind.
	IDKind string
}

// Pipeline copies corpora into one local service and records them in one
// manifest.
type Pipeline struct {
	local    LocalService
	manifest *manifest.Manifest
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logging.NewComponentLogger(logger, "replication")
	}
}

// New returns a pipeline writing to local and recording into m.
func New(local LocalService, m *manifest.Manifest, opts ...Option) *Pipeline {
	p := &Pipeline{
		local:    local,
		manifest: m,
		logger:   logging.NewComponentLogger(nil, "replication"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run performs one copy operation. A returned error is always a
// *FatalOperationError; partial failures are reported in the Result only.
func (p *Pipeline) Run(ctx context.Context, src Source, opts Options) (Result, error) {
	res := Result{}
	res.enter(StateInit)
	logger := logging.WithContext(ctx, p.logger)

	meta, err := src.Metadata(ctx)
	if err != nil {
		return p.abort(logger, &res, StateMetadataFetched, err)
	}
	res.enter(StateMetadataFetched)

	target := meta.Merge(opts.Overrides)
	corpus := target.Name()
	if corpus == "" {
		return p.abort(logger, &res, StateMetadataFetched,
			services.Wrap(services.ErrValidation, "replication", "resolve corpus", "metadata has no corpus name", nil))
	}
	res.Corpus = corpus
	ctx = services.WithCorpus(ctx, corpus)
	logger = logging.WithContext(ctx, p.logger)

	created, err := p.local.AddCorpus(ctx, target)
	if err != nil {
		return p.abort(logger, &res, StateLocalCollectionEnsured, err)
	}
	res.Created = created
	if created {
		p.checkCreated(ctx, logger, target)
	} else {
		logging.WarnWithContext(logger, "corpus already exists", "corpus_exists",
			logging.String(logging.FieldImpact, "plays are added to the existing corpus"),
			logging.String(logging.FieldErrorHint, "remove the corpus first for a clean copy"),
		)
	}
	res.enter(StateLocalCollectionEnsured)

	prov := src.Provenance(meta)
	reg := manifest.Registration{
		Corpusname:       corpus,
		SourceName:       prov.Name,
		SourceCorpusname: prov.Corpusname,
		Type:             prov.Type,
		URL:              prov.URL,
		Commit:           prov.Commit,
	}
	fresh, err := p.manifest.RegisterCorpus(reg)
	if err != nil {
		return p.abort(logger, &res, StateRegistered, err)
	}
	res.Source = reg.SourceKey()
	ctx = services.WithSource(ctx, res.Source)
	logger = logging.WithContext(ctx, p.logger)
	res.enter(StateRegistered)

	items := src.Items(meta)
	res.enter(StateItemsEnumerated)
	logger.Info("roster enumerated",
		logging.Int("plays", len(items)),
		logging.Int("excluded", len(opts.Exclude)),
		logging.Int("included", len(opts.Include)),
	)

	// A source first registered by an include run is scoped to those items.
	scoped := fresh && len(opts.Include) > 0
	if !opts.MetadataOnly {
		res.enter(StatePerItemCopy)
		copyCtx := services.WithStage(ctx, string(StatePerItemCopy))
		p.copyItems(copyCtx, logging.WithContext(copyCtx, p.logger), src, items, opts, &res)
		if attempted := res.Copied + len(res.Failed); attempted > 0 {
			if err := p.manifest.RecordCopiedItemCount(corpus, res.Source, p.sourceCount(items, opts, &res, scoped)); err != nil {
				return p.abort(logger, &res, StatePerItemCopy, err)
			}
		}
		if scoped {
			p.recordIncluded(logger, opts, &res)
		}
	}

	if opts.Verify {
		expected := 0
		if !opts.MetadataOnly {
			expected = p.expectedPlays(items, opts, &res, scoped)
		}
		verifyCtx := services.WithStage(ctx, string(StateVerified))
		res.Verification = p.verify(verifyCtx, logging.WithContext(verifyCtx, p.logger), corpus, expected, !opts.MetadataOnly)
		res.enter(StateVerified)
	}

	res.finish()
	p.logResult(logger, res)
	return res, nil
}

func (p *Pipeline) copyItems(ctx context.Context, logger *slog.Logger, src Source, items []Item, opts Options, res *Result) {
	idKind := opts.IDKind
	if idKind == "" {
		idKind = manifest.DefaultIDKind
	}
	for _, item := range items {
		if len(opts.Include) > 0 && !matchesAny(item, opts.Include) {
			res.Items = append(res.Items, ItemResult{Item: item, Status: ItemSkipped})
			continue
		}
		itemLogger := logger.With(logging.Play(item.Name))

		if matchesAny(item, opts.Exclude) {
			itemLogger.Debug("play excluded")
			if err := p.manifest.ExcludeItem(res.Corpus, res.Source, idKind, item.Name); err != nil {
				itemLogger.Error("record exclusion failed", logging.Error(err))
			}
			res.Items = append(res.Items, ItemResult{Item: item, Status: ItemExcluded})
			res.Excluded = append(res.Excluded, item.Name)
			continue
		}

		if err := p.copyItem(ctx, src, res.Corpus, item); err != nil {
			hint := "retry the failed plays with --include"
			if !services.Retryable(err) {
				hint = "check the local credentials and the play file, then retry with --include"
			}
			logging.WarnWithContext(itemLogger, "play copy failed", "play_copy_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "play is missing from the local corpus"),
				logging.String(logging.FieldErrorHint, hint),
			)
			res.Items = append(res.Items, ItemResult{Item: item, Status: ItemFailed, Err: err})
			res.Failed = append(res.Failed, item.Name)
			if opts.RecordFailedAsExcluded {
				if err := p.manifest.ExcludeItem(res.Corpus, res.Source, idKind, item.Name); err != nil {
					itemLogger.Error("record exclusion failed", logging.Error(err))
				}
			}
			continue
		}
		itemLogger.Debug("play copied")
		res.Items = append(res.Items, ItemResult{Item: item, Status: ItemCopied})
		res.Copied++
	}
}

// sourceCount is the play count recorded for the run's source. An include run
// against a source copied before adds to the stored count instead of
// replacing it, bounded by the roster.
func (p *Pipeline) sourceCount(items []Item, opts Options, res *Result, scoped bool) int {
	if len(opts.Include) == 0 || scoped {
		return res.Copied
	}
	prev := 0
	if entry, ok := p.sourceEntry(res); ok && entry.NumOfPlays != nil {
		prev = *entry.NumOfPlays
	}
	return min(prev+res.Copied, len(items))
}

// recordIncluded lists the items an include run selected in the include
// filter of the source it introduced.
func (p *Pipeline) recordIncluded(logger *slog.Logger, opts Options, res *Result) {
	idKind := opts.IDKind
	if idKind == "" {
		idKind = manifest.DefaultIDKind
	}
	for _, r := range res.Items {
		if r.Status == ItemSkipped || r.Status == ItemExcluded {
			continue
		}
		if err := p.manifest.IncludeItem(res.Corpus, res.Source, idKind, r.Item.Name); err != nil {
			logger.Error("record inclusion failed", logging.Play(r.Item.Name), logging.Error(err))
		}
	}
}

// expectedPlays is the number of roster items the local corpus should hold:
// the roster minus caller exclusions and ids already recorded as excluded.
// Items attempted in this run always count, so a failure shows up in the
// count as well. A scoped source only expects its included items.
func (p *Pipeline) expectedPlays(items []Item, opts Options, res *Result, scoped bool) int {
	attempted := make(map[string]bool, len(res.Items))
	for _, r := range res.Items {
		if r.Status == ItemCopied || r.Status == ItemFailed {
			attempted[r.Item.Name] = true
		}
	}
	var recorded []string
	if entry, ok := p.sourceEntry(res); ok && entry.Exclude != nil {
		recorded = entry.Exclude.IDs
	}
	n := 0
	for _, item := range items {
		switch {
		case scoped && !matchesAny(item, opts.Include):
		case attempted[item.Name]:
			n++
		case matchesAny(item, opts.Exclude), matchesAny(item, recorded):
		default:
			n++
		}
	}
	return n
}

func (p *Pipeline) sourceEntry(res *Result) (manifest.SourceEntry, bool) {
	entry, ok := p.manifest.Corpus(res.Corpus)
	if !ok {
		return manifest.SourceEntry{}, false
	}
	src, ok := entry.Sources[res.Source]
	return src, ok
}

func (p *Pipeline) copyItem(ctx context.Context, src Source, corpus string, item Item) error {
	tei, err := src.Fetch(ctx, item)
	if err != nil {
		return &ItemCopyError{Corpus: corpus, Item: item.Name, Step: "fetch", Err: err}
	}
	if err := p.local.PutPlayTEI(ctx, corpus, item.Name, tei); err != nil {
		return &ItemCopyError{Corpus: corpus, Item: item.Name, Step: "store", Err: err}
	}
	return nil
}

// checkCreated compares a freshly created corpus with the metadata that was
// sent. Differences are logged, never fatal.
func (p *Pipeline) checkCreated(ctx context.Context, logger *slog.Logger, want dracor.CorpusMetadata) {
	got, err := p.local.Corpus(ctx, want.Name())
	if err != nil {
		logger.Debug("created corpus not readable yet", logging.Error(err))
		return
	}
	if diff := got.MismatchedFields(want); len(diff) > 0 {
		logging.WarnWithContext(logger, "created corpus metadata differs", "corpus_metadata_mismatch",
			logging.Strings("fields", diff),
			logging.String(logging.FieldImpact, "local corpus metadata is not an exact copy"),
		)
	}
}

func (p *Pipeline) verify(ctx context.Context, logger *slog.Logger, corpus string, expected int, count bool) Verification {
	v := Verification{Performed: true, Counted: count, Expected: expected}
	local, err := p.local.Corpus(ctx, corpus)
	if err != nil {
		logging.WarnWithContext(logger, "local corpus not available for verification", "verification_unreachable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "copy result could not be confirmed"),
		)
		return v
	}
	v.Reachable = true
	if !count {
		return v
	}
	v.Actual = len(local.Roster())
	if v.Actual != v.Expected {
		logging.WarnWithContext(logger, "local play count differs from expected", "verification_mismatch",
			logging.Int("expected", v.Expected),
			logging.Int("actual", v.Actual),
			logging.String(logging.FieldImpact, "not all requested plays are stored locally"),
			logging.String(logging.FieldErrorHint, "check the log for failed plays and retry them"),
		)
	}
	return v
}

func (p *Pipeline) abort(logger *slog.Logger, res *Result, stage State, err error) (Result, error) {
	fatal := &FatalOperationError{Corpus: res.Corpus, Stage: stage, Err: err}
	res.enter(StateFailed)
	res.Outcome = services.OutcomeFailed
	logging.ErrorWithContext(logger, "corpus copy aborted", "copy_aborted",
		logging.String(logging.FieldStage, string(stage)),
		logging.Error(err),
	)
	return *res, fatal
}

func (p *Pipeline) logResult(logger *slog.Logger, res Result) {
	attrs := []logging.Attr{
		logging.String("outcome", string(res.Outcome)),
		logging.Int("copied", res.Copied),
		logging.Int("failed", len(res.Failed)),
		logging.Int("excluded", len(res.Excluded)),
	}
	if res.Verification.Performed && res.Verification.Counted {
		attrs = append(attrs, logging.String("verification", fmt.Sprintf("%d/%d", res.Verification.Actual, res.Verification.Expected)))
	}
	if len(res.Failed) > 0 {
		attrs = append(attrs, logging.String("failed_plays", strings.Join(res.Failed, ", ")))
	}
	logger.Info("corpus copy finished", logging.Args(attrs...)...)
}
