package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stabledracor/internal/dracor"
	"stabledracor/internal/github"
	"stabledracor/internal/logging"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

// PlayVersionRequest selects one file of a repository at a commit.
type PlayVersionRequest struct {
	Repository github.Repository
	// Filename is the file in the data folder; ".xml" is appended when missing.
	Filename string
	// Commit defaults to the latest commit.
	Commit     string
	DataFolder string
	// Corpus defaults to the repository name.
	Corpus string
	// Play defaults to the file name without extension.
	Play string
}

// PlayVersionResult describes an added play.
type PlayVersionResult struct {
	Corpus        string
	Play          string
	Source        string
	Commit        string
	URL           string
	CreatedCorpus bool
}

// AddPlayVersion stores one play from a repository at a commit, creating
// the corpus when it does not exist. The play is recorded in the include
// filter of a repository source named after the repository and commit.
func (p *Pipeline) AddPlayVersion(ctx context.Context, client Repository, req PlayVersionRequest) (PlayVersionResult, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return PlayVersionResult{}, services.Wrap(services.ErrValidation, "replication", "add play", "filename is required", nil)
	}
	if !strings.HasSuffix(filename, ".xml") {
		filename += ".xml"
	}
	folder := strings.Trim(strings.TrimSpace(req.DataFolder), "/")
	if folder == "" {
		folder = DefaultDataFolder
	}
	res := PlayVersionResult{
		Corpus: strings.TrimSpace(req.Corpus),
		Play:   strings.TrimSpace(req.Play),
		Commit: strings.TrimSpace(req.Commit),
	}
	if res.Corpus == "" {
		res.Corpus = req.Repository.Name
	}
	if res.Play == "" {
		res.Play = slugFromFile(filename)
	}
	ctx = services.WithCorpus(ctx, res.Corpus)
	logger := logging.WithContext(ctx, p.logger).With(logging.Play(res.Play))

	if res.Commit == "" {
		commit, err := client.LatestCommit(ctx, req.Repository)
		if err != nil {
			return res, &FatalOperationError{Corpus: res.Corpus, Stage: StateMetadataFetched, Err: err}
		}
		res.Commit = commit
	}
	path := folder + "/" + filename
	res.URL = req.Repository.WebURL() + "/blob/" + res.Commit + "/" + path

	tei, err := client.RawFile(ctx, req.Repository, res.Commit, path)
	if err == nil {
		err = checkWellFormed(filename, tei)
	}
	if err != nil {
		return res, &ItemCopyError{Corpus: res.Corpus, Item: res.Play, Step: "fetch", Err: err}
	}

	created, err := p.ensureCorpus(ctx, res.Corpus)
	if err != nil {
		return res, &FatalOperationError{Corpus: res.Corpus, Stage: StateLocalCollectionEnsured, Err: err}
	}
	res.CreatedCorpus = created

	if err := p.local.PutPlayTEI(ctx, res.Corpus, res.Play, tei); err != nil {
		return res, &ItemCopyError{Corpus: res.Corpus, Item: res.Play, Step: "store", Err: err}
	}
	if _, err := p.local.Play(ctx, res.Corpus, res.Play); err != nil {
		return res, &ItemCopyError{Corpus: res.Corpus, Item: res.Play, Step: "store", Err: fmt.Errorf("play not found after upload: %w", err)}
	}

	res.Source = req.Repository.Name + "-" + shortCommit(res.Commit)
	if _, err := p.manifest.RegisterCorpus(manifest.Registration{
		Corpusname: res.Corpus,
		SourceName: res.Source,
		Type:       manifest.SourceRepository,
		URL:        req.Repository.WebURL(),
		Commit:     res.Commit,
	}); err != nil {
		return res, err
	}
	if err := p.manifest.IncludeItem(res.Corpus, res.Source, manifest.DefaultIDKind, res.Play); err != nil {
		return res, err
	}
	if entry, ok := p.manifest.Corpus(res.Corpus); ok {
		if src, ok := entry.Sources[res.Source]; ok && src.Include != nil {
			if err := p.manifest.RecordCopiedItemCount(res.Corpus, res.Source, len(src.Include.IDs)); err != nil {
				return res, err
			}
		}
	}
	logger.Info("play version added",
		logging.String("commit", res.Commit),
		logging.String("url", res.URL),
	)
	return res, nil
}

func (p *Pipeline) ensureCorpus(ctx context.Context, corpus string) (bool, error) {
	_, err := p.local.Corpus(ctx, corpus)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return false, err
	}
	return p.local.AddCorpus(ctx, dracor.CorpusMetadata{
		"name":        corpus,
		"title":       "Automatically generated corpus",
		"description": "This corpus has been created automatically because it did not exist during an import operation.",
	})
}

// RemoveCorpus deletes a corpus from the local service. It reports false
// when the corpus does not exist. The manifest keeps its entry.
func (p *Pipeline) RemoveCorpus(ctx context.Context, corpus string) (bool, error) {
	logger := logging.WithContext(services.WithCorpus(ctx, corpus), p.logger)
	removed, err := p.local.DeleteCorpus(ctx, corpus)
	if err != nil {
		return false, err
	}
	if !removed {
		logging.WarnWithContext(logger, "corpus not found", "corpus_missing",
			logging.String(logging.FieldImpact, "nothing was removed"),
		)
		return false, nil
	}
	logger.Info("corpus removed")
	return true, nil
}

// RemovePlay deletes one play, with the same rules as RemoveCorpus.
func (p *Pipeline) RemovePlay(ctx context.Context, corpus, play string) (bool, error) {
	logger := logging.WithContext(services.WithCorpus(ctx, corpus), p.logger).With(logging.Play(play))
	removed, err := p.local.DeletePlay(ctx, corpus, play)
	if err != nil {
		return false, err
	}
	if !removed {
		logging.WarnWithContext(logger, "play not found", "play_missing",
			logging.String(logging.FieldImpact, "nothing was removed"),
		)
		return false, nil
	}
	logger.Info("play removed")
	return true, nil
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
