package system

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"stabledracor/internal/github"
	"stabledracor/internal/journal"
	"stabledracor/internal/manifest"
	"stabledracor/internal/replication"
	"stabledracor/internal/services"
)

// CopyRequest copies one corpus from a remote DraCor API.
type CopyRequest struct {
	Corpus string
	// Source is a URL or an alias; see Remote.
	Source  string
	Options replication.Options
}

// RepositoryRequest imports a corpus from a GitHub repository.
type RepositoryRequest struct {
	// Repository is "name" (owner from config) or "owner/name".
	Repository string
	// Commit defaults to the latest commit.
	Commit        string
	DataFolder    string
	SkipCorpusXML bool
	Options       replication.Options
}

// DirectoryRequest imports the TEI files of a local directory.
type DirectoryRequest struct {
	Dir     string
	Corpus  string
	Pattern string
	// Metadata is merged into the generated corpus metadata.
	Metadata map[string]any
	Options  replication.Options
}

// Outcome is the result of one replication together with its journal id.
type Outcome struct {
	replication.Result
	RunID string
}

// Copy replicates a corpus from a remote DraCor API.
func (s *System) Copy(ctx context.Context, req CopyRequest) (Outcome, error) {
	corpus := strings.TrimSpace(req.Corpus)
	if corpus == "" {
		return Outcome{}, services.Wrap(services.ErrValidation, "system", "copy", "corpus name is required", nil)
	}
	src := replication.NewAPISource(s.Remote(req.Source), corpus)
	return s.replicate(ctx, journal.OperationCopy, src, req.Options)
}

// AddRepository imports a corpus from a GitHub repository. Files that fail
// to copy are also recorded in the exclude filter of the source.
func (s *System) AddRepository(ctx context.Context, req RepositoryRequest) (Outcome, error) {
	repo, err := s.ParseRepository(req.Repository)
	if err != nil {
		return Outcome{}, err
	}
	folder := req.DataFolder
	if strings.TrimSpace(folder) == "" {
		folder = s.cfg.GitHub.DataFolder
	}
	opts := []replication.RepositoryOption{
		replication.WithDataFolder(folder),
		replication.WithRepositoryLogger(s.base),
	}
	if req.Commit != "" {
		opts = append(opts, replication.WithCommit(req.Commit))
	}
	if req.SkipCorpusXML {
		opts = append(opts, replication.WithoutCorpusXML())
	}
	src := replication.NewRepositorySource(s.github, repo, opts...)
	runOpts := req.Options
	runOpts.RecordFailedAsExcluded = true
	return s.replicate(ctx, journal.OperationRepo, src, runOpts)
}

// AddDirectory imports a corpus from TEI files on disk.
func (s *System) AddDirectory(ctx context.Context, req DirectoryRequest) (Outcome, error) {
	var opts []replication.DirectoryOption
	if req.Pattern != "" {
		opts = append(opts, replication.WithPattern(req.Pattern))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, replication.WithCorpusMetadata(req.Metadata))
	}
	src := replication.NewDirectorySource(req.Dir, req.Corpus, opts...)
	return s.replicate(ctx, journal.OperationDirectory, src, req.Options)
}

// AddPlay stores one play version from a repository. Owner and data folder
// default to the configured values.
func (s *System) AddPlay(ctx context.Context, req replication.PlayVersionRequest) (replication.PlayVersionResult, error) {
	if req.Repository.Owner == "" {
		req.Repository.Owner = s.cfg.GitHub.Owner
	}
	if req.DataFolder == "" {
		req.DataFolder = s.cfg.GitHub.DataFolder
	}
	if err := s.Ready(ctx); err != nil {
		return replication.PlayVersionResult{}, err
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	started := s.now()
	var res replication.PlayVersionResult
	_, err := s.update(ctx, func(m *manifest.Manifest) error {
		var runErr error
		res, runErr = s.pipeline(m).AddPlayVersion(ctx, s.github, req)
		return runErr
	})

	run := journal.Run{
		ID:        runID,
		Operation: journal.OperationPlay,
		Corpus:    res.Corpus,
		Source:    res.Source,
		StartedAt: started,
		Outcome:   services.OutcomeFor(err),
		State:     string(replication.StateDone),
	}
	if err != nil {
		run.State = string(replication.StateFailed)
		run.Error = err.Error()
		if run.Corpus == "" {
			run.Corpus = req.Corpus
		}
	} else {
		run.Copied = 1
		run.Items = []journal.RunItem{{Play: res.Play, Status: string(replication.ItemCopied)}}
	}
	s.record(ctx, run)
	return res, err
}

// RemoveCorpus deletes a corpus from the local API. The manifest keeps its
// entry.
func (s *System) RemoveCorpus(ctx context.Context, corpus string) (bool, error) {
	if err := s.Ready(ctx); err != nil {
		return false, err
	}
	m, err := s.state.Current(s.manifestOptions()...)
	if err != nil {
		return false, err
	}
	return s.pipeline(m).RemoveCorpus(ctx, corpus)
}

// RemovePlay deletes one play from the local API. The manifest keeps its
// entry.
func (s *System) RemovePlay(ctx context.Context, corpus, play string) (bool, error) {
	if err := s.Ready(ctx); err != nil {
		return false, err
	}
	m, err := s.state.Current(s.manifestOptions()...)
	if err != nil {
		return false, err
	}
	return s.pipeline(m).RemovePlay(ctx, corpus, play)
}

// SetService records the container and image of a service.
func (s *System) SetService(ctx context.Context, name, container, image string) (manifest.ServiceEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return manifest.ServiceEntry{}, services.Wrap(services.ErrValidation, "system", "set service", "service name is required", nil)
	}
	doc, err := s.update(ctx, func(m *manifest.Manifest) error {
		m.SetService(name, container, image)
		return nil
	})
	if err != nil {
		return manifest.ServiceEntry{}, err
	}
	return doc.Services[name], nil
}

// ParseRepository accepts "name" or "owner/name".
func (s *System) ParseRepository(ref string) (github.Repository, error) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	if ref == "" {
		return github.Repository{}, services.Wrap(services.ErrValidation, "system", "parse repository", "repository is required", nil)
	}
	owner, name, found := strings.Cut(ref, "/")
	if !found {
		return github.Repository{Owner: s.cfg.GitHub.Owner, Name: ref}, nil
	}
	if owner == "" || name == "" || strings.Contains(name, "/") {
		return github.Repository{}, services.Wrap(services.ErrValidation, "system", "parse repository", "expected owner/name, got "+ref, nil)
	}
	return github.Repository{Owner: owner, Name: name}, nil
}

func (s *System) replicate(ctx context.Context, op journal.Operation, src replication.Source, opts replication.Options) (Outcome, error) {
	if err := s.Ready(ctx); err != nil {
		s.record(ctx, journal.Run{
			Operation: op,
			State:     string(replication.StateInit),
			Outcome:   services.OutcomeFailed,
			Error:     err.Error(),
			StartedAt: s.now(),
		})
		return Outcome{}, err
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	started := s.now()
	var res replication.Result
	_, err := s.update(ctx, func(m *manifest.Manifest) error {
		var runErr error
		res, runErr = s.pipeline(m).Run(ctx, src, opts)
		return runErr
	})

	run := journal.FromResult(op, res, err, started)
	run.ID = runID
	out := Outcome{Result: res}
	out.RunID = s.record(ctx, run)
	return out, err
}
