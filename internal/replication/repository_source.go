package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"stabledracor/internal/dracor"
	"stabledracor/internal/github"
	"stabledracor/internal/logging"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

// DefaultDataFolder holds the TEI files in DraCor corpus repositories.
const DefaultDataFolder = "tei"

// Repository is the GitHub access used by RepositorySource.
type Repository interface {
	LatestCommit(ctx context.Context, repo github.Repository) (string, error)
	RootFile(ctx context.Context, repo github.Repository, ref, name string) ([]byte, error)
	ListFiles(ctx context.Context, repo github.Repository, ref, folder string) ([]string, error)
	RawFile(ctx context.Context, repo github.Repository, ref, path string) ([]byte, error)
}

// RepositorySource copies a corpus from a GitHub repository at one commit.
// Metadata comes from corpus.xml in the repository root; plays are the
// files of the data folder.
type RepositorySource struct {
	client       Repository
	repo         github.Repository
	commit       string
	folder       string
	useCorpusXML bool
	logger       *slog.Logger

	upstreamName string
	files        []string
}

// RepositoryOption configures a RepositorySource.
type RepositoryOption func(*RepositorySource)

// WithCommit pins the commit. The latest commit is used otherwise.
func WithCommit(commit string) RepositoryOption {
	return func(s *RepositorySource) { s.commit = strings.TrimSpace(commit) }
}

// WithDataFolder overrides the folder holding the TEI files.
func WithDataFolder(folder string) RepositoryOption {
	return func(s *RepositorySource) {
		if folder = strings.Trim(strings.TrimSpace(folder), "/"); folder != "" {
			s.folder = folder
		}
	}
}

// WithoutCorpusXML ignores corpus.xml and uses fallback metadata.
func WithoutCorpusXML() RepositoryOption {
	return func(s *RepositorySource) { s.useCorpusXML = false }
}

// WithRepositoryLogger attaches a logger.
func WithRepositoryLogger(logger *slog.Logger) RepositoryOption {
	return func(s *RepositorySource) { s.logger = logging.NewComponentLogger(logger, "repository") }
}

// NewRepositorySource returns a source for repo.
func NewRepositorySource(client Repository, repo github.Repository, opts ...RepositoryOption) *RepositorySource {
	s := &RepositorySource{
		client:       client,
		repo:         repo,
		folder:       DefaultDataFolder,
		useCorpusXML: true,
		logger:       logging.NewComponentLogger(nil, "repository"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commit returns the resolved commit once Metadata has run.
func (s *RepositorySource) Commit() string {
	return s.commit
}

// Metadata resolves the commit, reads corpus.xml and lists the data folder.
func (s *RepositorySource) Metadata(ctx context.Context) (dracor.CorpusMetadata, error) {
	if s.commit == "" {
		commit, err := s.client.LatestCommit(ctx, s.repo)
		if err != nil {
			return nil, err
		}
		s.commit = commit
		s.logger.Debug("resolved latest commit", logging.String("repository", s.repo.String()), logging.String("commit", commit))
	}

	meta := dracor.CorpusMetadata{}
	if s.useCorpusXML {
		data, err := s.client.RootFile(ctx, s.repo, s.commit, "corpus.xml")
		switch {
		case errors.Is(err, services.ErrNotFound):
			logging.WarnWithContext(s.logger, "repository has no corpus.xml", "corpus_xml_missing",
				logging.String("repository", s.repo.String()),
				logging.String(logging.FieldImpact, "corpus is created with placeholder metadata"),
			)
		case err != nil:
			return nil, err
		default:
			parsed, err := parseCorpusXML(data)
			if err != nil {
				return nil, err
			}
			meta = parsed
		}
	}
	if name := meta.Name(); name != "" {
		s.upstreamName = name
	} else {
		meta["name"] = s.repo.Name
		if _, ok := meta["title"]; !ok {
			meta["title"] = "No title provided"
			meta["description"] = "Corpus was created automatically during import of corpus repository from GitHub. " +
				"The repository did not contain a corpus.xml file with corpus metadata."
		}
	}

	files, err := s.client.ListFiles(ctx, s.repo, s.commit, s.folder)
	if err != nil {
		return nil, fmt.Errorf("list %s of %s: %w", s.folder, s.repo, err)
	}
	s.files = files
	return meta, nil
}

// Provenance registers the source under the corpus name from corpus.xml,
// or the repository name when it has none.
func (s *RepositorySource) Provenance(dracor.CorpusMetadata) Provenance {
	name := s.upstreamName
	if name == "" {
		name = s.repo.Name
	}
	return Provenance{
		Name:       name,
		Corpusname: s.upstreamName,
		Type:       manifest.SourceRepository,
		URL:        s.repo.WebURL(),
		Commit:     s.commit,
	}
}

func (s *RepositorySource) Items(dracor.CorpusMetadata) []Item {
	items := make([]Item, 0, len(s.files))
	for _, file := range s.files {
		items = append(items, Item{Name: slugFromFile(file), Ref: file})
	}
	return items
}

// Fetch downloads the raw file and checks that it is well-formed.
func (s *RepositorySource) Fetch(ctx context.Context, item Item) ([]byte, error) {
	data, err := s.client.RawFile(ctx, s.repo, s.commit, s.folder+"/"+item.Ref)
	if err != nil {
		return nil, err
	}
	if err := checkWellFormed(item.Ref, data); err != nil {
		return nil, err
	}
	return data, nil
}
