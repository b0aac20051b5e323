package replication

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sys/unix"

	"stabledracor/internal/dracor"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

// DefaultPattern selects the TEI files of a directory.
const DefaultPattern = "*.xml"

// DirectorySource copies TEI files from a local directory into a corpus.
type DirectorySource struct {
	dir     string
	corpus  string
	pattern string
	meta    dracor.CorpusMetadata

	files []string
}

// DirectoryOption configures a DirectorySource.
type DirectoryOption func(*DirectorySource)

// WithPattern overrides the glob selecting files, e.g. "**/*.xml".
func WithPattern(pattern string) DirectoryOption {
	return func(s *DirectorySource) {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			s.pattern = pattern
		}
	}
}

// WithCorpusMetadata sets the metadata used when the corpus is created.
func WithCorpusMetadata(meta map[string]any) DirectoryOption {
	return func(s *DirectorySource) { s.meta = dracor.CorpusMetadata(meta) }
}

// NewDirectorySource returns a source reading dir into corpus.
func NewDirectorySource(dir, corpus string, opts ...DirectoryOption) *DirectorySource {
	s := &DirectorySource{dir: dir, corpus: strings.TrimSpace(corpus), pattern: DefaultPattern}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metadata lists the matching files and returns the corpus metadata.
func (s *DirectorySource) Metadata(context.Context) (dracor.CorpusMetadata, error) {
	if err := unix.Access(s.dir, unix.R_OK|unix.X_OK); err != nil {
		return nil, services.Wrap(services.ErrValidation, "replication", "read directory", s.dir+" is not readable", err)
	}
	if !doublestar.ValidatePattern(s.pattern) {
		return nil, services.Wrap(services.ErrValidation, "replication", "match files", "invalid pattern "+s.pattern, nil)
	}
	files, err := doublestar.Glob(os.DirFS(s.dir), s.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "replication", "match files", s.dir, err)
	}
	slices.Sort(files)
	s.files = files

	meta := dracor.CorpusMetadata{"name": s.corpus, "title": "No title provided."}
	if s.meta != nil {
		meta = meta.Merge(s.meta)
	}
	if s.corpus != "" {
		meta["name"] = s.corpus
	}
	return meta, nil
}

// Provenance names the source after the file set: the first eight hex
// digits of the SHA-1 of the comma-joined file names.
func (s *DirectorySource) Provenance(dracor.CorpusMetadata) Provenance {
	return Provenance{Name: FileSetName(s.files), Type: manifest.SourceFiles}
}

func (s *DirectorySource) Items(dracor.CorpusMetadata) []Item {
	items := make([]Item, 0, len(s.files))
	for _, file := range s.files {
		items = append(items, Item{Name: slugFromFile(file), Ref: file})
	}
	return items
}

// Fetch reads the file and checks that it is well-formed.
func (s *DirectorySource) Fetch(_ context.Context, item Item) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(item.Ref)))
	if err != nil {
		return nil, err
	}
	if err := checkWellFormed(item.Ref, data); err != nil {
		return nil, err
	}
	return data, nil
}

// FileSetName returns the source name of a set of files.
func FileSetName(files []string) string {
	sum := sha1.Sum([]byte(strings.Join(files, ",")))
	return hex.EncodeToString(sum[:])[:8]
}
