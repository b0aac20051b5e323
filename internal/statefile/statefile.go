// Package statefile persists the manifest of the local system as JSON.
//
// The file lives at <state_dir>/manifest.json and is validated against an
// embedded JSON Schema on every load and save. Commands that change the
// manifest go through Update, which holds an exclusive lock on
// <state_dir>/manifest.lock for the whole read-modify-write cycle.
package statefile

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"stabledracor/internal/config"
	"stabledracor/internal/fileutil"
	"stabledracor/internal/logging"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

//go:embed manifest.schema.json
var schemaJSON string

const schemaURL = "manifest.schema.json"

const lockRetryDelay = 100 * time.Millisecond

// Store reads and writes one manifest file.
type Store struct {
	path     string
	lockPath string
	schema   *jsonschema.Schema
	logger   *slog.Logger
}

// New returns the store for the configured state directory.
func New(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return Open(cfg.ManifestPath(), logger)
}

// Open returns a store for the manifest file at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Store{
		path:     path,
		lockPath: filepath.Join(filepath.Dir(path), "manifest.lock"),
		schema:   schema,
		logger:   logging.NewComponentLogger(logger, "statefile"),
	}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse manifest schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add manifest schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return schema, nil
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// Validate checks raw JSON against the manifest schema.
func (s *Store) Validate(data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return services.Wrap(services.ErrValidation, "statefile", "parse manifest", "invalid JSON", err)
	}
	if err := s.schema.Validate(inst); err != nil {
		return services.Wrap(services.ErrValidation, "statefile", "validate manifest", "manifest does not match schema", err)
	}
	return nil
}

// Load reads the manifest. It reports false when no manifest exists yet.
func (s *Store) Load() (manifest.Document, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return manifest.Document{}, false, nil
	}
	if err != nil {
		return manifest.Document{}, false, fmt.Errorf("read manifest: %w", err)
	}
	if err := s.Validate(data); err != nil {
		return manifest.Document{}, false, err
	}
	var doc manifest.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return manifest.Document{}, false, fmt.Errorf("decode manifest: %w", err)
	}
	return doc, true, nil
}

// Save validates and atomically writes the manifest.
func (s *Store) Save(doc manifest.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := s.Validate(data); err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

// Lock takes the exclusive manifest lock, waiting until ctx is done.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	lock := flock.New(s.lockPath)
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire manifest lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConflict, "statefile", "lock", "manifest is locked by another process", nil)
	}
	return lock.Unlock, nil
}

// Update loads the manifest (creating a new system when none exists),
// applies fn and saves the result while holding the lock. Nothing is
// written when fn fails.
func (s *Store) Update(ctx context.Context, fn func(*manifest.Manifest) error, opts ...manifest.Option) (manifest.Document, error) {
	unlock, err := s.Lock(ctx)
	if err != nil {
		return manifest.Document{}, err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn("failed to release manifest lock", logging.Error(err))
		}
	}()

	m, err := s.load(opts...)
	if err != nil {
		return manifest.Document{}, err
	}
	if err := fn(m); err != nil {
		return manifest.Document{}, err
	}
	doc := m.Snapshot()
	if err := s.Save(doc); err != nil {
		return manifest.Document{}, err
	}
	return doc, nil
}

// Current returns the live manifest stored on disk, or a new one.
func (s *Store) Current(opts ...manifest.Option) (*manifest.Manifest, error) {
	return s.load(opts...)
}

func (s *Store) load(opts ...manifest.Option) (*manifest.Manifest, error) {
	doc, ok, err := s.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		m := manifest.New(opts...)
		s.logger.Info("created new system manifest", logging.String("system_id", m.ID()), logging.String("path", s.path))
		return m, nil
	}
	return manifest.FromDocument(doc, opts...), nil
}
