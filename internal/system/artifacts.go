package system

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"stabledracor/internal/compose"
	"stabledracor/internal/fileutil"
	"stabledracor/internal/images"
	"stabledracor/internal/logging"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

// Refresh stores the API and eXist-db versions reported by the local API in
// the api service entry and the resolved play count of every registered
// corpus. Missing metrics are logged and skipped.
func (s *System) Refresh(ctx context.Context) (manifest.Document, error) {
	if err := s.Ready(ctx); err != nil {
		return manifest.Document{}, err
	}
	return s.update(ctx, func(m *manifest.Manifest) error {
		return s.enrich(ctx, m)
	})
}

func (s *System) enrich(ctx context.Context, m *manifest.Manifest) error {
	info, err := s.local.Info(ctx)
	if err != nil {
		return err
	}
	if _, ok := m.Services()[manifest.ServiceAPI]; ok {
		m.SetAPIInfo(info.Version, info.ExistDB)
	}

	corpora, err := s.local.Corpora(ctx, true)
	if err != nil {
		s.logger.Debug("corpus metrics unavailable", logging.Error(err))
		return nil
	}
	for _, c := range corpora {
		if c.Metrics == nil {
			continue
		}
		if _, ok := m.Corpus(c.Name); !ok {
			continue
		}
		if err := m.SetCorpusItemCount(c.Name, c.Metrics.Plays); err != nil {
			return err
		}
	}
	return nil
}

// Labels encodes the live manifest with the configured namespace.
func (s *System) Labels() (map[string]string, error) {
	doc, err := s.Manifest()
	if err != nil {
		return nil, err
	}
	return s.codec.Encode(doc), nil
}

// ImageRequest relabels a saved image of one service.
type ImageRequest struct {
	Service string
	// Source is a tarball written by `docker save`.
	Source string
	// Destination defaults to Source.
	Destination string
	// Tag defaults to <image namespace>/<image prefix>:<system id>.
	Tag string
}

// ImageResult describes a relabelled image.
type ImageResult struct {
	Tag       string
	BaseImage string
	Labels    map[string]string
}

// LabelImage refreshes the manifest, records the new image of the service
// with the image it derives from, and writes the manifest labels into the
// image config. The manifest is saved only when the tarball was written.
func (s *System) LabelImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	service := strings.TrimSpace(req.Service)
	if service == "" {
		service = manifest.ServiceAPI
	}
	if req.Destination == "" {
		req.Destination = req.Source
	}
	current, err := images.ReadLabels(req.Source)
	if err != nil {
		return ImageResult{}, err
	}
	if err := s.Ready(ctx); err != nil {
		return ImageResult{}, err
	}

	var result ImageResult
	_, err = s.state.Update(ctx, func(m *manifest.Manifest) error {
		if err := s.enrich(ctx, m); err != nil {
			return err
		}
		tag := strings.TrimSpace(req.Tag)
		if tag == "" {
			tag = fmt.Sprintf("%s/%s:%s", s.cfg.Image.Namespace, s.cfg.Image.Prefix, m.ID())
		}
		base := m.Services()[service].Image
		if base == "" && len(current.Tags) > 0 {
			base = current.Tags[0]
		}
		if base == tag {
			base = m.Services()[service].BaseImage
		}
		m.SetServiceImage(service, tag, base)

		encoded := s.codec.Encode(m.Snapshot())
		err := images.WriteLabels(images.Relabel{
			Source:      req.Source,
			Destination: req.Destination,
			Tag:         tag,
			Drop:        func(key string) bool { return strings.HasPrefix(key, s.codec.Key()) },
			Set:         encoded,
		})
		if err != nil {
			return err
		}
		result = ImageResult{Tag: tag, BaseImage: base, Labels: encoded}
		return nil
	}, s.manifestOptions()...)
	if err != nil {
		return ImageResult{}, err
	}
	s.logger.Info("image labelled",
		logging.String("service", service),
		logging.String("image", result.Tag),
		logging.String("base_image", result.BaseImage),
		logging.Int("labels", len(result.Labels)),
	)
	return result, nil
}

// ManifestFromImage decodes the manifest stored in the labels of an image
// tarball.
func (s *System) ManifestFromImage(path string) (manifest.Document, error) {
	found, err := images.ReadLabels(path)
	if err != nil {
		return manifest.Document{}, err
	}
	own := s.codec.Filter(found.Values)
	if len(own) == 0 {
		return manifest.Document{}, services.Wrap(services.ErrNotFound, "system", "manifest from image",
			"image carries no labels in namespace "+s.codec.Key(), nil)
	}
	doc, err := s.codec.Decode(own)
	if err != nil {
		return manifest.Document{}, err
	}
	if doc.System.ID == "" {
		return manifest.Document{}, services.Wrap(services.ErrNotFound, "system", "manifest from image",
			"image carries no system labels in namespace "+s.codec.Key(), nil)
	}
	return doc, nil
}

// Restore makes the manifest of an image the live manifest. An existing live
// manifest is only replaced when force is set.
func (s *System) Restore(ctx context.Context, path string, force bool) (manifest.Document, error) {
	doc, err := s.ManifestFromImage(path)
	if err != nil {
		return manifest.Document{}, err
	}
	unlock, err := s.state.Lock(ctx)
	if err != nil {
		return manifest.Document{}, err
	}
	defer func() { _ = unlock() }()

	if _, exists, err := s.state.Load(); err != nil {
		return manifest.Document{}, err
	} else if exists && !force {
		return manifest.Document{}, services.Wrap(services.ErrConflict, "system", "restore",
			"a live manifest exists at "+s.state.Path(), nil)
	}
	if err := s.state.Save(doc); err != nil {
		return manifest.Document{}, err
	}
	return doc, nil
}

// ComposeResult describes a written compose file.
type ComposeResult struct {
	Path    string
	Skipped []string
}

// WriteCompose renders the services of the live manifest as a compose
// file. An empty path writes compose.<name or id>.yml into dir. The eXist-db
// password defaults to the local admin password.
func (s *System) WriteCompose(path, dir string, opts compose.Options) (ComposeResult, error) {
	doc, err := s.Manifest()
	if err != nil {
		return ComposeResult{}, err
	}
	if opts.ExistPassword == "" {
		opts.ExistPassword = s.cfg.Local.Password
	}
	file, skipped := compose.Build(doc.Services, opts)
	for _, name := range skipped {
		logging.WarnWithContext(s.logger, "service has no image; left out of compose file", "compose_service_skipped",
			logging.String("service", name),
			logging.String(logging.FieldImpact, "the service is not started by the compose file"),
			logging.String(logging.FieldErrorHint, "record an image with `stabledracor service set`"),
		)
	}
	data, err := compose.Render(file, doc.System.Name)
	if err != nil {
		return ComposeResult{}, err
	}
	if path == "" {
		path = filepath.Join(dir, compose.FileName(doc.System.Name, doc.System.ID))
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return ComposeResult{}, fmt.Errorf("write compose file: %w", err)
	}
	s.logger.Info("compose file written", logging.String("path", path), logging.Int("services", len(file.Services)))
	return ComposeResult{Path: path, Skipped: skipped}, nil
}
