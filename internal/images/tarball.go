package images

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"stabledracor/internal/services"
)

// Labels is the label set of an image config together with the tags the
// tarball was saved under.
type Labels struct {
	Tags   []string
	Values map[string]string
}

// ReadLabels returns the config labels of the single image stored at path.
func ReadLabels(path string) (Labels, error) {
	img, err := tarball.ImageFromPath(path, nil)
	if err != nil {
		return Labels{}, services.Wrap(services.ErrNotFound, "images", "read", "load image tarball", err)
	}
	cfg, err := img.ConfigFile()
	if err != nil {
		return Labels{}, fmt.Errorf("read image config: %w", err)
	}
	tags, err := Tags(path)
	if err != nil {
		return Labels{}, err
	}
	values := make(map[string]string, len(cfg.Config.Labels))
	maps.Copy(values, cfg.Config.Labels)
	return Labels{Tags: tags, Values: values}, nil
}

// Tags lists the repository tags recorded in the tarball manifest.
func Tags(path string) ([]string, error) {
	m, err := tarball.LoadManifest(func() (io.ReadCloser, error) { return os.Open(path) })
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "images", "read", "load tarball manifest", err)
	}
	var tags []string
	for _, desc := range m {
		tags = append(tags, desc.RepoTags...)
	}
	return tags, nil
}

// Relabel describes one rewrite of an image tarball.
type Relabel struct {
	// Source is the tarball to read.
	Source string
	// Destination is the tarball to write. It may equal Source.
	Destination string
	// Tag names the written image, e.g. "dracor/stable-dracor:v1".
	Tag string
	// Drop reports label keys to remove before Set is applied.
	Drop func(key string) bool
	// Set is merged into the remaining labels.
	Set map[string]string
}

// WriteLabels rewrites the image config labels and saves the image under a
// new tag. The destination is written through a temporary file in its
// directory so a failed write leaves any existing file in place.
func WriteLabels(r Relabel) error {
	if r.Source == "" || r.Destination == "" {
		return services.Wrap(services.ErrValidation, "images", "write", "source and destination are required", nil)
	}
	tag, err := name.NewTag(r.Tag)
	if err != nil {
		return services.Wrap(services.ErrValidation, "images", "write", fmt.Sprintf("invalid tag %q", r.Tag), err)
	}

	img, err := tarball.ImageFromPath(r.Source, nil)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "images", "write", "load image tarball", err)
	}
	relabeled, err := withLabels(img, r.Drop, r.Set)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.Destination), ".relabel-*.tar")
	if err != nil {
		return fmt.Errorf("create temporary tarball: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tarball.WriteToFile(tmpPath, tag, relabeled); err != nil {
		return fmt.Errorf("write image tarball: %w", err)
	}
	if err := os.Rename(tmpPath, r.Destination); err != nil {
		return fmt.Errorf("replace %s: %w", r.Destination, err)
	}
	return nil
}

func withLabels(img v1.Image, drop func(string) bool, set map[string]string) (v1.Image, error) {
	cfgFile, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("read image config: %w", err)
	}
	if cfgFile == nil {
		return nil, errors.New("image has no config")
	}
	cfg := *cfgFile.Config.DeepCopy()
	labels := make(map[string]string, len(cfg.Labels)+len(set))
	for k, v := range cfg.Labels {
		if drop != nil && drop(k) {
			continue
		}
		labels[k] = v
	}
	maps.Copy(labels, set)
	cfg.Labels = labels
	return mutate.Config(img, cfg)
}
