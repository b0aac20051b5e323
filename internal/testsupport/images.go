package testsupport

import (
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

// WriteImageTarball saves a random single-layer image under tag at path,
// with the given config labels.
func WriteImageTarball(t testing.TB, path, tag string, labels map[string]string) {
	t.Helper()
	img, err := random.Image(64, 1)
	if err != nil {
		t.Fatalf("random image: %v", err)
	}
	cfg, err := img.ConfigFile()
	if err != nil {
		t.Fatalf("image config: %v", err)
	}
	c := cfg.Config
	c.Labels = labels
	img, err = mutate.Config(img, c)
	if err != nil {
		t.Fatalf("mutate config: %v", err)
	}
	ref, err := name.NewTag(tag)
	if err != nil {
		t.Fatalf("parse tag %q: %v", tag, err)
	}
	if err := tarball.WriteToFile(path, ref, img); err != nil {
		t.Fatalf("write tarball: %v", err)
	}
}
