package images_test

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"stabledracor/internal/images"
	"stabledracor/internal/labels"
	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
	"stabledracor/internal/testsupport"
)

func TestReadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.tar")
	testsupport.WriteImageTarball(t, path, "dracor/dracor-api:v1.1.0", map[string]string{"maintainer": "dracor"})

	got, err := images.ReadLabels(path)
	if err != nil {
		t.Fatalf("ReadLabels: %v", err)
	}
	if got.Values["maintainer"] != "dracor" {
		t.Fatalf("labels = %v", got.Values)
	}
	if len(got.Tags) != 1 || !strings.HasSuffix(got.Tags[0], "dracor/dracor-api:v1.1.0") {
		t.Fatalf("tags = %v", got.Tags)
	}
}

func TestReadLabelsMissingFile(t *testing.T) {
	_, err := images.ReadLabels(filepath.Join(t.TempDir(), "missing.tar"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteLabelsRoundTripsManifest(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "api.tar")
	dst := filepath.Join(dir, "stable.tar")
	codec := labels.Codec{}
	testsupport.WriteImageTarball(t, src, "dracor/dracor-api:v1.1.0", map[string]string{
		"maintainer":         "dracor",
		codec.Key("corpora"): "stale",
	})

	m := manifest.New(manifest.WithIdentity("demo", ""))
	m.SetServiceImage("api", "dracor/stable-dracor:demo", "dracor/dracor-api:v1.1.0")
	if _, err := m.RegisterCorpus(manifest.Registration{Corpusname: "test", SourceCorpusname: "test", Type: manifest.SourceAPI}); err != nil {
		t.Fatal(err)
	}
	if err := m.RecordCopiedItemCount("test", "test", 2); err != nil {
		t.Fatal(err)
	}
	doc := m.Snapshot()

	err := images.WriteLabels(images.Relabel{
		Source:      src,
		Destination: dst,
		Tag:         "dracor/stable-dracor:demo",
		Drop:        func(key string) bool { return strings.HasPrefix(key, labels.DefaultNamespace+".") },
		Set:         codec.Encode(doc),
	})
	if err != nil {
		t.Fatalf("WriteLabels: %v", err)
	}

	got, err := images.ReadLabels(dst)
	if err != nil {
		t.Fatalf("ReadLabels: %v", err)
	}
	if got.Values["maintainer"] != "dracor" {
		t.Fatalf("foreign label dropped: %v", got.Values)
	}
	if got.Values[codec.Key("corpora")] != "test" {
		t.Fatalf("stale corpora index kept: %q", got.Values[codec.Key("corpora")])
	}
	decoded, err := codec.Decode(got.Values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, doc) {
		t.Fatalf("decoded manifest differs\n got: %+v\nwant: %+v", decoded, doc)
	}
	if len(got.Tags) != 1 || !strings.HasSuffix(got.Tags[0], "dracor/stable-dracor:demo") {
		t.Fatalf("tags = %v", got.Tags)
	}
}

func TestWriteLabelsInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.tar")
	testsupport.WriteImageTarball(t, path, "dracor/dracor-api:v1", nil)

	err := images.WriteLabels(images.Relabel{
		Source:      path,
		Destination: path,
		Tag:         "dracor/dracor-api:v1",
		Set:         map[string]string{"a": "1"},
	})
	if err != nil {
		t.Fatalf("WriteLabels: %v", err)
	}
	got, err := images.ReadLabels(path)
	if err != nil {
		t.Fatalf("ReadLabels: %v", err)
	}
	if got.Values["a"] != "1" {
		t.Fatalf("labels = %v", got.Values)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".relabel-*"))
	if len(matches) != 0 {
		t.Fatalf("temporary files left behind: %v", matches)
	}
}

func TestWriteLabelsRejectsBadTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.tar")
	testsupport.WriteImageTarball(t, path, "dracor/dracor-api:v1", nil)
	err := images.WriteLabels(images.Relabel{Source: path, Destination: path, Tag: "Not A Tag"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
