package compose

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
	"stabledracor/internal/textutil"
)

// Defaults of the canonical DraCor stack.
const (
	DefaultAPIBase             = "http://localhost:8088/api"
	DefaultFrontendAPI         = "http://api:8080/exist/restxq"
	DefaultTriplestorePassword = "qwerty"
)

// Service is one entry below the top level services key.
type Service struct {
	Image       string   `yaml:"image"`
	Environment []string `yaml:"environment,omitempty"`
	Ports       []string `yaml:"ports,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

// File is a compose document.
type File struct {
	Services map[string]Service `yaml:"services"`
}

// Options tune the environment of the canonical services.
type Options struct {
	APIBase             string
	FrontendAPI         string
	ExistPassword       string
	TriplestorePassword string
}

func (o Options) withDefaults() Options {
	if o.APIBase == "" {
		o.APIBase = DefaultAPIBase
	}
	if o.FrontendAPI == "" {
		o.FrontendAPI = DefaultFrontendAPI
	}
	if o.TriplestorePassword == "" {
		o.TriplestorePassword = DefaultTriplestorePassword
	}
	return o
}

// Build maps manifest services to compose services. Services without an
// image cannot be started and are returned in skipped. Dependencies on
// services that are not part of the file are dropped.
func Build(entries map[string]manifest.ServiceEntry, opts Options) (file File, skipped []string) {
	opts = opts.withDefaults()
	file.Services = make(map[string]Service, len(entries))
	for name, entry := range entries {
		if strings.TrimSpace(entry.Image) == "" {
			skipped = append(skipped, name)
			continue
		}
		svc := Service{Image: entry.Image}
		switch name {
		case "api":
			svc.Environment = []string{"DRACOR_API_BASE=" + opts.APIBase, "EXIST_PASSWORD=" + opts.ExistPassword}
			svc.Ports = []string{"8080:8080"}
			svc.DependsOn = []string{"triplestore", "metrics"}
		case "metrics":
			svc.Ports = []string{"8030:8030"}
		case "frontend":
			svc.Environment = []string{"DRACOR_API=" + opts.FrontendAPI}
			svc.Ports = []string{"8088:80"}
			svc.DependsOn = []string{"api"}
		case "triplestore":
			svc.Environment = []string{"ADMIN_PASSWORD=" + opts.TriplestorePassword}
			svc.Ports = []string{"3030:3030"}
		}
		file.Services[name] = svc
	}
	for name, svc := range file.Services {
		svc.DependsOn = slices.DeleteFunc(svc.DependsOn, func(dep string) bool {
			_, ok := file.Services[dep]
			return !ok
		})
		if len(svc.DependsOn) == 0 {
			svc.DependsOn = nil
		}
		file.Services[name] = svc
	}
	slices.Sort(skipped)
	return file, skipped
}

// Title is the comment line written above the document.
func Title(systemName string) string {
	if strings.TrimSpace(systemName) == "" {
		return "# Stable DraCor System"
	}
	return fmt.Sprintf("# Stable DraCor System '%s'", systemName)
}

// FileName is the default output name: compose.<name>.yml, or the system id
// when the system has no name. The name is sanitized for use as a file name.
func FileName(systemName, systemID string) string {
	if n := textutil.SanitizeFileName(systemName); n != "" {
		return "compose." + n + ".yml"
	}
	return "compose." + textutil.SanitizeFileName(systemID) + ".yml"
}

// Render encodes f below the title comment.
func Render(f File, systemName string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Title(systemName))
	buf.WriteByte('\n')
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode compose file: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes a compose document. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, services.Wrap(services.ErrValidation, "compose", "parse", "decode compose file", err)
	}
	return f, nil
}

// Images returns the image of each service keyed by service name.
func (f File) Images() map[string]string {
	out := make(map[string]string, len(f.Services))
	for name, svc := range f.Services {
		out[name] = svc.Image
	}
	return out
}
