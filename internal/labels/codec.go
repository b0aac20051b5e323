package labels

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"stabledracor/internal/manifest"
	"stabledracor/internal/services"
)

// DefaultNamespace prefixes every label key when a Codec has no namespace.
const DefaultNamespace = "org.dracor.stable-dracor"

const (
	sectionVersion  = "version"
	sectionSystem   = "system"
	sectionServices = "services"
	sectionCorpora  = "corpora"

	keySources    = "sources"
	keyNumOfPlays = "num-of-plays"
	filterExclude = "exclude"
	filterInclude = "include"
)

// StructuralDecodeError reports a label set whose index keys cannot be parsed.
type StructuralDecodeError struct {
	Key    string
	Value  string
	Reason string
}

func (e *StructuralDecodeError) Error() string {
	return fmt.Sprintf("label %s=%q: %s", e.Key, e.Value, e.Reason)
}

func (e *StructuralDecodeError) Unwrap() error {
	return services.ErrStructuralDecode
}

// Codec encodes and decodes manifests below one namespace.
type Codec struct {
	Namespace string
}

// Encode flattens doc with the default namespace.
func Encode(doc manifest.Document) map[string]string {
	return Codec{}.Encode(doc)
}

// Decode rebuilds a document from labels in the default namespace.
func Decode(labels map[string]string) (manifest.Document, error) {
	return Codec{}.Decode(labels)
}

func (c Codec) namespace() string {
	if ns := strings.Trim(strings.TrimSpace(c.Namespace), "."); ns != "" {
		return ns
	}
	return DefaultNamespace
}

// Key returns the full label key for a dotted path.
func (c Codec) Key(path ...string) string {
	return c.namespace() + "." + strings.Join(path, ".")
}

// Encode flattens doc into label keys. Index lists are sorted so equal
// documents always produce equal label sets.
func (c Codec) Encode(doc manifest.Document) map[string]string {
	out := make(map[string]string)
	put := func(value string, path ...string) {
		if value != "" {
			out[c.Key(path...)] = value
		}
	}
	putCount := func(value *int, path ...string) {
		if value != nil {
			out[c.Key(path...)] = strconv.Itoa(*value)
		}
	}

	put(doc.Version, sectionVersion)
	put(doc.System.ID, sectionSystem, "id")
	put(doc.System.Name, sectionSystem, "name")
	put(doc.System.Description, sectionSystem, "description")
	put(doc.System.Timestamp, sectionSystem, "timestamp")

	if names := doc.ServiceNames(); len(names) > 0 {
		put(strings.Join(names, ","), sectionServices)
		for _, name := range names {
			svc := doc.Services[name]
			put(svc.Container, sectionServices, name, "container")
			put(svc.Image, sectionServices, name, "image")
			put(svc.BaseImage, sectionServices, name, "base-image")
			put(svc.ExistDB, sectionServices, name, "existdb")
			put(svc.Version, sectionServices, name, "version")
		}
	}

	if names := doc.CorpusNames(); len(names) > 0 {
		put(strings.Join(names, ","), sectionCorpora)
		for _, name := range names {
			corpus := doc.Corpora[name]
			put(corpus.Corpusname, sectionCorpora, name, "corpusname")
			put(corpus.Timestamp, sectionCorpora, name, "timestamp")
			putCount(corpus.NumOfPlays, sectionCorpora, name, keyNumOfPlays)

			sources := corpus.SourceNames()
			if len(sources) == 0 {
				continue
			}
			put(strings.Join(sources, ","), sectionCorpora, name, keySources)
			for _, sourceName := range sources {
				src := corpus.Sources[sourceName]
				base := []string{sectionCorpora, name, keySources, sourceName}
				at := func(field ...string) []string { return append(slices.Clone(base), field...) }
				put(src.Corpusname, at("corpusname")...)
				put(string(src.Type), at("type")...)
				put(src.URL, at("url")...)
				put(src.Timestamp, at("timestamp")...)
				put(src.Commit, at("commit")...)
				putCount(src.NumOfPlays, at(keyNumOfPlays)...)
				for kind, filter := range map[string]*manifest.SelectionFilter{filterExclude: src.Exclude, filterInclude: src.Include} {
					if filter == nil {
						continue
					}
					idKind := filter.Type
					if idKind == "" {
						idKind = manifest.DefaultIDKind
					}
					put(idKind, at(kind, "type")...)
					put(strings.Join(filter.IDs, ","), at(kind, "ids")...)
				}
			}
		}
	}
	return out
}

// sections maps a top level section name to its keys with the namespace and
// section segment removed. The index key of a section is stored under "".
type sections map[string]map[string]string

// group is the first decode pass: it sorts every key of the namespace into
// its top level section and drops everything else.
func (c Codec) group(labels map[string]string) sections {
	prefix := c.namespace() + "."
	out := sections{}
	for key, value := range labels {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		section, remainder, _ := strings.Cut(rest, ".")
		switch section {
		case sectionVersion, sectionSystem, sectionServices, sectionCorpora:
		default:
			continue
		}
		if out[section] == nil {
			out[section] = make(map[string]string)
		}
		out[section][remainder] = value
	}
	return out
}

// children returns the keys of fields below prefix with prefix removed.
func children(fields map[string]string, prefix string) map[string]string {
	out := make(map[string]string)
	for key, value := range fields {
		if rest, ok := strings.CutPrefix(key, prefix+"."); ok {
			out[rest] = value
		}
	}
	return out
}

// Decode rebuilds a document from labels. Keys outside the namespace and
// children not named by their index are ignored.
func (c Codec) Decode(labels map[string]string) (manifest.Document, error) {
	grouped := c.group(labels)
	var doc manifest.Document

	doc.Version = grouped[sectionVersion][""]

	system := grouped[sectionSystem]
	doc.System = manifest.SystemIdentity{
		ID:          system["id"],
		Name:        system["name"],
		Description: system["description"],
		Timestamp:   system["timestamp"],
	}

	if svcFields := grouped[sectionServices]; svcFields != nil {
		names, err := c.parseIndex(svcFields, "", sectionServices)
		if err != nil {
			return manifest.Document{}, err
		}
		for _, name := range names {
			fields := children(svcFields, name)
			if doc.Services == nil {
				doc.Services = make(map[string]manifest.ServiceEntry)
			}
			doc.Services[name] = manifest.ServiceEntry{
				Container: fields["container"],
				Image:     fields["image"],
				BaseImage: fields["base-image"],
				ExistDB:   fields["existdb"],
				Version:   fields["version"],
			}
		}
	}

	if corpusFields := grouped[sectionCorpora]; corpusFields != nil {
		names, err := c.parseIndex(corpusFields, "", sectionCorpora)
		if err != nil {
			return manifest.Document{}, err
		}
		for _, name := range names {
			corpus, err := c.decodeCorpus(name, children(corpusFields, name))
			if err != nil {
				return manifest.Document{}, err
			}
			if doc.Corpora == nil {
				doc.Corpora = make(map[string]manifest.CorpusEntry)
			}
			doc.Corpora[name] = corpus
		}
	}
	return doc, nil
}

func (c Codec) decodeCorpus(name string, fields map[string]string) (manifest.CorpusEntry, error) {
	corpus := manifest.CorpusEntry{
		Corpusname: fields["corpusname"],
		Timestamp:  fields["timestamp"],
	}
	if corpus.Corpusname == "" {
		corpus.Corpusname = name
	}
	count, err := c.parseCount(fields, keyNumOfPlays, sectionCorpora, name, keyNumOfPlays)
	if err != nil {
		return manifest.CorpusEntry{}, err
	}
	corpus.NumOfPlays = count

	sourceNames, err := c.parseIndex(fields, keySources, sectionCorpora, name, keySources)
	if err != nil {
		return manifest.CorpusEntry{}, err
	}
	sourceFields := children(fields, keySources)
	for _, sourceName := range sourceNames {
		src, err := c.decodeSource(children(sourceFields, sourceName), sectionCorpora, name, keySources, sourceName)
		if err != nil {
			return manifest.CorpusEntry{}, err
		}
		if corpus.Sources == nil {
			corpus.Sources = make(map[string]manifest.SourceEntry)
		}
		corpus.Sources[sourceName] = src
	}
	return corpus, nil
}

// decodeSource reads the fields of one source. Each key is split on its first
// dot only: the head is a scalar field or a filter name, the tail the filter
// field.
func (c Codec) decodeSource(fields map[string]string, path ...string) (manifest.SourceEntry, error) {
	var src manifest.SourceEntry
	filters := map[string]*manifest.SelectionFilter{}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := fields[key]
		head, tail, nested := strings.Cut(key, ".")
		if nested {
			if head != filterExclude && head != filterInclude {
				continue
			}
			filter := filters[head]
			if filter == nil {
				filter = &manifest.SelectionFilter{}
				filters[head] = filter
			}
			switch tail {
			case "type":
				filter.Type = value
			case "ids":
				filter.IDs = splitList(value)
			}
			continue
		}
		switch head {
		case "corpusname":
			src.Corpusname = value
		case "type":
			src.Type = manifest.SourceType(value)
		case "url":
			src.URL = value
		case "timestamp":
			src.Timestamp = value
		case "commit":
			src.Commit = value
		case keyNumOfPlays:
			count, err := c.parseCount(fields, keyNumOfPlays, append(slices.Clone(path), keyNumOfPlays)...)
			if err != nil {
				return manifest.SourceEntry{}, err
			}
			src.NumOfPlays = count
		}
	}
	for kind, filter := range filters {
		if filter.Type == "" {
			filter.Type = manifest.DefaultIDKind
		}
		if kind == filterExclude {
			src.Exclude = filter
		} else {
			src.Include = filter
		}
	}
	return src, nil
}

// parseIndex reads the index stored at fields[key]. A missing index means no
// children. Empty or repeated names are structural errors.
func (c Codec) parseIndex(fields map[string]string, key string, path ...string) ([]string, error) {
	value, ok := fields[key]
	if !ok {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	names := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, &StructuralDecodeError{Key: c.Key(path...), Value: value, Reason: "index contains an empty name"}
		}
		if _, dup := seen[name]; dup {
			return nil, &StructuralDecodeError{Key: c.Key(path...), Value: value, Reason: fmt.Sprintf("index lists %q twice", name)}
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

func (c Codec) parseCount(fields map[string]string, key string, path ...string) (*int, error) {
	value, ok := fields[key]
	if !ok {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return nil, &StructuralDecodeError{Key: c.Key(path...), Value: value, Reason: "count is not a non-negative integer"}
	}
	return &n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
