// Package labels converts a manifest.Document to and from the flat label
// namespace stored on container images.
//
// Keys are dotted paths below a namespace prefix; values are always strings.
// Every nesting level that holds named children carries an index key listing
// those names comma separated, and a child key is only read when its name
// appears in the index above it. Identifiers must therefore not contain
// commas or surrounding whitespace, which the index parser trims. A dotted
// name must not contain a segment that is a child key of its level
// ("sources" for corpora, "exclude" and "include" for sources): corpus
// "a.sources.s" would write the keys of source "s" of corpus "a". The
// manifest rejects such names and ids, so Encode output always round-trips.
// Absent optional fields produce no key.
package labels
