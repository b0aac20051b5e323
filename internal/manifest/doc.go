// Package manifest holds the nested description of a running stable DraCor
// system: its identity, the services it consists of, and every corpus that was
// replicated into it together with the provenance of each source.
//
// A Manifest is an owned value. The replication pipeline, the label codec and
// the state file all receive one by reference; there is no package level
// registry, so several independent systems can live in one process.
//
// Snapshot returns a Document, a plain deep copy that is safe to serialise.
package manifest
