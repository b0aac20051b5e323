// Package replication copies corpora into the local DraCor service.
//
// A Pipeline drives one copy operation per Run call through a fixed
// sequence of states: metadata is fetched from a Source, the local corpus
// is created (an existing corpus is accepted with a warning), the source is
// registered in the manifest, and the roster is copied item by item in
// order. Item failures are collected into the Result and never abort the
// run. Only a failed metadata fetch or a failed corpus creation is fatal.
//
// Sources exist for a remote DraCor API, a GitHub repository at a commit
// and a local directory of TEI files.
package replication
