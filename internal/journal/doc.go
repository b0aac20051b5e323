// Package journal keeps a history of replication runs in SQLite.
//
// Every copy, import or play addition is stored as one run with its
// outcome, counts and the per-play results in roster order, so failed plays
// can be listed and retried later. The manifest state file stays the source
// of truth for what the system contains; the journal only explains how it
// got there.
//
// The schema version lives in PRAGMA user_version; a journal written by
// another version is refused rather than migrated.
package journal
