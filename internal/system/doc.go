// Package system is the entry point for commands that act on one stable
// DraCor system.
//
// A System owns the clients for the local and remote DraCor APIs, the
// GitHub client, the readiness monitor, the manifest state file and the
// replication journal. Every mutating operation waits for the local API,
// loads the live manifest under the state-file lock, runs the replication
// pipeline against it and saves the result. Runs are written to the journal
// whether they succeed or not.
package system
