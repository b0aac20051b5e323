package main

import "errors"

// errPartialFailure marks a replication that finished with failed plays or a
// count mismatch. Everything else it did is kept.
var errPartialFailure = errors.New("replication finished with failures")

const (
	exitFailure        = 1
	exitPartialFailure = 2
)

// exitCode maps a command error to the process exit status. Scripts can tell
// a partial copy (2) from a failed one (1).
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errPartialFailure):
		return exitPartialFailure
	default:
		return exitFailure
	}
}
