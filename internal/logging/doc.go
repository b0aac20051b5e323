// Package logging builds the slog loggers of the command line tool.
//
// Console output is one line per record with the component, the replication
// subject (corpus, source and stage taken from the context) and a
// key=value tail; warnings add hint and impact lines. JSON output is meant
// for log shippers. Every invocation also appends to a daily file in the
// log directory, and files past the retention period are removed.
package logging
