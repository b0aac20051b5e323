// Package logs reads the daily log files written by the logging package.
//
// Last returns the tail of a file with bounded memory, Follow watches for
// lines appended after an offset until its context ends, and Latest picks
// the newest file of a log directory. The `stabledracor logs` command is
// built on these three.
package logs
