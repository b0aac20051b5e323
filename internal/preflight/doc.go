// Package preflight provides readiness checks for the services and
// filesystem paths stabledracor depends on.
//
// These checks run in two contexts:
//   - Mutating commands call RunAll before touching the local instance and
//     refuse to start when the local API or the state directory fails.
//   - The CLI "stabledracor status" command renders every result as a table.
//
// Checks never return errors; a failed check is a Result with Passed unset
// and a human readable Detail.
package preflight
