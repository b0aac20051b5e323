// Package dracor is a small client for the DraCor HTTP API.
//
// The same Client type talks to remote instances such as dracor.org and to
// the local instance a stable system writes into; only the base URL and the
// credentials differ. Write operations use HTTP basic auth.
package dracor
