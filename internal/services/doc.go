// Package services defines shared utilities consumed by the replication
// pipeline and the remote service clients.
//
// Key responsibilities:
//   - Context helpers that stamp corpus names, source names, pipeline stages
//     and journal run IDs for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is into run outcomes.
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform across commands.
package services
