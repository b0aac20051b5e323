// Package config loads, normalizes, and validates stabledracor configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STABLEDRACOR_PASSWORD and GITHUB_TOKEN. The Config type centralizes every
// knob the CLI needs: where the local DraCor API lives, which remote services
// to copy from, and where state and logs are kept.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, expanded paths and clear validation errors.
package config
