// Package compose renders a docker compose file that starts the services
// recorded in a manifest from their committed images.
package compose
