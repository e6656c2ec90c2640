// Package api defines the JSON payload types the daemon serves and a small
// HTTP client the CLI uses to reach a running carouseld.
package api
