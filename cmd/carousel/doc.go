// Package main hosts the carousel CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon, in-process conversion runs, session maintenance
// operations, and configuration scaffolding. It centralizes configuration
// resolution and server discovery so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
