// Package logging builds the slog loggers used across Carousel. It offers a
// compact console handler for interactive use, a JSON handler for log
// shipping, component-scoped child loggers, and retention cleanup for the
// run-scoped log files the daemon writes.
package logging
