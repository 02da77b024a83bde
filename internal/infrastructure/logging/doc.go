// Package logging provides structured logging for Keylock Core.
//
// It wraps the standard library's log/slog with configuration-driven
// level filtering, JSON or text output, and default service fields.
// Components derive their own loggers with With("component", name) so
// every line can be attributed to a subsystem.
package logging
