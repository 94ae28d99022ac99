// Package logger defines the minimal structured logging surface the engine
// emits through. Implementations accept alternating key/value pairs.
package logger

// Logger is the logging interface consumed by the engine. Keeping it this
// small makes it trivial to adapt any structured logger, or to silence
// logging entirely in tests.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}
