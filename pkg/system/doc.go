// Package system holds process-wide helpers: zap logger construction and the
// loggers used by tests.
package system
