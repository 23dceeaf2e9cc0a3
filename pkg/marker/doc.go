// Package marker provides the persistent per-account debounce flag that
// suppresses repeated failure notifications, with file, SQLite and in-memory
// backends, plus the run lock that serialises concurrent runs.
package marker
