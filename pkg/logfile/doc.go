// Package logfile implements the operator log: an append-only text file of
// timestamped lines with single-backup size rotation.
package logfile
