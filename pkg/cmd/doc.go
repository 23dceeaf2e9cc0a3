// Package cmd implements the sipwatch command line: one-shot and watch-mode
// registration checks plus small maintenance commands for markers, SMS and
// configuration.
package cmd
