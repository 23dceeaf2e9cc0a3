// Package config loads the sipwatch configuration from a YAML file, an
// optional .env file, environment overrides and the OS keyring, and
// validates it before a run.
package config
