// Package api serves the watch-mode HTTP endpoints: liveness, Prometheus
// metrics and the report of the most recent registration run.
package api
