// Package metrics defines Prometheus metrics for sipwatch, covering
// registration checks, API requests, notifications, mail delivery, log
// rotation and event sinks.
package metrics
