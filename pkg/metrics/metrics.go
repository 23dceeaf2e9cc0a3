package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registration check metrics
	RegistrationChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipwatch_registration_checks_total",
		Help: "Total number of registration checks grouped by decision outcome",
	}, []string{"account", "outcome"})
	RegistrationUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sipwatch_registration_up",
		Help: "1 if the last check found the account registered, 0 otherwise",
	}, []string{"account"})

	// API metrics
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipwatch_api_requests_total",
		Help: "Total number of provider API requests by method and result",
	}, []string{"method", "result"})

	// Notification metrics
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipwatch_notifications_total",
		Help: "Total number of notifications attempted by kind (failed/restored) and result",
	}, []string{"kind", "result"})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipwatch_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipwatch_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})

	LogRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sipwatch_log_rotations_total",
		Help: "Total number of operator log rotations",
	})

	EventSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipwatch_event_sink_errors_total",
		Help: "Total number of events that could not be written to a sink",
	}, []string{"sink"})

	HTTPRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipwatch_http_rate_limited_total",
		Help: "Total number of status API requests rejected by the rate limiter",
	}, []string{"route"})

	// Run metrics
	LastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sipwatch_last_run_timestamp_seconds",
		Help: "Unix time at which the last run finished",
	})
	RunFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sipwatch_run_failures_total",
		Help: "Total number of runs aborted by an error",
	})
)

func init() {
	prometheus.MustRegister(RegistrationChecks)
	prometheus.MustRegister(RegistrationUp)
	prometheus.MustRegister(APIRequests)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(LogRotations)
	prometheus.MustRegister(EventSinkErrors)
	prometheus.MustRegister(HTTPRateLimited)
	prometheus.MustRegister(LastRunTimestamp)
	prometheus.MustRegister(RunFailures)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile writes all registered metrics in the text exposition format
// to path, for the node_exporter textfile collector. The file is replaced
// atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
