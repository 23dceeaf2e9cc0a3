package system

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Production config (JSON) by default,
// development config (console, debug level) when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	// Disable automatic stacktraces for non-fatal levels to avoid noisy traces in WARN/INFO logs
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}

// AccountFields returns key/value pairs suitable for SugaredLogger.With or the
// *w logging calls. The run ID is omitted when empty.
func AccountFields(account, runID string) []interface{} {
	if runID == "" {
		return []interface{}{"account", account}
	}
	return []interface{}{"account", account, "runID", runID}
}
