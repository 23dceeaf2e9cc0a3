package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the configuration file.
const (
	EnvConfig           = "SIPWATCH_CONFIG"
	EnvAPIURL           = "SIPWATCH_API_URL"
	EnvAPIUsername      = "SIPWATCH_API_USERNAME"
	EnvAPIPassword      = "SIPWATCH_API_PASSWORD"
	EnvAPITimeout       = "SIPWATCH_API_TIMEOUT"
	EnvAccounts         = "SIPWATCH_ACCOUNTS"
	EnvMailProvider     = "SIPWATCH_MAIL_PROVIDER"
	EnvSMTPHost         = "SIPWATCH_SMTP_HOST"
	EnvSMTPPort         = "SIPWATCH_SMTP_PORT"
	EnvSMTPUsername     = "SIPWATCH_SMTP_USERNAME"
	EnvSMTPPassword     = "SIPWATCH_SMTP_PASSWORD"
	EnvMailFrom         = "SIPWATCH_MAIL_FROM"
	EnvMailTo           = "SIPWATCH_MAIL_TO"
	EnvNotifyOnRecovery = "SIPWATCH_NOTIFY_ON_RECOVERY"
	EnvLogPath          = "SIPWATCH_LOG_PATH"
	EnvMarkerDir        = "SIPWATCH_MARKER_DIR"
	EnvMetricsTextfile  = "SIPWATCH_METRICS_TEXTFILE"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left untouched. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration fields with the SIPWATCH_* environment
// variables that are set.
func (c *Config) ApplyEnv() error {
	c.API.URL = getEnvString(EnvAPIURL, c.API.URL)
	c.API.Username = getEnvString(EnvAPIUsername, c.API.Username)
	c.API.Password = getEnvString(EnvAPIPassword, c.API.Password)
	c.API.Timeout = getEnvString(EnvAPITimeout, c.API.Timeout)
	if v, ok := os.LookupEnv(EnvAccounts); ok {
		c.Accounts = splitList(v)
	}

	c.Mail.Provider = getEnvString(EnvMailProvider, c.Mail.Provider)
	c.Mail.Host = getEnvString(EnvSMTPHost, c.Mail.Host)
	if v, ok := os.LookupEnv(EnvSMTPPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvSMTPPort, v, err)
		}
		c.Mail.Port = port
	}
	c.Mail.Username = getEnvString(EnvSMTPUsername, c.Mail.Username)
	c.Mail.Password = getEnvString(EnvSMTPPassword, c.Mail.Password)
	c.Mail.From = getEnvString(EnvMailFrom, c.Mail.From)
	if v, ok := os.LookupEnv(EnvMailTo); ok {
		c.Mail.To = splitList(v)
	}

	if _, ok := os.LookupEnv(EnvNotifyOnRecovery); ok {
		c.Notify.OnRecovery = boolPtr(getEnvBool(EnvNotifyOnRecovery, c.NotifyOnRecovery()))
	}

	c.Log.Path = getEnvString(EnvLogPath, c.Log.Path)
	c.Markers.Dir = getEnvString(EnvMarkerDir, c.Markers.Dir)
	c.Metrics.TextfilePath = getEnvString(EnvMetricsTextfile, c.Metrics.TextfilePath)
	return nil
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
