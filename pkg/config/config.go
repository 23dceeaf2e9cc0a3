package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultAPIURL         = "https://voip.ms/api/v1/rest.php"
	DefaultAPITimeout     = 30 * time.Second
	DefaultSMTPPort       = 465
	DefaultLogPath        = "sipwatch.log"
	DefaultLogMaxSizeMB   = 100
	DefaultSQLitePath     = "sipwatch.db"
	DefaultLockFile       = ".sipwatch.lock"
	DefaultWatchInterval  = 5 * time.Minute
	DefaultListenAddress  = ":9108"
	DefaultEventsTopic    = "sipwatch.registration"
	MailProviderSMTP      = "smtp"
	MailProviderSendGrid  = "sendgrid"
	MailProviderNone      = "none"
	MarkerBackendFile     = "file"
	MarkerBackendSQLite   = "sqlite"
	redactedPlaceholder   = "********"
	maxRequestsPerSecond  = 100
	defaultMarkerDir      = "."
	defaultSendGridKeyEnv = "SENDGRID_API_KEY"
)

// API holds the provider REST API settings.
type API struct {
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	// PasswordEnv names an environment variable holding the password.
	PasswordEnv string `yaml:"passwordEnv,omitempty" json:"passwordEnv,omitempty"`
	// PasswordKeyring reads the password from the OS keyring
	// (service "sipwatch", user "api:<username>").
	PasswordKeyring bool `yaml:"passwordKeyring,omitempty" json:"passwordKeyring,omitempty"`
	// Timeout per request, e.g. "30s". "0" disables the timeout.
	Timeout           string  `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
}

// Mail holds the notification transport settings.
type Mail struct {
	Provider           string   `yaml:"provider,omitempty" json:"provider,omitempty"`
	Host               string   `yaml:"host,omitempty" json:"host,omitempty"`
	Port               int      `yaml:"port,omitempty" json:"port,omitempty"`
	SSL                *bool    `yaml:"ssl,omitempty" json:"ssl,omitempty"`
	InsecureSkipVerify bool     `yaml:"insecureSkipVerify,omitempty" json:"insecureSkipVerify,omitempty"`
	Username           string   `yaml:"username,omitempty" json:"username,omitempty"`
	Password           string   `yaml:"password,omitempty" json:"password,omitempty"`
	PasswordEnv        string   `yaml:"passwordEnv,omitempty" json:"passwordEnv,omitempty"`
	PasswordKeyring    bool     `yaml:"passwordKeyring,omitempty" json:"passwordKeyring,omitempty"`
	SendGridAPIKey     string   `yaml:"sendgridAPIKey,omitempty" json:"sendgridAPIKey,omitempty"`
	SendGridAPIKeyEnv  string   `yaml:"sendgridAPIKeyEnv,omitempty" json:"sendgridAPIKeyEnv,omitempty"`
	From               string   `yaml:"from,omitempty" json:"from,omitempty"`
	FromName           string   `yaml:"fromName,omitempty" json:"fromName,omitempty"`
	To                 []string `yaml:"to,omitempty" json:"to,omitempty"`
}

// Notify controls which transitions produce an email.
type Notify struct {
	// OnRecovery sends an email when a failed registration is restored.
	// When false the marker is cleared silently.
	OnRecovery *bool `yaml:"onRecovery,omitempty" json:"onRecovery,omitempty"`
}

// Log configures the operator log file.
type Log struct {
	Path       string  `yaml:"path,omitempty" json:"path,omitempty"`
	BackupPath string  `yaml:"backupPath,omitempty" json:"backupPath,omitempty"`
	MaxSizeMB  float64 `yaml:"maxSizeMB,omitempty" json:"maxSizeMB,omitempty"`
}

// Markers configures the debounce marker store and the run lock.
type Markers struct {
	Backend    string `yaml:"backend,omitempty" json:"backend,omitempty"`
	Dir        string `yaml:"dir,omitempty" json:"dir,omitempty"`
	SQLitePath string `yaml:"sqlitePath,omitempty" json:"sqlitePath,omitempty"`
	Lock       *bool  `yaml:"lock,omitempty" json:"lock,omitempty"`
	LockPath   string `yaml:"lockPath,omitempty" json:"lockPath,omitempty"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Brokers []string `yaml:"brokers,omitempty" json:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty" json:"topic,omitempty"`
}

type Events struct {
	Kafka Kafka `yaml:"kafka,omitempty" json:"kafka,omitempty"`
}

type Metrics struct {
	// TextfilePath is written after every run when set.
	TextfilePath string `yaml:"textfilePath,omitempty" json:"textfilePath,omitempty"`
}

type Watch struct {
	Interval      string `yaml:"interval,omitempty" json:"interval,omitempty"`
	ListenAddress string `yaml:"listenAddress,omitempty" json:"listenAddress,omitempty"`
}

type SMS struct {
	// DID is the default SMS-enabled number used by "sms send".
	DID string `yaml:"did,omitempty" json:"did,omitempty"`
}

type Config struct {
	API      API      `yaml:"api,omitempty" json:"api,omitempty"`
	Accounts []string `yaml:"accounts,omitempty" json:"accounts,omitempty"`
	Mail     Mail     `yaml:"mail,omitempty" json:"mail,omitempty"`
	Notify   Notify   `yaml:"notify,omitempty" json:"notify,omitempty"`
	Log      Log      `yaml:"log,omitempty" json:"log,omitempty"`
	Markers  Markers  `yaml:"markers,omitempty" json:"markers,omitempty"`
	Events   Events   `yaml:"events,omitempty" json:"events,omitempty"`
	Metrics  Metrics  `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Watch    Watch    `yaml:"watch,omitempty" json:"watch,omitempty"`
	SMS      SMS      `yaml:"sms,omitempty" json:"sms,omitempty"`
}

// Load reads the YAML configuration at path. A missing file yields an error
// wrapping os.ErrNotExist so callers can fall back to environment-only
// configuration.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("config path is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("trying to open sipwatch config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	return cfg, nil
}

// Defaults fills every unset field with its default value.
func (c *Config) Defaults() {
	if c.API.URL == "" {
		c.API.URL = DefaultAPIURL
	}
	if c.API.Timeout == "" {
		c.API.Timeout = DefaultAPITimeout.String()
	}

	if c.Mail.Provider == "" {
		c.Mail.Provider = MailProviderSMTP
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = DefaultSMTPPort
	}
	if c.Mail.SSL == nil {
		c.Mail.SSL = boolPtr(true)
	}
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.Username
	}
	if c.Mail.FromName == "" {
		c.Mail.FromName = "sipwatch"
	}
	if c.Mail.SendGridAPIKeyEnv == "" {
		c.Mail.SendGridAPIKeyEnv = defaultSendGridKeyEnv
	}

	if c.Notify.OnRecovery == nil {
		c.Notify.OnRecovery = boolPtr(true)
	}

	if c.Log.Path == "" {
		c.Log.Path = DefaultLogPath
	}
	if c.Log.BackupPath == "" {
		c.Log.BackupPath = c.Log.Path + ".bkp"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}

	if c.Markers.Backend == "" {
		c.Markers.Backend = MarkerBackendFile
	}
	if c.Markers.Dir == "" {
		c.Markers.Dir = defaultMarkerDir
	}
	if c.Markers.SQLitePath == "" {
		c.Markers.SQLitePath = DefaultSQLitePath
	}
	if c.Markers.Lock == nil {
		c.Markers.Lock = boolPtr(true)
	}
	if c.Markers.LockPath == "" {
		c.Markers.LockPath = filepath.Join(c.Markers.Dir, DefaultLockFile)
	}

	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = DefaultEventsTopic
	}

	if c.Watch.Interval == "" {
		c.Watch.Interval = DefaultWatchInterval.String()
	}
	if c.Watch.ListenAddress == "" {
		c.Watch.ListenAddress = DefaultListenAddress
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.URL) == "" {
		errs = append(errs, errors.New("api.url is required"))
	}
	if strings.TrimSpace(c.API.Username) == "" {
		errs = append(errs, errors.New("api.username is required"))
	}
	if c.API.Password == "" {
		errs = append(errs, errors.New("api password is required (api.password, api.passwordEnv, api.passwordKeyring or SIPWATCH_API_PASSWORD)"))
	}
	if _, err := c.APITimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.API.RequestsPerSecond < 0 || c.API.RequestsPerSecond > maxRequestsPerSecond {
		errs = append(errs, fmt.Errorf("api.requestsPerSecond must be between 0 and %d", maxRequestsPerSecond))
	}

	if len(c.Accounts) == 0 {
		errs = append(errs, errors.New("at least one account is required"))
	}
	// Marker files are named after the account, so identifiers that only
	// differ in case would share a file on case-insensitive filesystems.
	seen := map[string]string{}
	for _, a := range c.Accounts {
		if strings.TrimSpace(a) == "" {
			errs = append(errs, errors.New("account identifiers cannot be empty"))
			continue
		}
		folded := strings.ToLower(a)
		switch prev, ok := seen[folded]; {
		case ok && prev == a:
			errs = append(errs, fmt.Errorf("duplicate account %q", a))
		case ok:
			errs = append(errs, fmt.Errorf("accounts %q and %q differ only in case", prev, a))
		default:
			seen[folded] = a
		}
	}

	switch c.Mail.Provider {
	case MailProviderSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail.host is required for the smtp provider"))
		}
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			errs = append(errs, fmt.Errorf("mail.port %d is out of range", c.Mail.Port))
		}
	case MailProviderSendGrid:
		if c.Mail.SendGridAPIKey == "" {
			errs = append(errs, errors.New("mail.sendgridAPIKey is required for the sendgrid provider"))
		}
	case MailProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown mail.provider %q", c.Mail.Provider))
	}
	if c.Mail.Provider != MailProviderNone {
		errs = append(errs, validateAddresses(c.Mail.From, c.Mail.To)...)
	}

	if c.Log.Path == "" {
		errs = append(errs, errors.New("log.path is required"))
	}
	if c.Log.BackupPath == c.Log.Path {
		errs = append(errs, errors.New("log.backupPath must differ from log.path"))
	}

	switch c.Markers.Backend {
	case MarkerBackendFile, MarkerBackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown markers.backend %q", c.Markers.Backend))
	}

	if c.Events.Kafka.Enabled && len(c.Events.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("events.kafka.brokers is required when kafka is enabled"))
	}

	if _, err := c.WatchInterval(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// APITimeout returns the parsed per-request timeout. Zero means no timeout.
func (c *Config) APITimeout() (time.Duration, error) {
	return parseDuration("api.timeout", c.API.Timeout, DefaultAPITimeout)
}

// WatchInterval returns the parsed interval between watch-mode runs.
func (c *Config) WatchInterval() (time.Duration, error) {
	d, err := parseDuration("watch.interval", c.Watch.Interval, DefaultWatchInterval)
	if err == nil && d <= 0 {
		return DefaultWatchInterval, fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
	}
	return d, err
}

func (c *Config) NotifyOnRecovery() bool { return c.Notify.OnRecovery == nil || *c.Notify.OnRecovery }

func (c *Config) MailSSL() bool { return c.Mail.SSL == nil || *c.Mail.SSL }

func (c *Config) LockEnabled() bool { return c.Markers.Lock == nil || *c.Markers.Lock }

// Redacted returns a copy with every secret replaced, for printing.
func (c Config) Redacted() Config {
	out := c
	out.Accounts = append([]string(nil), c.Accounts...)
	out.Mail.To = append([]string(nil), c.Mail.To...)
	if out.API.Password != "" {
		out.API.Password = redactedPlaceholder
	}
	if out.Mail.Password != "" {
		out.Mail.Password = redactedPlaceholder
	}
	if out.Mail.SendGridAPIKey != "" {
		out.Mail.SendGridAPIKey = redactedPlaceholder
	}
	return out
}

func validateAddresses(from string, to []string) []error {
	var errs []error
	if _, err := mail.ParseAddress(from); err != nil {
		errs = append(errs, fmt.Errorf("mail.from %q: %w", from, err))
	}
	if len(to) == 0 {
		errs = append(errs, errors.New("mail.to needs at least one receiver"))
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			errs = append(errs, fmt.Errorf("mail.to %q: %w", addr, err))
		}
	}
	return errs
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	duration := def
	if value != "" {
		if value == "0" {
			return 0, nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return duration, fmt.Errorf("invalid %s %q; using default %s: %w", name, value, def.String(), err)
		}
		duration = d
	}
	return duration, nil
}

func boolPtr(b bool) *bool { return &b }

