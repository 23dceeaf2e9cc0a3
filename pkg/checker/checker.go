package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/events"
	"github.com/sipwatch/sipwatch/pkg/mail"
	"github.com/sipwatch/sipwatch/pkg/marker"
	"github.com/sipwatch/sipwatch/pkg/metrics"
	"github.com/sipwatch/sipwatch/pkg/system"
	"github.com/sipwatch/sipwatch/pkg/voipms"
)

const (
	lineStarted = "Registration validation started"
	lineEnded   = "Registration validation ended"

	notifyKindFailed   = "failed"
	notifyKindRestored = "restored"
)

// StatusFetcher looks up the registration state of one account.
type StatusFetcher interface {
	GetRegistrationStatus(ctx context.Context, account string) (voipms.RegistrationStatus, error)
}

// Notifier sends the failure and recovery emails.
type Notifier interface {
	NotifyFailed(ctx context.Context, p mail.RegistrationMailParams) mail.Result
	NotifyRestored(ctx context.Context, p mail.RegistrationMailParams) mail.Result
}

// LogWriter is the operator log file.
type LogWriter interface {
	Append(line string) error
	Appendf(format string, args ...any) error
	RotateIfNeeded() (bool, error)
}

type Config struct {
	Accounts []string
	// NotifyOnRecovery sends an email when a failed account is registered
	// again. The marker is cleared either way.
	NotifyOnRecovery bool
}

type Checker struct {
	accounts         []string
	notifyOnRecovery bool

	fetcher  StatusFetcher
	store    marker.Store
	notifier Notifier
	logfile  LogWriter
	sink     events.Sink
	log      *zap.SugaredLogger
	now      func() time.Time
	newRunID func() string
}

type Option func(*Checker)

// WithEventSink publishes one event per account decision.
func WithEventSink(sink events.Sink) Option {
	return func(c *Checker) { c.sink = sink }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Checker) { c.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

func New(cfg Config, fetcher StatusFetcher, store marker.Store, notifier Notifier, logfile LogWriter, opts ...Option) *Checker {
	c := &Checker{
		accounts:         append([]string(nil), cfg.Accounts...),
		notifyOnRecovery: cfg.NotifyOnRecovery,
		fetcher:          fetcher,
		store:            store,
		notifier:         notifier,
		logfile:          logfile,
		log:              zap.NewNop().Sugar(),
		now:              time.Now,
		newRunID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("checker")
	return c
}

// Run rotates the log file and checks every account in order. The first
// fetch or resource error aborts the run: later accounts are not checked and
// side effects already taken for earlier accounts are kept.
func (c *Checker) Run(ctx context.Context) (report Report, err error) {
	report = Report{RunID: c.newRunID(), StartedAt: c.now()}
	log := c.log.With("runID", report.RunID)

	defer func() {
		report.FinishedAt = c.now()
		metrics.LastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
		if err != nil {
			report.Error = err.Error()
			metrics.RunFailures.Inc()
			log.Errorw("Registration run aborted", "error", err)
		}
	}()

	rotated, err := c.logfile.RotateIfNeeded()
	if err != nil {
		return report, fmt.Errorf("rotating log file: %w", err)
	}
	if rotated {
		metrics.LogRotations.Inc()
		log.Infow("Log file rotated")
	}

	if err := c.logfile.Append(lineStarted); err != nil {
		return report, err
	}
	log.Infow(lineStarted, "accounts", len(c.accounts))

	for _, account := range c.accounts {
		res, err := c.CheckAccount(ctx, report.RunID, account)
		if err != nil {
			if logErr := c.logfile.Appendf("Registration check for account %s aborted the run: %v", account, err); logErr != nil {
				err = errors.Join(err, logErr)
			}
			return report, err
		}
		report.Results = append(report.Results, res)
	}

	if err := c.logfile.Append(lineEnded); err != nil {
		return report, err
	}
	log.Infow(lineEnded, "accounts", len(report.Results))
	return report, nil
}

// CheckAccount fetches the status of one account and applies the marker
// state machine to it.
func (c *Checker) CheckAccount(ctx context.Context, runID, account string) (AccountResult, error) {
	log := c.log.With(system.AccountFields(account, runID)...)
	res := AccountResult{Account: account}

	status, err := c.fetcher.GetRegistrationStatus(ctx, account)
	if err != nil {
		return res, err
	}
	res.Registered = status.Registered()
	res.Status = status.Raw

	if err := c.logfile.Appendf("%s: %s", account, status.Compact()); err != nil {
		return res, err
	}
	log.Debugw("Registration status received", "registered", res.Registered)

	notified, err := c.store.IsSet(ctx, account)
	if err != nil {
		return res, fmt.Errorf("reading marker for account %s: %w", account, err)
	}

	checkedAt := c.now()
	params := mail.RegistrationMailParams{
		Account:       account,
		Registered:    res.Registered,
		Status:        status.String(),
		Registrations: status.Registrations(),
		CheckedAt:     checkedAt,
		RunID:         runID,
	}

	var eventType events.EventType
	var line string

	switch {
	case !status.IsRegistered() && notified:
		res.Outcome = OutcomeFailedNotified
		eventType = events.EventRegistrationStillFailed
		line = fmt.Sprintf("Account %s is still not registered (registered=%q); failure already notified, no email sent", account, res.Registered)
		log.Infow("Registration still failed, notification already sent", "registered", res.Registered)

	case !status.IsRegistered():
		res.Outcome = OutcomeFailedNew
		eventType = events.EventRegistrationFailed
		n := c.notifier.NotifyFailed(ctx, params)
		res.Notification = &n
		c.recordNotification(log, notifyKindFailed, n)
		// Set regardless of the send result.
		if err := c.store.Set(ctx, account); err != nil {
			return res, fmt.Errorf("setting marker for account %s: %w", account, err)
		}
		line = fmt.Sprintf("Account %s registration failed (registered=%q); failure email %s; marker set", account, res.Registered, n.Reason)
		log.Warnw("Registration failed", "registered", res.Registered, "notification", n.Reason)

	case notified:
		res.Outcome = OutcomeRecovered
		eventType = events.EventRegistrationRestored
		if c.notifyOnRecovery {
			n := c.notifier.NotifyRestored(ctx, params)
			res.Notification = &n
			c.recordNotification(log, notifyKindRestored, n)
			line = fmt.Sprintf("Account %s registration restored; recovery email %s; marker cleared", account, n.Reason)
		} else {
			line = fmt.Sprintf("Account %s registration restored; recovery email disabled; marker cleared", account)
		}
		if err := c.store.Clear(ctx, account); err != nil {
			return res, fmt.Errorf("clearing marker for account %s: %w", account, err)
		}
		log.Infow("Registration restored")

	default:
		res.Outcome = OutcomeHealthy
		eventType = events.EventRegistrationHealthy
		line = fmt.Sprintf("Account %s is registered", account)
		log.Debugw("Registration healthy")
	}

	if err := c.logfile.Append(line); err != nil {
		return res, err
	}

	metrics.RegistrationChecks.WithLabelValues(account, string(res.Outcome)).Inc()
	if status.IsRegistered() {
		metrics.RegistrationUp.WithLabelValues(account).Set(1)
	} else {
		metrics.RegistrationUp.WithLabelValues(account).Set(0)
	}

	c.publish(ctx, log, eventType, runID, checkedAt, res)
	return res, nil
}

func (c *Checker) recordNotification(log *zap.SugaredLogger, kind string, n mail.Result) {
	metrics.Notifications.WithLabelValues(kind, n.Reason).Inc()
	if n.Sent {
		log.Infow("Notification sent", "kind", kind)
		return
	}
	if n.Reason == mail.ReasonDisabled {
		log.Infow("Notification skipped, mail is disabled", "kind", kind)
		return
	}
	log.Warnw("Notification not sent", "kind", kind, "reason", n.Reason, "error", n.Err)
	if err := c.logfile.Appendf("Failed to send %s email: %s", kind, n.String()); err != nil {
		log.Warnw("Failed to write log line", "error", err)
	}
}

func (c *Checker) publish(ctx context.Context, log *zap.SugaredLogger, t events.EventType, runID string, ts time.Time, res AccountResult) {
	if c.sink == nil {
		return
	}
	e := events.NewEvent(t, res.Account, runID, ts)
	e.Registered = res.Registered
	if res.Notification != nil {
		e.Notified = res.Notification.Sent
		if res.Notification.Err != nil {
			e.NotificationError = res.Notification.Err.Error()
		}
	}
	if err := c.sink.Write(ctx, e); err != nil {
		log.Warnw("Failed to publish registration event", "sink", c.sink.Name(), "error", err)
	}
}
