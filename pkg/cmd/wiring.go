package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/checker"
	"github.com/sipwatch/sipwatch/pkg/config"
	"github.com/sipwatch/sipwatch/pkg/events"
	"github.com/sipwatch/sipwatch/pkg/logfile"
	"github.com/sipwatch/sipwatch/pkg/mail"
	"github.com/sipwatch/sipwatch/pkg/marker"
	"github.com/sipwatch/sipwatch/pkg/version"
	"github.com/sipwatch/sipwatch/pkg/voipms"
)

// service holds everything one or more runs share.
type service struct {
	checker *checker.Checker
	store   marker.Store
	sink    events.Sink
	cfg     *config.Config
	log     *zap.Logger
}

func newVoipmsClient(cfg *config.Config, log *zap.Logger) (*voipms.Client, error) {
	timeout, err := cfg.APITimeout()
	if err != nil {
		return nil, err
	}
	return voipms.New(
		voipms.WithURL(cfg.API.URL),
		voipms.WithCredentials(cfg.API.Username, cfg.API.Password),
		voipms.WithTimeout(timeout),
		voipms.WithRateLimit(cfg.API.RequestsPerSecond),
		voipms.WithUserAgent(version.UserAgent()),
		voipms.WithLogger(log.Named("voipms").Sugar()),
	)
}

func openStore(ctx context.Context, cfg *config.Config) (marker.Store, error) {
	switch cfg.Markers.Backend {
	case config.MarkerBackendSQLite:
		return marker.OpenSQLiteStore(ctx, cfg.Markers.SQLitePath)
	case config.MarkerBackendFile, "":
		return marker.NewFileStore(cfg.Markers.Dir), nil
	default:
		return nil, fmt.Errorf("unknown marker backend %q", cfg.Markers.Backend)
	}
}

func newSender(cfg *config.Config, log *zap.Logger) mail.Sender {
	switch cfg.Mail.Provider {
	case config.MailProviderSendGrid:
		return mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, log.Named("mail").Sugar())
	case config.MailProviderNone:
		return mail.DisabledSender{}
	default:
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:               cfg.Mail.Host,
			Port:               cfg.Mail.Port,
			SSL:                cfg.MailSSL(),
			InsecureSkipVerify: cfg.Mail.InsecureSkipVerify,
			Username:           cfg.Mail.Username,
			Password:           cfg.Mail.Password,
			FromName:           cfg.Mail.FromName,
		}, log.Named("mail").Sugar())
	}
}

func newSink(cfg *config.Config, log *zap.Logger) (events.Sink, error) {
	sinks := []events.Sink{events.NewLogSink(log)}
	if cfg.Events.Kafka.Enabled {
		k, err := events.NewKafkaSink(events.KafkaSinkConfig{
			Brokers: cfg.Events.Kafka.Brokers,
			Topic:   cfg.Events.Kafka.Topic,
		}, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, k)
	}
	return events.NewMultiSink(sinks...), nil
}

func newService(ctx context.Context, cfg *config.Config, log *zap.Logger) (*service, error) {
	client, err := newVoipmsClient(cfg, log)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sink, err := newSink(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	notifier := mail.NewNotifier(newSender(cfg, log), cfg.Mail.From, cfg.Mail.To)
	appender := logfile.New(cfg.Log.Path, cfg.Log.BackupPath, cfg.Log.MaxSizeMB)

	chk := checker.New(
		checker.Config{Accounts: cfg.Accounts, NotifyOnRecovery: cfg.NotifyOnRecovery()},
		client, store, notifier, appender,
		checker.WithEventSink(sink),
		checker.WithLogger(log.Sugar()),
	)
	return &service{checker: chk, store: store, sink: sink, cfg: cfg, log: log}, nil
}

// runOnce performs one locked run.
func (s *service) runOnce(ctx context.Context) (checker.Report, error) {
	lock := marker.NoopLock()
	if s.cfg.LockEnabled() {
		l, err := marker.AcquireRunLock(s.cfg.Markers.LockPath)
		if err != nil {
			return checker.Report{}, err
		}
		lock = l
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.log.Warn("Failed to release run lock", zap.Error(err))
		}
	}()

	return s.checker.Run(ctx)
}

func (s *service) Close() error {
	return errors.Join(s.sink.Close(), s.store.Close())
}
