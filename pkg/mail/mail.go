package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/sipwatch/sipwatch/pkg/metrics"
)

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host               string
	Port               int
	SSL                bool
	InsecureSkipVerify bool
	Username           string
	Password           string
	FromName           string
}

// SMTPSender sends one message per connection. It logs in only when a
// username is configured.
type SMTPSender struct {
	dialer   *gomail.Dialer
	fromName string
	log      *zap.SugaredLogger
}

func NewSMTPSender(cfg SMTPConfig, log *zap.SugaredLogger) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host} // #nosec G402 -- opt-in via config
	}
	return &SMTPSender{dialer: d, fromName: cfg.FromName, log: log.Named("smtp")}
}

func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) Host() string { return s.dialer.Host }

func (s *SMTPSender) Port() int { return s.dialer.Port }

func (s *SMTPSender) Send(ctx context.Context, msg Message) Result {
	if err := validate(msg); err != nil {
		return failed(ReasonRejected, err)
	}
	if err := ctx.Err(); err != nil {
		return failed(ReasonConnect, err)
	}

	s.log.Debugw("Preparing to send mail", "receivers", len(msg.To), "subject", msg.Subject)
	m := gomail.NewMessage()
	if s.fromName != "" {
		m.SetAddressHeader("From", msg.From, s.fromName)
	} else {
		m.SetHeader("From", msg.From)
	}
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	conn, err := s.dialer.Dial()
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Host()).Inc()
		return failed(ReasonConnect, fmt.Errorf("connecting to %s:%d: %w", s.Host(), s.Port(), err))
	}
	defer func() {
		_ = conn.Close()
	}()

	if err := gomail.Send(conn, m); err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Host()).Inc()
		return failed(ReasonRejected, err)
	}

	s.log.Debugw("Mail sent", "receivers", len(msg.To), "subject", msg.Subject)
	metrics.MailSendSuccess.WithLabelValues(s.Host()).Inc()
	return sent()
}

func validate(msg Message) error {
	if msg.From == "" {
		return errors.New("sender address is required")
	}
	if len(msg.To) == 0 {
		return errors.New("at least one receiver is required")
	}
	return nil
}
