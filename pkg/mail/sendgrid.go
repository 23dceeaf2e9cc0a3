package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/metrics"
)

const sendgridHost = "api.sendgrid.com"

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers through the SendGrid v3 mail API.
type SendGridSender struct {
	client   sendgridClient
	fromName string
	log      *zap.SugaredLogger
}

func NewSendGridSender(apiKey, fromName string, log *zap.SugaredLogger) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		log:      log.Named("sendgrid"),
	}
}

func (s *SendGridSender) Name() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) Result {
	if err := validate(msg); err != nil {
		return failed(ReasonRejected, err)
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(s.fromName, msg.From))
	m.Subject = msg.Subject
	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(sendgridHost).Inc()
		return failed(ReasonConnect, err)
	}
	if resp.StatusCode >= 300 {
		metrics.MailSendFailure.WithLabelValues(sendgridHost).Inc()
		s.log.Warnw("SendGrid returned an error response", "statusCode", resp.StatusCode, "body", resp.Body)
		return failed(ReasonRejected, fmt.Errorf("sendgrid responded with status %d", resp.StatusCode))
	}

	metrics.MailSendSuccess.WithLabelValues(sendgridHost).Inc()
	return sent()
}
