package mail

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"github.com/sipwatch/sipwatch/pkg/voipms"
)

// RegistrationMailParams feeds the failed and restored templates.
type RegistrationMailParams struct {
	Account       string
	Registered    string
	Status        string // provider response as indented JSON
	Registrations []voipms.Registration
	CheckedAt     time.Time
	RunID         string
}

var (
	//go:embed templates/failed.txt
	failedTemplateRaw string
	//go:embed templates/restored.txt
	restoredTemplateRaw string

	failedTemplate   = template.Must(template.New("failed").Funcs(sprig.TxtFuncMap()).Parse(failedTemplateRaw))
	restoredTemplate = template.Must(template.New("restored").Funcs(sprig.TxtFuncMap()).Parse(restoredTemplateRaw))
)

func FailedSubject(account string) string {
	return "Registration failed for account " + account
}

func RestoredSubject(account string) string {
	return "Registration restored for account " + account
}

func RenderFailed(p RegistrationMailParams) (string, error) {
	return render(failedTemplate, p)
}

func RenderRestored(p RegistrationMailParams) (string, error) {
	return render(restoredTemplate, p)
}

func render(t *template.Template, data any) (string, error) {
	b := bytes.Buffer{}
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s template: %w", t.Name(), err)
	}
	return b.String(), nil
}

// Notifier turns registration transitions into rendered messages for a
// fixed sender and receiver list.
type Notifier struct {
	sender Sender
	from   string
	to     []string
}

func NewNotifier(sender Sender, from string, to []string) *Notifier {
	return &Notifier{sender: sender, from: from, to: append([]string(nil), to...)}
}

func (n *Notifier) NotifyFailed(ctx context.Context, p RegistrationMailParams) Result {
	body, err := RenderFailed(p)
	if err != nil {
		return failed(ReasonRender, err)
	}
	return n.sender.Send(ctx, Message{From: n.from, To: n.to, Subject: FailedSubject(p.Account), Body: body})
}

func (n *Notifier) NotifyRestored(ctx context.Context, p RegistrationMailParams) Result {
	body, err := RenderRestored(p)
	if err != nil {
		return failed(ReasonRender, err)
	}
	return n.sender.Send(ctx, Message{From: n.from, To: n.to, Subject: RestoredSubject(p.Account), Body: body})
}
