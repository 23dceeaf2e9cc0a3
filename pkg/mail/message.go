package mail

import (
	"context"
	"encoding/json"
	"fmt"
)

// Reasons reported in Result.Reason.
const (
	ReasonSent     = "sent"
	ReasonConnect  = "connect"
	ReasonRejected = "rejected"
	ReasonRender   = "render"
	ReasonDisabled = "disabled"
)

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Result describes the outcome of one send attempt.
type Result struct {
	Sent   bool
	Reason string
	Err    error
}

func sent() Result { return Result{Sent: true, Reason: ReasonSent} }

func failed(reason string, err error) Result {
	return Result{Reason: reason, Err: err}
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return r.Reason
}

// MarshalJSON renders Err as a string.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Sent   bool   `json:"sent"`
		Reason string `json:"reason"`
		Error  string `json:"error,omitempty"`
	}{Sent: r.Sent, Reason: r.Reason}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
	Name() string
}

// DisabledSender drops every message.
type DisabledSender struct{}

func (DisabledSender) Send(context.Context, Message) Result {
	return Result{Reason: ReasonDisabled}
}

func (DisabledSender) Name() string { return "disabled" }
