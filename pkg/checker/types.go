package checker

import (
	"time"

	"github.com/sipwatch/sipwatch/pkg/mail"
)

// Outcome is the decision taken for one account in one run.
type Outcome string

const (
	OutcomeHealthy        Outcome = "healthy"
	OutcomeFailedNew      Outcome = "failed-new"
	OutcomeFailedNotified Outcome = "failed-notified"
	OutcomeRecovered      Outcome = "recovered"
)

type AccountResult struct {
	Account    string         `json:"account"`
	Outcome    Outcome        `json:"outcome"`
	Registered string         `json:"registered"`
	Status     map[string]any `json:"status,omitempty"`
	// Notification is nil when no email was attempted.
	Notification *mail.Result `json:"notification,omitempty"`
}

// Report summarises one run. Results are in configured account order and
// stop at the account that aborted the run, if any.
type Report struct {
	RunID      string          `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Results    []AccountResult `json:"results"`
	Error      string          `json:"error,omitempty"`
}
