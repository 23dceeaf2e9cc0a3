/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the decision an event records.
type EventType string

const (
	EventRegistrationHealthy     EventType = "registration.healthy"
	EventRegistrationFailed      EventType = "registration.failed"
	EventRegistrationStillFailed EventType = "registration.still_failed"
	EventRegistrationRestored    EventType = "registration.restored"
)

// Event is one registration decision for one account.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Account   string    `json:"account"`
	RunID     string    `json:"runId"`
	Timestamp time.Time `json:"timestamp"`

	// Registered is the raw "registered" value returned by the provider.
	Registered string `json:"registered"`

	// Notified is true when an email was delivered for this decision.
	Notified          bool   `json:"notified"`
	NotificationError string `json:"notificationError,omitempty"`
}

// NewEvent returns an event with a fresh ID.
func NewEvent(t EventType, account, runID string, ts time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Account:   account,
		RunID:     runID,
		Timestamp: ts.UTC(),
	}
}
