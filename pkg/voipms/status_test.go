package voipms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrationStatusAccessors(t *testing.T) {
	tests := []struct {
		name       string
		raw        map[string]any
		registered string
		isUp       bool
	}{
		{name: "yes", raw: map[string]any{"registered": "yes"}, registered: "yes", isUp: true},
		{name: "no", raw: map[string]any{"registered": "no"}, registered: "no"},
		{name: "unexpected value", raw: map[string]any{"registered": "unknown"}, registered: "unknown"},
		{name: "null", raw: map[string]any{"registered": nil}},
		{name: "missing", raw: map[string]any{}},
		{name: "nil map"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := RegistrationStatus{Account: "a", Raw: tt.raw}
			assert.Equal(t, tt.registered, s.Registered())
			assert.Equal(t, tt.isUp, s.IsRegistered())
		})
	}
}

func TestRegistrationStatusString(t *testing.T) {
	assert.Equal(t, "{}", RegistrationStatus{}.String())
	s := RegistrationStatus{Raw: map[string]any{"registered": "no", "status": "success"}}
	assert.Equal(t, "{\n  \"registered\": \"no\",\n  \"status\": \"success\"\n}", s.String())
}

func TestRegistrationStatusCompact(t *testing.T) {
	assert.Equal(t, "{}", RegistrationStatus{}.Compact())
	s := RegistrationStatus{Raw: map[string]any{"status": "success", "registered": "no"}}
	assert.Equal(t, `{"registered":"no","status":"success"}`, s.Compact())
}

func TestRegistrationsMalformed(t *testing.T) {
	s := RegistrationStatus{Raw: map[string]any{"registrations": "not-a-list"}}
	assert.Nil(t, s.Registrations())
}
