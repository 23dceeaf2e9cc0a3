package voipms

import (
	"encoding/json"
	"fmt"
)

// RegistrationStatus is the decoded getRegistrationStatus response. The
// payload is kept as-is so it can be logged and mailed verbatim.
type RegistrationStatus struct {
	Account string
	Raw     map[string]any
}

// Registration is one entry of the optional "registrations" array.
type Registration struct {
	ServerName      string `json:"server_name"`
	ServerShortname string `json:"server_shortname"`
	ServerHostname  string `json:"server_hostname"`
	ServerIP        string `json:"server_ip"`
	ServerCountry   string `json:"server_country"`
	ServerPop       string `json:"server_pop"`
	RegisterIP      string `json:"register_ip"`
	RegisterPort    string `json:"register_port"`
	RegisterNext    string `json:"register_next"`
}

// Registered returns the "registered" field, or "" when absent.
func (s RegistrationStatus) Registered() string {
	v, ok := s.Raw["registered"]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// IsRegistered reports whether the account is registered. Anything other
// than "yes", including a missing field, counts as not registered.
func (s RegistrationStatus) IsRegistered() bool {
	return s.Registered() == "yes"
}

// Registrations decodes the "registrations" array. Malformed entries yield nil.
func (s RegistrationStatus) Registrations() []Registration {
	v, ok := s.Raw["registrations"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out []Registration
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// String renders the payload as indented JSON.
func (s RegistrationStatus) String() string {
	if s.Raw == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(s.Raw, "", "  ")
	if err != nil {
		return fmt.Sprint(s.Raw)
	}
	return string(data)
}

// Compact renders the payload as single-line JSON, for log lines.
func (s RegistrationStatus) Compact() string {
	if s.Raw == nil {
		return "{}"
	}
	data, err := json.Marshal(s.Raw)
	if err != nil {
		return fmt.Sprint(s.Raw)
	}
	return string(data)
}
