package voipms

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSMS(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, MethodSendSMS, q.Get("method"))
		assert.Equal(t, "5551234", q.Get("did"))
		assert.Equal(t, "5559876", q.Get("dst"))
		assert.Equal(t, "Hello World", q.Get("message"))
		_, _ = w.Write([]byte(`{"status":"success","sms":23434567}`))
	})

	receipt, err := c.SendSMS(context.Background(), "5551234", "5559876", "Hello World")
	require.NoError(t, err)
	assert.Equal(t, "23434567", receipt.ID)
}

func TestSendSMSValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.RawQuery)
	})

	tests := []struct {
		name, did, dst, message string
	}{
		{name: "missing did", dst: "1", message: "x"},
		{name: "missing dst", did: "1", message: "x"},
		{name: "empty message", did: "1", dst: "2"},
		{name: "too long", did: "1", dst: "2", message: strings.Repeat("a", MaxSMSLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SendSMS(context.Background(), tt.did, tt.dst, tt.message)
			require.Error(t, err)
		})
	}
}

func TestSendSMSCountsCharactersNotBytes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","sms":1}`))
	})
	_, err := c.SendSMS(context.Background(), "1", "2", strings.Repeat("é", MaxSMSLength))
	require.NoError(t, err)
}

func TestSendSMSAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"invalid_did"}`))
	})
	_, err := c.SendSMS(context.Background(), "1", "2", "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_did", apiErr.Status)
}
