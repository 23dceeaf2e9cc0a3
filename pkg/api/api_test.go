package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sipwatch/sipwatch/pkg/checker"
	"github.com/sipwatch/sipwatch/pkg/mail"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := NewServer(zaptest.NewLogger(t), true)
	t.Cleanup(s.Close)
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sipwatch_run_failures_total")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s.Handler(), "/api/v1/status")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"no run has completed yet","code":"NOT_FOUND"}`, w.Body.String())
}

func TestStatusAfterRun(t *testing.T) {
	s := newTestServer(t)
	started := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	s.SetReport(checker.Report{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Results: []checker.AccountResult{
			{Account: "A", Outcome: checker.OutcomeHealthy, Registered: "yes"},
			{Account: "B", Outcome: checker.OutcomeFailedNew, Registered: "no",
				Notification: &mail.Result{Reason: mail.ReasonConnect, Err: fmt.Errorf("refused")}},
		},
	})
	s.SetReport(checker.Report{RunID: "run-2", Results: []checker.AccountResult{{Account: "A", Outcome: checker.OutcomeHealthy}}})

	w := get(t, s.Handler(), "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Runs   int            `json:"runs"`
		Report checker.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Runs)
	assert.Equal(t, "run-2", body.Report.RunID)
	require.Len(t, body.Report.Results, 1)
}

func TestStatusNotificationJSON(t *testing.T) {
	s := newTestServer(t)
	s.SetReport(checker.Report{RunID: "r", Results: []checker.AccountResult{
		{Account: "B", Outcome: checker.OutcomeFailedNew, Notification: &mail.Result{Reason: mail.ReasonConnect, Err: fmt.Errorf("refused")}},
	}})

	w := get(t, s.Handler(), "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notification":{"sent":false,"reason":"connect","error":"refused"}`)
	assert.Contains(t, w.Body.String(), `"outcome":"failed-new"`)
}

func TestVersionEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := get(t, s.Handler(), "/api/v1/version")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version"`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
