package checker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwatch/sipwatch/pkg/events"
	"github.com/sipwatch/sipwatch/pkg/logfile"
	"github.com/sipwatch/sipwatch/pkg/mail"
	"github.com/sipwatch/sipwatch/pkg/marker"
	"github.com/sipwatch/sipwatch/pkg/metrics"
	"github.com/sipwatch/sipwatch/pkg/system"
	"github.com/sipwatch/sipwatch/pkg/voipms"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	registered map[string]string
	errs       map[string]error
	calls      []string
}

func (f *fakeFetcher) GetRegistrationStatus(_ context.Context, account string) (voipms.RegistrationStatus, error) {
	f.calls = append(f.calls, account)
	if err := f.errs[account]; err != nil {
		return voipms.RegistrationStatus{}, err
	}
	raw := map[string]any{"status": "success"}
	if v, ok := f.registered[account]; ok {
		raw["registered"] = v
	}
	return voipms.RegistrationStatus{Account: account, Raw: raw}, nil
}

type sentMail struct {
	kind   string
	params mail.RegistrationMailParams
}

type fakeNotifier struct {
	sent   []sentMail
	result mail.Result
}

func (n *fakeNotifier) NotifyFailed(_ context.Context, p mail.RegistrationMailParams) mail.Result {
	n.sent = append(n.sent, sentMail{kind: "failed", params: p})
	return n.result
}

func (n *fakeNotifier) NotifyRestored(_ context.Context, p mail.RegistrationMailParams) mail.Result {
	n.sent = append(n.sent, sentMail{kind: "restored", params: p})
	return n.result
}

type recordingSink struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (s *recordingSink) Write(_ context.Context, e *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}
func (s *recordingSink) Close() error { return nil }
func (s *recordingSink) Name() string { return "recording" }

type harness struct {
	fetcher  *fakeFetcher
	store    *marker.MemoryStore
	notifier *fakeNotifier
	sink     *recordingSink
	logPath  string
	checker  *Checker
}

func newHarness(t *testing.T, accounts []string, onRecovery bool, markers ...string) *harness {
	t.Helper()
	h := &harness{
		fetcher:  &fakeFetcher{registered: map[string]string{}, errs: map[string]error{}},
		store:    marker.NewMemoryStore(markers...),
		notifier: &fakeNotifier{result: mail.Result{Sent: true, Reason: mail.ReasonSent}},
		sink:     &recordingSink{},
		logPath:  filepath.Join(t.TempDir(), "sipwatch.log"),
	}
	clock := func() time.Time { return fixedNow }
	appender := logfile.New(h.logPath, "", 0, logfile.WithClock(clock))
	h.checker = New(
		Config{Accounts: accounts, NotifyOnRecovery: onRecovery},
		h.fetcher, h.store, h.notifier, appender,
		WithEventSink(h.sink),
		WithLogger(system.NewTestLogger()),
		WithClock(clock),
	)
	return h
}

func (h *harness) logLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(h.logPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func (h *harness) isSet(t *testing.T, account string) bool {
	t.Helper()
	ok, err := h.store.IsSet(context.Background(), account)
	require.NoError(t, err)
	return ok
}

func TestRun_TwoFailedRunsSendOneEmail(t *testing.T) {
	h := newHarness(t, []string{"A"}, true)
	h.fetcher.registered["A"] = "no"

	r1, err := h.checker.Run(context.Background())
	require.NoError(t, err)
	r2, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, "failed", h.notifier.sent[0].kind)
	assert.Equal(t, "A", h.notifier.sent[0].params.Account)
	assert.Contains(t, h.notifier.sent[0].params.Status, `"registered": "no"`)
	assert.True(t, h.isSet(t, "A"))

	assert.Equal(t, OutcomeFailedNew, r1.Results[0].Outcome)
	require.NotNil(t, r1.Results[0].Notification)
	assert.Equal(t, OutcomeFailedNotified, r2.Results[0].Outcome)
	assert.Nil(t, r2.Results[0].Notification)
	assert.NotEqual(t, r1.RunID, r2.RunID)
}

func TestRun_FailureThenRecovery(t *testing.T) {
	h := newHarness(t, []string{"A"}, true)
	h.fetcher.registered["A"] = "no"

	_, err := h.checker.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, h.isSet(t, "A"), "marker is created on failure")

	h.fetcher.registered["A"] = "yes"
	report, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, h.isSet(t, "A"), "marker is deleted on recovery")
	require.Len(t, h.notifier.sent, 2)
	assert.Equal(t, "failed", h.notifier.sent[0].kind)
	assert.Equal(t, "restored", h.notifier.sent[1].kind)
	assert.Equal(t, OutcomeRecovered, report.Results[0].Outcome)
}

func TestRun_SimilarAccountsWithFileMarkers(t *testing.T) {
	h := newHarness(t, []string{"100000 main", "100000_main"}, true)
	h.checker.store = marker.NewFileStore(t.TempDir())
	h.fetcher.registered["100000 main"] = "no"
	h.fetcher.registered["100000_main"] = "yes"

	for range 2 {
		_, err := h.checker.Run(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, h.notifier.sent, 1, "the healthy account must not see the other account's marker")
	assert.Equal(t, "failed", h.notifier.sent[0].kind)
	assert.Equal(t, "100000 main", h.notifier.sent[0].params.Account)
}

func TestRun_RecoveryEmailDisabledStillClearsMarker(t *testing.T) {
	h := newHarness(t, []string{"A"}, false, "A")
	h.fetcher.registered["A"] = "yes"

	report, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.notifier.sent)
	assert.False(t, h.isSet(t, "A"))
	assert.Equal(t, OutcomeRecovered, report.Results[0].Outcome)
	assert.Nil(t, report.Results[0].Notification)
	assert.Contains(t, strings.Join(h.logLines(t), "\n"), "recovery email disabled")
}

func TestRun_ExistingMarkerSuppressesEmail(t *testing.T) {
	h := newHarness(t, []string{"A"}, true, "A")
	h.fetcher.registered["A"] = "no"

	report, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.notifier.sent)
	assert.True(t, h.isSet(t, "A"))
	assert.Equal(t, OutcomeFailedNotified, report.Results[0].Outcome)
}

func TestRun_HealthyWithoutMarkerDoesNothing(t *testing.T) {
	h := newHarness(t, []string{"A"}, true)
	h.fetcher.registered["A"] = "yes"

	report, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.notifier.sent)
	assert.False(t, h.isSet(t, "A"))
	assert.Equal(t, OutcomeHealthy, report.Results[0].Outcome)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RegistrationUp.WithLabelValues("A")))
}

func TestRun_UnexpectedValuesCountAsFailure(t *testing.T) {
	h := newHarness(t, []string{"missing", "weird"}, true)
	h.fetcher.registered["weird"] = "maybe"

	report, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, OutcomeFailedNew, report.Results[0].Outcome)
	assert.Equal(t, "", report.Results[0].Registered)
	assert.Equal(t, OutcomeFailedNew, report.Results[1].Outcome)
	assert.Len(t, h.notifier.sent, 2)
}

func TestRun_MailFailureStillSetsMarker(t *testing.T) {
	h := newHarness(t, []string{"A"}, true)
	h.fetcher.registered["A"] = "no"
	h.notifier.result = mail.Result{Reason: mail.ReasonConnect, Err: errors.New("connection refused")}
	before := testutil.ToFloat64(metrics.Notifications.WithLabelValues("failed", mail.ReasonConnect))

	report, err := h.checker.Run(context.Background())
	require.NoError(t, err, "notification failures never abort the run")

	assert.True(t, h.isSet(t, "A"))
	require.NotNil(t, report.Results[0].Notification)
	assert.False(t, report.Results[0].Notification.Sent)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Notifications.WithLabelValues("failed", mail.ReasonConnect)))
	assert.Contains(t, strings.Join(h.logLines(t), "\n"), "Failed to send failed email: connect: connection refused")

	require.Len(t, h.sink.events, 1)
	assert.False(t, h.sink.events[0].Notified)
	assert.Equal(t, "connection refused", h.sink.events[0].NotificationError)
}

func TestRun_FetchErrorAbortsRemainingAccounts(t *testing.T) {
	h := newHarness(t, []string{"A", "B", "C"}, true)
	h.fetcher.registered["A"] = "no"
	h.fetcher.errs["B"] = &voipms.HTTPError{StatusCode: 500, Message: "boom"}
	h.fetcher.registered["C"] = "no"
	before := testutil.ToFloat64(metrics.RunFailures)

	report, err := h.checker.Run(context.Background())
	require.Error(t, err)
	var httpErr *voipms.HTTPError
	assert.ErrorAs(t, err, &httpErr)

	assert.Equal(t, []string{"A", "B"}, h.fetcher.calls, "C is never checked")
	assert.True(t, h.isSet(t, "A"), "side effects for earlier accounts are kept")
	assert.False(t, h.isSet(t, "C"))
	require.Len(t, report.Results, 1)
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RunFailures))

	lines := h.logLines(t)
	assert.NotContains(t, lines[len(lines)-1], lineEnded)
	assert.Contains(t, lines[len(lines)-1], "Registration check for account B aborted the run")
}

func TestRun_LogFileLayout(t *testing.T) {
	h := newHarness(t, []string{"A", "B"}, true)
	h.fetcher.registered["A"] = "yes"
	h.fetcher.registered["B"] = "yes"

	_, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	lines := h.logLines(t)
	require.Len(t, lines, 6)
	assert.Equal(t, "2026-05-01 12:00:00 - Registration validation started", lines[0])
	assert.Equal(t, `2026-05-01 12:00:00 - A: {"registered":"yes","status":"success"}`, lines[1])
	assert.Equal(t, "2026-05-01 12:00:00 - Account A is registered", lines[2])
	assert.Equal(t, "2026-05-01 12:00:00 - Registration validation ended", lines[5])
}

func TestRun_RotatesBeforeWriting(t *testing.T) {
	h := newHarness(t, nil, true)
	// 0 selects the default threshold, so use a tiny one on a fresh appender.
	appender := logfile.New(h.logPath, "", 0.000001, logfile.WithClock(func() time.Time { return fixedNow }))
	h.checker.logfile = appender
	require.NoError(t, os.WriteFile(h.logPath, []byte("old content that is large enough\n"), 0o644))
	before := testutil.ToFloat64(metrics.LogRotations)

	_, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	backup, err := os.ReadFile(h.logPath + ".bkp")
	require.NoError(t, err)
	assert.Equal(t, "old content that is large enough\n", string(backup))
	lines := h.logLines(t)
	assert.Equal(t, "2026-05-01 12:00:00 - Registration validation started", lines[0])
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LogRotations))
}

func TestRun_UnwritableLogFileIsFatal(t *testing.T) {
	h := newHarness(t, []string{"A"}, true)
	h.checker.logfile = logfile.New(t.TempDir(), "", 0)

	_, err := h.checker.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.fetcher.calls)
}

func TestRun_EventsPerDecision(t *testing.T) {
	h := newHarness(t, []string{"healthy", "new", "still", "back"}, true, "still", "back")
	h.fetcher.registered["healthy"] = "yes"
	h.fetcher.registered["new"] = "no"
	h.fetcher.registered["still"] = "no"
	h.fetcher.registered["back"] = "yes"

	report, err := h.checker.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.sink.events, 4)
	types := []events.EventType{}
	for _, e := range h.sink.events {
		types = append(types, e.Type)
		assert.Equal(t, report.RunID, e.RunID)
	}
	assert.Equal(t, []events.EventType{
		events.EventRegistrationHealthy,
		events.EventRegistrationFailed,
		events.EventRegistrationStillFailed,
		events.EventRegistrationRestored,
	}, types)
	assert.True(t, h.sink.events[1].Notified)
}

func TestRun_SinkErrorDoesNotAbort(t *testing.T) {
	h := newHarness(t, []string{"A", "B"}, true)
	h.fetcher.registered["A"] = "yes"
	h.fetcher.registered["B"] = "yes"
	h.sink.err = errors.New("sink down")

	report, err := h.checker.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
}

func TestRun_NoSinkConfigured(t *testing.T) {
	h := newHarness(t, []string{"A"}, true)
	h.checker.sink = nil
	h.fetcher.registered["A"] = "yes"

	_, err := h.checker.Run(context.Background())
	require.NoError(t, err)
}

type failingStore struct{ marker.Store }

func (failingStore) IsSet(context.Context, string) (bool, error) {
	return false, errors.New("disk on fire")
}

func TestRun_MarkerStoreErrorIsFatal(t *testing.T) {
	h := newHarness(t, []string{"A", "B"}, true)
	h.checker.store = failingStore{}
	h.fetcher.registered["A"] = "no"

	_, err := h.checker.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading marker for account A")
	assert.Equal(t, []string{"A"}, h.fetcher.calls)
	assert.Empty(t, h.notifier.sent)
}

func TestCheckAccount_MailParams(t *testing.T) {
	h := newHarness(t, []string{"A"}, true)
	h.fetcher.registered["A"] = "no"

	res, err := h.checker.CheckAccount(context.Background(), "run-x", "A")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailedNew, res.Outcome)

	require.Len(t, h.notifier.sent, 1)
	p := h.notifier.sent[0].params
	assert.Equal(t, "run-x", p.RunID)
	assert.Equal(t, fixedNow, p.CheckedAt)
	assert.Equal(t, "no", p.Registered)
}
