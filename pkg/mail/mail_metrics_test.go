package mail

import (
	"context"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipwatch/sipwatch/pkg/metrics"
	"github.com/sipwatch/sipwatch/pkg/system"
)

func TestConnectFailureCountsAsSendFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	failures := metrics.MailSendFailure.WithLabelValues("127.0.0.1")
	successes := metrics.MailSendSuccess.WithLabelValues("127.0.0.1")
	beforeFail, beforeOK := testutil.ToFloat64(failures), testutil.ToFloat64(successes)

	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: port, Username: "u", Password: "p"}, system.NewTestLogger())
	res := sender.Send(context.Background(), Message{From: "a@example.com", To: []string{"b@example.com"}})
	require.False(t, res.Sent)

	assert.Equal(t, beforeFail+1, testutil.ToFloat64(failures))
	assert.Equal(t, beforeOK, testutil.ToFloat64(successes))
}

func TestDisabledSenderRecordsNoMetrics(t *testing.T) {
	before := testutil.CollectAndCount(metrics.MailSendFailure)
	DisabledSender{}.Send(context.Background(), Message{From: "a@example.com", To: []string{"b@example.com"}})
	assert.Equal(t, before, testutil.CollectAndCount(metrics.MailSendFailure))
}
