package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/Keoroanthony/orders-api/configs"
)

type stubSender struct {
	outcome Outcome
	calls   int
}

func (s *stubSender) Send(_ context.Context, to, message string) Outcome {
	s.calls++
	o := s.outcome
	o.To, o.Message = to, message
	return o
}

type recordingAlerter struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	err    error
}

func (r *recordingAlerter) Info(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, message)
	return r.err
}

func (r *recordingAlerter) Error(_ context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
	return r.err
}

func TestWithAlertsPostsOnGatewayError(t *testing.T) {
	inner := &stubSender{outcome: Outcome{Status: StatusSimulated, Err: errors.New("gateway down")}}
	alerter := &recordingAlerter{}

	outcome := WithAlerts(inner, alerter).Send(context.Background(), "+254700000000", "Hi")

	assert.Equal(t, StatusSimulated, outcome.Status)
	assert.Equal(t, 1, inner.calls)
	require.Len(t, alerter.errors, 1)
	assert.Contains(t, alerter.errors[0], "+254700000000")
	assert.Contains(t, alerter.errors[0], "gateway down")
}

func TestWithAlertsQuietOnSuccess(t *testing.T) {
	for _, status := range []Status{StatusDelivered, StatusSimulated} {
		alerter := &recordingAlerter{}
		WithAlerts(&stubSender{outcome: Outcome{Status: status}}, alerter).Send(context.Background(), "+1", "Hi")
		assert.Empty(t, alerter.errors)
	}
}

func TestWithAlertsIgnoresAlertFailure(t *testing.T) {
	inner := &stubSender{outcome: Outcome{Status: StatusFailed, Err: errors.New("gateway down")}}
	alerter := &recordingAlerter{err: errors.New("slack down")}

	outcome := WithAlerts(inner, alerter).Send(context.Background(), "+1", "Hi")

	assert.Equal(t, StatusFailed, outcome.Status)
}

func TestWithAlertsNilAlerter(t *testing.T) {
	inner := &stubSender{}
	assert.Same(t, SMSSender(inner), WithAlerts(inner, nil))
}

func TestSlackPostsToErrorChannel(t *testing.T) {
	var channel, text string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		channel = r.PostForm.Get("channel")
		text = r.PostForm.Get("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C-ERR","ts":"1700000000.000100"}`))
	}))
	t.Cleanup(server.Close)

	s := NewSlack(config.SlackConfig{BotToken: "xoxb-test", ErrorChannelID: "C-ERR"}, slack.OptionAPIURL(server.URL+"/"))

	require.NoError(t, s.Error(context.Background(), "sms failed"))
	assert.Equal(t, "C-ERR", channel)
	assert.Equal(t, "sms failed", text)

	// no info channel configured
	assert.NoError(t, s.Info(context.Background(), "ignored"))
}

func TestAnnounce(t *testing.T) {
	alerter := &recordingAlerter{}
	Announce(context.Background(), alerter, "orders-api started")
	assert.Equal(t, []string{"orders-api started"}, alerter.infos)
	assert.Empty(t, alerter.errors)

	failing := &recordingAlerter{err: errors.New("slack down")}
	assert.NotPanics(t, func() { Announce(context.Background(), failing, "ignored failure") })

	assert.NotPanics(t, func() { Announce(context.Background(), nil, "no alerter") })
}

func TestSlackPostsToInfoChannel(t *testing.T) {
	var channel, text string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		channel = r.PostForm.Get("channel")
		text = r.PostForm.Get("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C-INFO","ts":"1700000000.000200"}`))
	}))
	t.Cleanup(server.Close)

	s := NewSlack(config.SlackConfig{BotToken: "xoxb-test", InfoChannelID: "C-INFO", ErrorChannelID: "C-ERR"}, slack.OptionAPIURL(server.URL+"/"))

	Announce(context.Background(), s, "orders-api started on :8080")
	assert.Equal(t, "C-INFO", channel)
	assert.Equal(t, "orders-api started on :8080", text)
}

func TestSlackReportsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	t.Cleanup(server.Close)

	s := NewSlack(config.SlackConfig{BotToken: "xoxb-test", ErrorChannelID: "C-ERR"}, slack.OptionAPIURL(server.URL+"/"))

	assert.ErrorContains(t, s.Error(context.Background(), "sms failed"), "channel_not_found")
}
