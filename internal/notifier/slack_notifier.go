package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	config "github.com/Keoroanthony/orders-api/configs"
)

// Alerter posts operational messages for humans to follow up on.
type Alerter interface {
	Info(ctx context.Context, message string) error
	Error(ctx context.Context, message string) error
}

type Slack struct {
	client *slack.Client
	cfg    config.SlackConfig
}

func NewSlack(cfg config.SlackConfig, opts ...slack.Option) *Slack {
	return &Slack{client: slack.New(cfg.BotToken, opts...), cfg: cfg}
}

func (s *Slack) postMessage(ctx context.Context, channelID, message string) error {
	if channelID == "" {
		return nil
	}

	_, _, err := s.client.PostMessageContext(ctx,
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.cfg.InfoChannelID, message)
}

func (s *Slack) Error(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.cfg.ErrorChannelID, message)
}

// Announce posts an informational notice. A failed post is logged, never
// returned. A nil alerter does nothing.
func Announce(ctx context.Context, alerter Alerter, message string) {
	if alerter == nil {
		return
	}
	if err := alerter.Info(ctx, message); err != nil {
		slog.WarnContext(ctx, "failed to post notice", "error", err)
	}
}

type alertingSender struct {
	next    SMSSender
	alerter Alerter
}

// WithAlerts wraps sender so that every attempt that hit a gateway error is
// also reported to alerter. The outcome is passed through untouched.
func WithAlerts(sender SMSSender, alerter Alerter) SMSSender {
	if alerter == nil {
		return sender
	}
	return &alertingSender{next: sender, alerter: alerter}
}

func (a *alertingSender) Send(ctx context.Context, to, message string) Outcome {
	outcome := a.next.Send(ctx, to, message)
	if outcome.Err == nil {
		return outcome
	}

	alert := fmt.Sprintf(":warning: SMS to %s was not delivered (%s): %v", outcome.To, outcome.Status, outcome.Err)
	if err := a.alerter.Error(ctx, alert); err != nil {
		slog.WarnContext(ctx, "failed to post sms failure alert", "error", err)
	}
	return outcome
}
