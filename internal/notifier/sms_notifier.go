package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/Keoroanthony/orders-api/configs"
)

var ErrEmptyRecipient = errors.New("recipient phone number is empty")

type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSimulated Status = "simulated"
	StatusFailed    Status = "failed"
)

// Outcome is the result of one SMS attempt. Expected gateway problems are
// reported here instead of as Go errors.
type Outcome struct {
	Status   Status       `json:"status"`
	To       string       `json:"to"`
	Message  string       `json:"message"`
	Response *SMSResponse `json:"response,omitempty"`
	// Err is set for failed outcomes and for simulated outcomes that were
	// degraded from a gateway failure.
	Err error `json:"-"`
}

func (o Outcome) OK() bool {
	return o.Status == StatusDelivered || o.Status == StatusSimulated
}

// SMSSender delivers one text message.
type SMSSender interface {
	Send(ctx context.Context, to, message string) Outcome
}

// FailurePolicy decides how a gateway failure is reported.
type FailurePolicy int

const (
	// DegradeToSimulated reports a gateway failure as a simulated send.
	DegradeToSimulated FailurePolicy = iota
	// ReportFailure reports a gateway failure as StatusFailed.
	ReportFailure
)

type SMSResponse struct {
	SMSMessageData struct {
		Message    string      `json:"Message"`
		Recipients []Recipient `json:"Recipients"`
	} `json:"SMSMessageData"`
}

type Recipient struct {
	StatusCode int    `json:"statusCode"`
	Number     string `json:"number"`
	Cost       string `json:"cost"`
	Status     string `json:"status"`
	MessageID  string `json:"messageId"`
}

// AfricasTalkingClient sends SMS through the Africa's Talking messaging API.
// Without a username and API key it never touches the network.
type AfricasTalkingClient struct {
	cfg    config.AfricaTalkingConfig
	http   *http.Client
	policy FailurePolicy
}

func NewAfricasTalkingClient(cfg config.AfricaTalkingConfig, httpClient *http.Client) *AfricasTalkingClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &AfricasTalkingClient{cfg: cfg, http: httpClient, policy: DegradeToSimulated}
}

// WithFailurePolicy returns a copy of the client that shares its transport.
func (c *AfricasTalkingClient) WithFailurePolicy(p FailurePolicy) *AfricasTalkingClient {
	clone := *c
	clone.policy = p
	return &clone
}

func (c *AfricasTalkingClient) Configured() bool {
	return c.cfg.Configured()
}

func (c *AfricasTalkingClient) Send(ctx context.Context, to, message string) Outcome {
	to = NormalizePhone(to)

	if !c.Configured() {
		slog.InfoContext(ctx, "simulating sms send, africa's talking credentials not set",
			"to", to, "message", message)
		return Outcome{Status: StatusSimulated, To: to, Message: message}
	}

	var resp *SMSResponse
	err := ErrEmptyRecipient
	if to != "" {
		resp, err = c.post(ctx, to, message)
	}
	if err != nil {
		slog.WarnContext(ctx, "sms send failed", "to", to, "error", err)

		status := StatusSimulated
		if c.policy == ReportFailure {
			status = StatusFailed
		}
		return Outcome{Status: status, To: to, Message: message, Err: err}
	}

	slog.InfoContext(ctx, "sms sent", "to", to, "gateway_message", resp.SMSMessageData.Message)
	return Outcome{Status: StatusDelivered, To: to, Message: message, Response: resp}
}

func (c *AfricasTalkingClient) post(ctx context.Context, to, message string) (*SMSResponse, error) {
	data := url.Values{}
	data.Set("username", c.cfg.Username)
	data.Set("to", to)
	data.Set("message", message)
	if c.cfg.SenderID != "" {
		data.Set("from", c.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SMSURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sms api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var smsResp SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&smsResp); err != nil {
		return nil, fmt.Errorf("decode sms response: %w", err)
	}

	if !anyAccepted(smsResp.SMSMessageData.Recipients) {
		return &smsResp, fmt.Errorf("sms rejected: %s", rejectionReason(smsResp))
	}

	return &smsResp, nil
}

func anyAccepted(recipients []Recipient) bool {
	for _, r := range recipients {
		if r.Status == "Success" {
			return true
		}
	}
	return false
}

func rejectionReason(r SMSResponse) string {
	if len(r.SMSMessageData.Recipients) > 0 {
		return r.SMSMessageData.Recipients[0].Status
	}
	if r.SMSMessageData.Message != "" {
		return r.SMSMessageData.Message
	}
	return "no recipients accepted"
}

// NormalizePhone trims spaces and ensures the international "+" prefix.
func NormalizePhone(to string) string {
	to = strings.TrimSpace(to)
	if to == "" || strings.HasPrefix(to, "+") {
		return to
	}
	return "+" + to
}
