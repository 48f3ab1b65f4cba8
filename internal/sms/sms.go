// Package sms delivers one-time codes by text message.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrSendFailed = errors.New("sms delivery failed")

type Sender interface {
	Send(ctx context.Context, to, body string) error
}

const twilioBaseURL = "https://api.twilio.com"

type TwilioSender struct {
	client     *resty.Client
	accountSID string
	from       string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return newTwilioSender(twilioBaseURL, accountSID, authToken, from)
}

func newTwilioSender(baseURL, accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		client: resty.New().
			SetBaseURL(baseURL).
			SetBasicAuth(accountSID, authToken).
			SetTimeout(15 * time.Second),
		accountSID: accountSID,
		from:       from,
	}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	var apiErr twilioError
	res, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.from,
			"Body": body,
		}).
		SetError(&apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", s.accountSID))
	if err != nil {
		slog.Error("unable to reach twilio", "error", err)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	if !res.IsSuccess() {
		slog.Error("twilio returned error", "status_code", res.StatusCode(), "code", apiErr.Code, "message", apiErr.Message)
		return fmt.Errorf("%w: status %d", ErrSendFailed, res.StatusCode())
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used when no
// SMS provider is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, body string) error {
	slog.InfoContext(ctx, "sms not configured, logging message", "to", to, "body", body)
	return nil
}
