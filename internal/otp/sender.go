package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Sender delivers a code to a mobile number.
type Sender interface {
	SendCode(ctx context.Context, mobile, code string) error
}

// LogSender writes codes to the log instead of sending an SMS.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender { return &LogSender{logger: logger} }

func (s *LogSender) SendCode(_ context.Context, mobile, code string) error {
	s.logger.Info("otp code (log delivery)", zap.String("mobile", mobile), zap.String("code", code))
	return nil
}

// HTTPSender posts codes to an SMS gateway.
type HTTPSender struct {
	http *resty.Client
	url  string
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func NewHTTPSender(url, apiKey string, timeout time.Duration) *HTTPSender {
	c := resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &HTTPSender{http: c, url: url}
}

func (s *HTTPSender) SendCode(ctx context.Context, mobile, code string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(smsRequest{
			To:      "+91" + mobile,
			Message: fmt.Sprintf("%s is your India Blood Connect verification code.", code),
		}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sms gateway: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
