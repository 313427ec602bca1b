package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zenportal/backend/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

// Sender delivers a single message. Implementations must be safe for
// concurrent use; queue workers share one instance.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendSender delivers through the Resend REST API. When no API key is
// configured it logs and drops the message, so development environments work
// without an account.
type ResendSender struct {
	apiKey string
	from   string
	http   *http.Client
}

func NewResendSender(cfg config.ResendConfig) *ResendSender {
	return &ResendSender{
		apiKey: cfg.APIKey,
		from:   cfg.From,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if s.apiKey == "" {
		slog.Warn("resend api key not configured, dropping email",
			"to", msg.To, "subject", msg.Subject)
		return nil
	}

	payload := struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		HTML    string   `json:"html"`
	}{s.from, msg.To, msg.Subject, msg.HTML}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}
