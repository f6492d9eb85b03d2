// Package mailer delivers transactional email through the Sendgrid v3 REST
// API. Callers treat delivery as best-effort: checkout logs and swallows
// mailer errors after the order transaction has committed.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopsterhq/shopster-backend/pkg/config"
)

const defaultSendTimeout = 10 * time.Second

// Message is a single outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer is the delivery surface consumed by services.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends mail through Sendgrid.
type Client struct {
	cfg        config.SendgridConfig
	httpClient *http.Client
}

// New builds a Sendgrid-backed mailer. Returns an error when the API key or
// default sender is missing; use NewNoop for environments without Sendgrid.
func New(cfg config.SendgridConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, fmt.Errorf("sendgrid default sender is required")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultSendTimeout},
	}, nil
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridPayload struct {
	Personalizations []struct {
		To []sendgridAddress `json:"to"`
	} `json:"personalizations"`
	From    sendgridAddress   `json:"from"`
	Subject string            `json:"subject"`
	Content []sendgridContent `json:"content"`
}

// Send delivers one message. Non-2xx responses surface as errors with the
// response body included for the caller's log line.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		return fmt.Errorf("message body is required")
	}

	payload := sendgridPayload{
		From:    sendgridAddress{Email: c.cfg.DefaultFrom, Name: c.cfg.DefaultFromName},
		Subject: msg.Subject,
	}
	payload.Personalizations = append(payload.Personalizations, struct {
		To []sendgridAddress `json:"to"`
	}{To: []sendgridAddress{{Email: msg.To, Name: msg.ToName}}})
	// Sendgrid requires text/plain before text/html.
	if msg.TextBody != "" {
		payload.Content = append(payload.Content, sendgridContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		payload.Content = append(payload.Content, sendgridContent{Type: "text/html", Value: msg.HTMLBody})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sendgrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.sendgrid.com"
	}
	return base + "/v3/mail/send"
}

// Noop discards all mail. Used when Sendgrid is not configured.
type Noop struct{}

// NewNoop returns a mailer that silently drops messages.
func NewNoop() Noop { return Noop{} }

func (Noop) Send(context.Context, Message) error { return nil }
