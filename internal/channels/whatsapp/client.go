package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// Client talks to the WhatsApp gateway's HTTP send API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a gateway client. baseURL has no trailing slash.
func NewClient(baseURL, token string, logger *logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
}

// SendText delivers a text message to a phone number.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	return c.post(ctx, "/v1/messages", map[string]string{
		"to":   to,
		"type": "text",
		"text": text,
	})
}

// SendTyping shows the typing indicator while a turn is being processed.
// Best effort: the gateway may not support presence at all.
func (c *Client) SendTyping(ctx context.Context, to string) error {
	return c.post(ctx, "/v1/presence", map[string]string{
		"to":    to,
		"state": "composing",
	})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp: gateway status %d: %s", resp.StatusCode, raw)
	}
	return nil
}

var _ Sender = (*Client)(nil)
