package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	requestBodyReadLimit  int64 = 1024
)

var (
	errWebhookRequired = errors.New("chat webhook url is required")
)

// Client posts operator-facing messages to the team chat webhook.
type Client struct {
	httpClient *http.Client
	webhookURL string
	channel    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithChannel routes messages to a specific channel instead of the
// webhook default.
func WithChannel(channel string) Option {
	return func(c *Client) {
		c.channel = strings.TrimSpace(channel)
	}
}

// NewClient builds the chat webhook client.
func NewClient(webhookURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(webhookURL)
	if trimmed == "" {
		return nil, errWebhookRequired
	}

	client := &Client{
		webhookURL: trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return client, nil
}

// Action is a button rendered under a message.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Message is the structured payload sent to the webhook.
type Message struct {
	Title         string   `json:"title,omitempty"`
	Body          string   `json:"body"`
	ImageURL      string   `json:"image_url,omitempty"`
	Actions       []Action `json:"actions,omitempty"`
	InteractionID string   `json:"interaction_id,omitempty"`
	Channel       string   `json:"channel,omitempty"`
}

// Send delivers the message. The interaction id on the message lets a
// later Send update or answer an earlier deferred interaction.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "chat client not configured")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal chat message")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute chat request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "chat webhook rejected message")
	}

	return nil
}
