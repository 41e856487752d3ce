package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	requestBodyReadLimit  int64 = 1024
)

var (
	errBaseURLRequired    = errors.New("calendar base url is required")
	errCalendarIDRequired = errors.New("calendar id is required")
)

// Client inserts repair appointments into the shared operations calendar.
type Client struct {
	httpClient *http.Client
	baseURL    string
	calendarID string
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

// NewClient builds the calendar client. Credentials are expected to be
// provisioned ambiently (service-account file or metadata server).
func NewClient(baseURL, calendarID string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedID := strings.TrimSpace(calendarID)
	if trimmedID == "" {
		return nil, errCalendarIDRequired
	}

	client := &Client{
		baseURL:    trimmedURL,
		calendarID: trimmedID,
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

// Event describes a repair appointment.
type Event struct {
	Date        time.Time
	Title       string
	Description string
}

// CreateEvent inserts an all-day event and returns the provider link.
// Failures propagate; callers must not report a scheduled repair unless
// the event actually exists.
func (c *Client) CreateEvent(ctx context.Context, event Event) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "calendar client not configured")
	}
	if event.Date.IsZero() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event date is required")
	}
	if strings.TrimSpace(event.Title) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event title is required")
	}

	day := event.Date.UTC().Format("2006-01-02")
	payload, err := json.Marshal(map[string]any{
		"summary":     event.Title,
		"description": event.Description,
		"start":       map[string]string{"date": day},
		"end":         map[string]string{"date": day},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal calendar event")
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events",
		strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.calendarID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build calendar request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute calendar request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "calendar insert failed")
	}

	var apiResp struct {
		HTMLLink string `json:"htmlLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode calendar response")
	}

	return apiResp.HTMLLink, nil
}
