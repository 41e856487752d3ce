package vision

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

	"github.com/minjaecho/defectwatch-backend/pkg/enums"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
)

const (
	defaultTimeout              = 120 * time.Second
	requestBodyReadLimit  int64 = 2048
)

const classifyPrompt = `You are inspecting a photo of building damage taken by a drone.
Identify the defect and reply with exactly two lines:
type: one of crack, spalling, paint-damage, rebar-exposure
urgency: one of high, medium, low`

var (
	errBaseURLRequired = errors.New("vision base url is required")
)

// Client talks to the vision-language inference gateway that classifies
// defect photos and answers follow-up questions about them.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
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

// WithTimeout bounds how long a single inference call may run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds the inference gateway client.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		apiKey:     strings.TrimSpace(apiKey),
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

// Classification is the structured result extracted from the model reply.
type Classification struct {
	DefectType enums.DefectType
	Urgency    enums.Urgency
}

// Classify asks the model to identify the defect in the referenced image.
func (c *Client) Classify(ctx context.Context, imageRef string) (Classification, error) {
	content, err := c.generate(ctx, imageRef, classifyPrompt)
	if err != nil {
		return Classification{}, err
	}
	return parseClassification(content)
}

// Answer asks the model a follow-up question about the referenced image.
// The hint carries already-known classification so the model does not
// contradict the stored record.
func (c *Client) Answer(ctx context.Context, imageRef string, kind enums.QuestionKind, hint string) (string, error) {
	prompt := kind.Prompt()
	if trimmed := strings.TrimSpace(hint); trimmed != "" {
		prompt = fmt.Sprintf("%s\nKnown context: %s", prompt, trimmed)
	}
	content, err := c.generate(ctx, imageRef, prompt)
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(content)
	if answer == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "model returned an empty answer")
	}
	return answer, nil
}

func (c *Client) generate(ctx context.Context, imageRef, prompt string) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "vision client not configured")
	}
	if strings.TrimSpace(imageRef) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image reference is required")
	}

	payload, err := json.Marshal(map[string]string{
		"image":  imageRef,
		"prompt": prompt,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal inference request")
	}

	endpoint := fmt.Sprintf("%s/v1/generate", strings.TrimRight(c.baseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build inference request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute inference request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "inference request failed")
	}

	var apiResp struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode inference response")
	}

	return apiResp.Content, nil
}

// parseClassification scans the model reply for the labeled lines. Models
// wrap answers in prose often enough that strict formats fail in practice.
func parseClassification(content string) (Classification, error) {
	var result Classification
	var haveType, haveUrgency bool

	for _, line := range strings.Split(content, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = normalizeToken(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "type":
			if dt, err := enums.ParseDefectType(value); err == nil {
				result.DefectType = dt
				haveType = true
			}
		case "urgency":
			if u, err := enums.ParseUrgency(value); err == nil {
				result.Urgency = u
				haveUrgency = true
			}
		}
	}

	if !haveType || !haveUrgency {
		return Classification{}, pkgerrors.New(pkgerrors.CodeDependency, "model reply did not contain a usable classification").
			WithDetails(map[string]any{"content": strings.TrimSpace(content)})
	}
	return result, nil
}

func normalizeToken(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.Trim(value, ".*`'\" ")
	return strings.ReplaceAll(value, " ", "-")
}
