package geocode

import (
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
	defaultBaseURL              = "https://maps.apigw.ntruss.com/map-reversegeocode/v2"
	requestBodyReadLimit  int64 = 1024
	statusCodeOK                = 0
	statusCodeNoResults         = 3
)

var (
	errCredentialsRequired = errors.New("geocode client id and secret are required")
)

// Client wraps the NCP reverse-geocoding API used to turn drone
// coordinates into road addresses.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
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

// WithBaseURL overrides the configured reverse-geocode base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the reverse-geocode client given API credentials.
func NewClient(clientID, clientSecret string, opts ...Option) (*Client, error) {
	id := strings.TrimSpace(clientID)
	secret := strings.TrimSpace(clientSecret)
	if id == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		clientID:     id,
		clientSecret: secret,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// ReverseGeocode resolves a latitude/longitude pair into a human-readable
// road address. An empty string with nil error means the provider had no
// address for the coordinates.
func (c *Client) ReverseGeocode(ctx context.Context, latitude, longitude float64) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "geocode client not configured")
	}

	query := url.Values{}
	// Provider expects longitude first.
	query.Set("coords", fmt.Sprintf("%f,%f", longitude, latitude))
	query.Set("orders", "roadaddr")
	query.Set("output", "json")

	endpoint := fmt.Sprintf("%s/gc?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build reverse geocode request")
	}

	httpReq.Header.Set("x-ncp-apigw-api-key-id", c.clientID)
	httpReq.Header.Set("x-ncp-apigw-api-key", c.clientSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute reverse geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "reverse geocode request failed")
	}

	var apiResp struct {
		Status struct {
			Code    int    `json:"code"`
			Name    string `json:"name"`
			Message string `json:"message"`
		} `json:"status"`
		Results []struct {
			Region struct {
				Area1 struct {
					Name string `json:"name"`
				} `json:"area1"`
				Area2 struct {
					Name string `json:"name"`
				} `json:"area2"`
			} `json:"region"`
			Land struct {
				Name    string `json:"name"`
				Number1 string `json:"number1"`
				Number2 string `json:"number2"`
				Addition0 struct {
					Value string `json:"value"`
				} `json:"addition0"`
			} `json:"land"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode reverse geocode response")
	}

	if apiResp.Status.Code == statusCodeNoResults || len(apiResp.Results) == 0 {
		return "", nil
	}
	if apiResp.Status.Code != statusCodeOK {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("provider status %d: %s", apiResp.Status.Code, apiResp.Status.Message), "reverse geocode rejected")
	}

	return composeRoadAddress(
		apiResp.Results[0].Region.Area1.Name,
		apiResp.Results[0].Region.Area2.Name,
		apiResp.Results[0].Land.Name,
		apiResp.Results[0].Land.Number1,
		apiResp.Results[0].Land.Addition0.Value,
	), nil
}

func composeRoadAddress(area1, area2, road, number, building string) string {
	parts := make([]string, 0, 5)
	for _, part := range []string{area1, area2, road, number} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	address := strings.Join(parts, " ")
	if b := strings.TrimSpace(building); b != "" && address != "" {
		address = fmt.Sprintf("%s (%s)", address, b)
	}
	return address
}
