package calendar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
)

func TestCreateEventInsertsAllDayEvent(t *testing.T) {
	const expectedURL = "http://calendar.test/v3/calendars/ops@example.com/events"

	var capturedURL string
	var captured map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"htmlLink":"http://calendar.test/event/abc"}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://calendar.test/v3", "ops@example.com", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	link, err := client.CreateEvent(context.Background(), Event{
		Date:        time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Title:       "Repair: crack",
		Description: "Teheran-ro 152",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if link != "http://calendar.test/event/abc" {
		t.Fatalf("unexpected link %q", link)
	}
	start, _ := captured["start"].(map[string]any)
	if start["date"] != "2026-03-14" {
		t.Fatalf("start date not normalized to day: %+v", captured)
	}
}

func TestCreateEventFailurePropagates(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Body:       io.NopCloser(strings.NewReader("insufficient permissions")),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://calendar.test/v3", "ops@example.com", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateEvent(context.Background(), Event{Date: time.Now(), Title: "Repair"})
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestCreateEventValidatesInput(t *testing.T) {
	client, err := NewClient("http://calendar.test/v3", "ops@example.com")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.CreateEvent(context.Background(), Event{Title: "no date"}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing date, got %v", err)
	}
	if _, err := client.CreateEvent(context.Background(), Event{Date: time.Now()}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing title, got %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
