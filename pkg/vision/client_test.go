package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/minjaecho/defectwatch-backend/pkg/enums"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
)

func TestClassifyParsesLabeledReply(t *testing.T) {
	respBody := `{"content":"Looking at the facade:\ntype: Rebar Exposure\nurgency: HIGH\nThe corrosion is advanced."}`

	var capturedPayload map[string]string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(body, &capturedPayload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://vision.test", "test-key", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.Classify(context.Background(), "/data/images/defect.jpg")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.DefectType != enums.DefectTypeRebarExposure {
		t.Fatalf("unexpected type %q", result.DefectType)
	}
	if result.Urgency != enums.UrgencyHigh {
		t.Fatalf("unexpected urgency %q", result.Urgency)
	}
	if capturedPayload["image"] != "/data/images/defect.jpg" {
		t.Fatalf("image ref not forwarded: %+v", capturedPayload)
	}
	if capturedPayload["prompt"] == "" {
		t.Fatal("prompt missing from request")
	}
}

func TestClassifyRejectsUnusableReply(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"content":"I cannot tell what this is."}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://vision.test", "", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Classify(context.Background(), "ref")
	if err == nil {
		t.Fatal("expected error for unusable reply")
	}
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestAnswerEmbedsHintInPrompt(t *testing.T) {
	var capturedPayload map[string]string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &capturedPayload)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"content":" Repoint the mortar joints. "}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://vision.test", "", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	answer, err := client.Answer(context.Background(), "ref", enums.QuestionActionAdvice, "type=crack urgency=medium")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer != "Repoint the mortar joints." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if !strings.Contains(capturedPayload["prompt"], "Known context: type=crack urgency=medium") {
		t.Fatalf("hint missing from prompt %q", capturedPayload["prompt"])
	}
}

func TestAnswerRejectsEmptyReply(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"content":"  "}`)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("http://vision.test", "", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Answer(context.Background(), "ref", enums.QuestionDamageSummary, ""); err == nil {
		t.Fatal("expected error for empty model answer")
	}
}

func TestGenerateRequiresImageRef(t *testing.T) {
	client, err := NewClient("http://vision.test", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Classify(context.Background(), "  ")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
