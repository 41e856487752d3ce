package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/internal/dispatch"
	"github.com/minjaecho/defectwatch-backend/pkg/db/models"
	"github.com/minjaecho/defectwatch-backend/pkg/enums"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
)

type testDefectsService struct {
	createFn func(ctx context.Context, input defects.CreateInput) (*models.Defect, error)
	getFn    func(ctx context.Context, id string) (*models.Defect, error)
	listFn   func(ctx context.Context, params defects.ListParams) ([]models.Defect, error)
}

func (s *testDefectsService) Create(ctx context.Context, input defects.CreateInput) (*models.Defect, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &models.Defect{ID: input.ID}, nil
}

func (s *testDefectsService) Get(ctx context.Context, id string) (*models.Defect, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "defect not found")
}

func (s *testDefectsService) List(ctx context.Context, params defects.ListParams) ([]models.Defect, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, nil
}

func (s *testDefectsService) Transition(ctx context.Context, id string, target enums.RepairStatus) (*models.Defect, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testDefectsService) ApplyEnrichment(ctx context.Context, id string, patch defects.EnrichmentPatch) (*models.Defect, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testDefectsService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

type testDispatchService struct {
	statusFn   func(ctx context.Context, id string, target enums.RepairStatus) (*models.Defect, error)
	followupFn func(ctx context.Context, interactionID, defectID string, kind enums.QuestionKind) error
	scheduleFn func(ctx context.Context, defectID string, date time.Time, note string) (*dispatch.ScheduleResult, error)
}

func (s *testDispatchService) SendOverview(ctx context.Context) error          { return nil }
func (s *testDispatchService) SendDetail(ctx context.Context, id string) error { return nil }
func (s *testDispatchService) Wait()                                           {}

func (s *testDispatchService) RequestStatusChange(ctx context.Context, id string, target enums.RepairStatus) (*models.Defect, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, id, target)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (s *testDispatchService) AskFollowup(ctx context.Context, interactionID, defectID string, kind enums.QuestionKind) error {
	if s.followupFn != nil {
		return s.followupFn(ctx, interactionID, defectID, kind)
	}
	return nil
}

func (s *testDispatchService) ScheduleRepair(ctx context.Context, defectID string, date time.Time, note string) (*dispatch.ScheduleResult, error) {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, defectID, date, note)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

type testEnqueuer struct {
	enqueued []models.Defect
}

func (e *testEnqueuer) Enqueue(defect models.Defect) {
	e.enqueued = append(e.enqueued, defect)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestIngestDefectStoresAndEnqueues(t *testing.T) {
	var captured defects.CreateInput
	svc := &testDefectsService{createFn: func(ctx context.Context, input defects.CreateInput) (*models.Defect, error) {
		captured = input
		return &models.Defect{ID: "stored", Latitude: input.Latitude, Longitude: input.Longitude, Image: input.Image}, nil
	}}
	enqueuer := &testEnqueuer{}

	body := `{"latitude":37.5,"longitude":127.03,"image":"https://cdn.example.com/a.jpg","defect_type":"crack","urgency":"high"}`
	req := httptest.NewRequest(http.MethodPost, "/defect-info", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	IngestDefect(svc, enqueuer, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Latitude != 37.5 || captured.Longitude != 127.03 {
		t.Fatalf("coordinates lost in decoding: %+v", captured)
	}
	if captured.DefectType == nil || *captured.DefectType != enums.DefectTypeCrack {
		t.Fatalf("classification lost in decoding: %+v", captured)
	}
	if len(enqueuer.enqueued) != 1 || enqueuer.enqueued[0].ID != "stored" {
		t.Fatalf("stored record not enqueued for enrichment: %+v", enqueuer.enqueued)
	}
}

func TestIngestDefectRejectsInvalidPayloads(t *testing.T) {
	svc := &testDefectsService{createFn: func(ctx context.Context, input defects.CreateInput) (*models.Defect, error) {
		t.Fatal("service must not be called for invalid payloads")
		return nil, nil
	}}

	cases := map[string]string{
		"missing image":  `{"latitude":37.5,"longitude":127.03}`,
		"latitude range": `{"latitude":95,"longitude":127.03,"image":"a.jpg"}`,
		"unknown type":   `{"latitude":37.5,"longitude":127.03,"image":"a.jpg","defect_type":"rust"}`,
		"unknown field":  `{"latitude":37.5,"longitude":127.03,"image":"a.jpg","color":"red"}`,
		"malformed id":   `{"id":"not-a-uuid","latitude":37.5,"longitude":127.03,"image":"a.jpg"}`,
	}
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/defect-info", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()

		IngestDefect(svc, nil, testLogger())(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, resp.Code, resp.Body.String())
		}
	}
}

func TestListDefectsPassesSortFlag(t *testing.T) {
	var captured defects.ListParams
	svc := &testDefectsService{listFn: func(ctx context.Context, params defects.ListParams) ([]models.Defect, error) {
		captured = params
		return []models.Defect{}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/defects?sort=urgency", nil)
	resp := httptest.NewRecorder()
	ListDefects(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !captured.SortByUrgency {
		t.Fatal("sort=urgency not passed through")
	}
}

func TestGetDefectMapsNotFound(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/defects/missing", nil), "defectId", "missing")
	resp := httptest.NewRecorder()
	GetDefect(&testDefectsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestChangeDefectStatusSurfacesConflict(t *testing.T) {
	svc := &testDispatchService{statusFn: func(ctx context.Context, id string, target enums.RepairStatus) (*models.Defect, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "repair status cannot move from done to in-progress")
	}}

	body := `{"target":"in-progress"}`
	req := httptest.NewRequest(http.MethodPost, "/defects/d-1/status", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParam(req, "defectId", "d-1")
	resp := httptest.NewRecorder()

	ChangeDefectStatus(svc, testLogger())(resp, req)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestChangeDefectStatusRejectsUnknownTarget(t *testing.T) {
	body := `{"target":"paused"}`
	req := httptest.NewRequest(http.MethodPost, "/defects/d-1/status", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParam(req, "defectId", "d-1")
	resp := httptest.NewRecorder()

	ChangeDefectStatus(&testDispatchService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDefectFollowupAcceptsAndFallsBack(t *testing.T) {
	var capturedKind enums.QuestionKind
	var capturedInteraction string
	svc := &testDispatchService{followupFn: func(ctx context.Context, interactionID, defectID string, kind enums.QuestionKind) error {
		capturedInteraction = interactionID
		capturedKind = kind
		return nil
	}}

	body := `{"question_kind":"what happened here?","interaction_id":"int-9"}`
	req := httptest.NewRequest(http.MethodPost, "/defects/d-1/followup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParam(req, "defectId", "d-1")
	resp := httptest.NewRecorder()

	DefectFollowup(svc, testLogger())(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if capturedKind != enums.QuestionDamageSummary {
		t.Fatalf("free text must fall back to damage summary, got %s", capturedKind)
	}
	if capturedInteraction != "int-9" {
		t.Fatalf("interaction id lost: %q", capturedInteraction)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Data["interaction_id"] != "int-9" {
		t.Fatalf("ack must echo the interaction id: %+v", envelope.Data)
	}
}

func TestScheduleDefectRepairParsesDate(t *testing.T) {
	var capturedDate time.Time
	var capturedNote string
	svc := &testDispatchService{scheduleFn: func(ctx context.Context, defectID string, date time.Time, note string) (*dispatch.ScheduleResult, error) {
		capturedDate = date
		capturedNote = note
		return &dispatch.ScheduleResult{EventLink: "https://calendar.example.com/e/1"}, nil
	}}

	body := `{"date":"2026-03-01","note":"crew B"}`
	req := httptest.NewRequest(http.MethodPost, "/defects/d-1/schedule", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParam(req, "defectId", "d-1")
	resp := httptest.NewRecorder()

	ScheduleDefectRepair(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if capturedDate != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("date parsed wrong: %s", capturedDate)
	}
	if capturedNote != "crew B" {
		t.Fatalf("note lost: %q", capturedNote)
	}
}

func TestScheduleDefectRepairRejectsBadDate(t *testing.T) {
	body := `{"date":"03/01/2026"}`
	req := httptest.NewRequest(http.MethodPost, "/defects/d-1/schedule", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParam(req, "defectId", "d-1")
	resp := httptest.NewRecorder()

	ScheduleDefectRepair(&testDispatchService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
