package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minjaecho/defectwatch-backend/api/responses"
	"github.com/minjaecho/defectwatch-backend/api/validators"
	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/internal/dispatch"
	"github.com/minjaecho/defectwatch-backend/pkg/db/models"
	"github.com/minjaecho/defectwatch-backend/pkg/enums"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
)

const scheduleDateLayout = "2006-01-02"

// Enqueuer hands a stored record to the background enrichment pipeline.
type Enqueuer interface {
	Enqueue(defect models.Defect)
}

type defectInfoRequest struct {
	ID         string     `json:"id" validate:"omitempty,uuid4"`
	Latitude   *float64   `json:"latitude" validate:"required,latitude"`
	Longitude  *float64   `json:"longitude" validate:"required,longitude"`
	Image      string     `json:"image" validate:"required"`
	DetectTime *time.Time `json:"detect_time"`
	DefectType string     `json:"defect_type" validate:"omitempty,oneof=crack spalling paint-damage rebar-exposure"`
	Urgency    string     `json:"urgency" validate:"omitempty,oneof=high medium low"`
}

func (r defectInfoRequest) toInput() (defects.CreateInput, error) {
	input := defects.CreateInput{
		ID:         strings.TrimSpace(r.ID),
		Latitude:   *r.Latitude,
		Longitude:  *r.Longitude,
		Image:      r.Image,
		DetectTime: r.DetectTime,
	}
	if r.DefectType != "" {
		kind, err := enums.ParseDefectType(r.DefectType)
		if err != nil {
			return defects.CreateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid defect_type")
		}
		input.DefectType = &kind
	}
	if r.Urgency != "" {
		urgency, err := enums.ParseUrgency(r.Urgency)
		if err != nil {
			return defects.CreateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid urgency")
		}
		input.Urgency = &urgency
	}
	return input, nil
}

// IngestDefect handles drone detection reports. The record is stored and
// answered immediately; enrichment runs in the background.
func IngestDefect(svc defects.Service, enqueuer Enqueuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "defect service unavailable"))
			return
		}

		var payload defectInfoRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if enqueuer != nil {
			enqueuer.Enqueue(*record)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// ListDefects returns all records, urgency-ranked when sort=urgency.
func ListDefects(svc defects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "defect service unavailable"))
			return
		}

		params := defects.ListParams{
			SortByUrgency: strings.EqualFold(r.URL.Query().Get("sort"), "urgency"),
		}
		records, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, records)
	}
}

// GetDefect returns one record by id.
func GetDefect(svc defects.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "defect service unavailable"))
			return
		}

		record, err := svc.Get(r.Context(), chi.URLParam(r, "defectId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type statusChangeRequest struct {
	Target string `json:"target" validate:"required,oneof=unaddressed in-progress done"`
}

// ChangeDefectStatus applies a repair-status transition.
func ChangeDefectStatus(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		var payload statusChangeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseRepairStatus(payload.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status"))
			return
		}

		record, err := svc.RequestStatusChange(r.Context(), chi.URLParam(r, "defectId"), target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type followupRequest struct {
	QuestionKind  string `json:"question_kind" validate:"required"`
	InteractionID string `json:"interaction_id" validate:"required"`
}

// DefectFollowup acknowledges with 202; the model's answer arrives on the
// chat channel under the same interaction id. Unrecognized question text
// falls back to the damage summary.
func DefectFollowup(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		var payload followupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind := enums.ParseQuestionKind(strings.TrimSpace(payload.QuestionKind))
		err := svc.AskFollowup(r.Context(), payload.InteractionID, chi.URLParam(r, "defectId"), kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
			"interaction_id": payload.InteractionID,
			"status":         "answer pending",
		})
	}
}

type scheduleRequest struct {
	Date string `json:"date" validate:"required"`
	Note string `json:"note"`
}

// ScheduleDefectRepair books the repair on the calendar and moves the
// record to in-progress.
func ScheduleDefectRepair(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		var payload scheduleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		date, err := time.Parse(scheduleDateLayout, payload.Date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date must be YYYY-MM-DD"))
			return
		}

		result, err := svc.ScheduleRepair(r.Context(), chi.URLParam(r, "defectId"), date, payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
