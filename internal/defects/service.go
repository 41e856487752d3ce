package defects

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/minjaecho/defectwatch-backend/pkg/db"
	"github.com/minjaecho/defectwatch-backend/pkg/db/models"
	"github.com/minjaecho/defectwatch-backend/pkg/enums"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
	"gorm.io/gorm"
)

// AddressResolver turns coordinates into a road address. Implemented by
// pkg/geocode; nil disables address resolution.
type AddressResolver interface {
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (string, error)
}

// Service owns the defect lifecycle: ingestion, enrichment patches,
// repair-status transitions and retention purges.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Defect, error)
	Get(ctx context.Context, id string) (*models.Defect, error)
	List(ctx context.Context, params ListParams) ([]models.Defect, error)
	Transition(ctx context.Context, id string, target enums.RepairStatus) (*models.Defect, error)
	ApplyEnrichment(ctx context.Context, id string, patch EnrichmentPatch) (*models.Defect, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo     Repository
	resolver AddressResolver
	logg     *logger.Logger
}

// NewService wires defect lifecycle dependencies.
func NewService(repo Repository, resolver AddressResolver, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "defect repository required")
	}
	return &service{repo: repo, resolver: resolver, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Defect, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	detectTime := time.Now().UTC()
	if input.DetectTime != nil {
		detectTime = input.DetectTime.UTC()
	}

	defect := &models.Defect{
		ID:           id,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		Image:        input.Image,
		DetectTime:   detectTime,
		DefectType:   input.DefectType,
		Urgency:      input.Urgency,
		RepairStatus: enums.RepairStatusUnaddressed,
	}

	// Synchronous best-effort geocode; enrichment retries later if it
	// comes back empty.
	if s.resolver != nil {
		if address, err := s.resolver.ReverseGeocode(ctx, input.Latitude, input.Longitude); err != nil {
			s.warn(ctx, id, "reverse geocode failed during ingestion")
		} else if address != "" {
			defect.Address = &address
		}
	}

	if err := s.repo.Create(ctx, defect); err != nil {
		if db.IsUniqueViolation(err, "defects_pkey") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicateID, err, "defect id already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist defect")
	}

	return defect, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Defect, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "defect id required")
	}

	defect, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "defect not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load defect")
	}
	return defect, nil
}

// List degrades to an empty result on storage failure; the triage view
// stays usable while the database is flapping.
func (s *service) List(ctx context.Context, params ListParams) ([]models.Defect, error) {
	defects, err := s.repo.List(ctx, params)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "list defects degraded to empty result", err)
		}
		return []models.Defect{}, nil
	}
	if defects == nil {
		defects = []models.Defect{}
	}
	return defects, nil
}

func (s *service) Transition(ctx context.Context, id string, target enums.RepairStatus) (*models.Defect, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid repair status").
			WithDetails(map[string]any{"target": target.String()})
	}

	defect, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !defect.RepairStatus.CanTransition(target) {
		return nil, transitionConflict(defect.RepairStatus, target)
	}

	affected, err := s.repo.UpdateStatusIf(ctx, id, defect.RepairStatus, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update repair status")
	}
	if affected == 0 {
		// Lost a race with another transition; report against the fresh state.
		fresh, readErr := s.Get(ctx, id)
		if readErr != nil {
			return nil, readErr
		}
		return nil, transitionConflict(fresh.RepairStatus, target)
	}

	defect.RepairStatus = target
	return defect, nil
}

func (s *service) ApplyEnrichment(ctx context.Context, id string, patch EnrichmentPatch) (*models.Defect, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "defect id required")
	}
	if (patch.DefectType == nil) != (patch.Urgency == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "defect type and urgency must be patched together")
	}

	fields := map[string]any{}
	if patch.DefectType != nil {
		if !patch.DefectType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid defect type")
		}
		if !patch.Urgency.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid urgency")
		}
		fields["defect_type"] = patch.DefectType.String()
		fields["urgency"] = patch.Urgency.String()
	}
	if patch.Address != nil {
		fields["address"] = *patch.Address
	}

	affected, err := s.repo.Patch(ctx, id, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "patch defect")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "defect not found")
	}

	return s.Get(ctx, id)
}

func (s *service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge expired defects")
	}
	return deleted, nil
}

func validateCreateInput(input CreateInput) error {
	details := map[string]string{}
	if input.Latitude < -90 || input.Latitude > 90 {
		details["latitude"] = "must be between -90 and 90"
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		details["longitude"] = "must be between -180 and 180"
	}
	if input.Image == "" {
		details["image"] = "is required"
	}
	if input.ID != "" {
		if _, err := uuid.Parse(input.ID); err != nil {
			details["id"] = "must be a uuid"
		}
	}
	if (input.DefectType == nil) != (input.Urgency == nil) {
		details["urgency"] = "defect type and urgency must be supplied together"
	}
	if input.DefectType != nil && !input.DefectType.IsValid() {
		details["defect_type"] = "is invalid"
	}
	if input.Urgency != nil && !input.Urgency.IsValid() {
		details["urgency"] = "is invalid"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func transitionConflict(from, to enums.RepairStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "repair status transition disallowed").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}

func (s *service) warn(ctx context.Context, defectID, msg string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithDefectID(ctx, defectID)
	s.logg.Warn(ctx, msg)
}
