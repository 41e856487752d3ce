package defects

import (
	"time"

	"github.com/minjaecho/defectwatch-backend/pkg/enums"
)

// CreateInput carries a validated ingestion payload into the service.
// A nil DetectTime means the relay did not timestamp the capture.
type CreateInput struct {
	ID         string
	Latitude   float64
	Longitude  float64
	Image      string
	DetectTime *time.Time
	DefectType *enums.DefectType
	Urgency    *enums.Urgency
}

// EnrichmentPatch is the delta produced by the background pipeline.
// DefectType and Urgency travel together or not at all.
type EnrichmentPatch struct {
	DefectType *enums.DefectType
	Urgency    *enums.Urgency
	Address    *string
}

// IsZero reports whether the patch would change nothing.
func (p EnrichmentPatch) IsZero() bool {
	return p.DefectType == nil && p.Urgency == nil && p.Address == nil
}

// ListParams controls read-path ordering.
type ListParams struct {
	SortByUrgency bool
}
