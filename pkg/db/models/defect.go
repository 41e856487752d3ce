package models

import (
	"time"

	"github.com/minjaecho/defectwatch-backend/pkg/enums"
)

// Defect is the persisted record for one detected instance of exterior
// building damage. Identity and geometry are immutable after creation;
// classification and address arrive later through enrichment patches.
type Defect struct {
	ID           string             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Latitude     float64            `gorm:"column:latitude;not null" json:"latitude"`
	Longitude    float64            `gorm:"column:longitude;not null" json:"longitude"`
	Image        string             `gorm:"column:image;type:text;not null" json:"image"`
	DetectTime   time.Time          `gorm:"column:detect_time;type:timestamptz;not null" json:"detect_time"`
	DefectType   *enums.DefectType  `gorm:"column:defect_type;type:text" json:"defect_type"`
	Urgency      *enums.Urgency     `gorm:"column:urgency;type:text" json:"urgency"`
	Address      *string            `gorm:"column:address;type:text" json:"address"`
	RepairStatus enums.RepairStatus `gorm:"column:repair_status;type:text;not null;default:'unaddressed'" json:"repair_status"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName pins the table used by every query.
func (Defect) TableName() string { return "defects" }

// Classified reports whether the vision classification landed.
func (d Defect) Classified() bool {
	return d.DefectType != nil && d.Urgency != nil
}

// SeverityRank exposes the triage sort weight of the record's urgency.
func (d Defect) SeverityRank() int {
	if d.Urgency == nil {
		return 0
	}
	return d.Urgency.SeverityRank()
}
