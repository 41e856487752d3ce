package defects

import (
	"context"
	"time"

	"github.com/minjaecho/defectwatch-backend/pkg/db/models"
	"github.com/minjaecho/defectwatch-backend/pkg/enums"
	"gorm.io/gorm"
)

// severityOrder ranks classified records above unclassified ones so the
// triage list surfaces the most urgent damage first.
const severityOrder = `CASE urgency
	WHEN 'high' THEN 3
	WHEN 'medium' THEN 2
	WHEN 'low' THEN 1
	ELSE 0
END DESC, detect_time ASC`

// Repository exposes persistence helpers for defect records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, defect *models.Defect) error
	GetByID(ctx context.Context, id string) (*models.Defect, error)
	Patch(ctx context.Context, id string, fields map[string]any) (int64, error)
	UpdateStatusIf(ctx context.Context, id string, from, to enums.RepairStatus) (int64, error)
	List(ctx context.Context, params ListParams) ([]models.Defect, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a defect repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, defect *models.Defect) error {
	return r.db.WithContext(ctx).Create(defect).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id string) (*models.Defect, error) {
	var defect models.Defect
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&defect).Error; err != nil {
		return nil, err
	}
	return &defect, nil
}

// Patch applies only the supplied columns inside a transaction so
// concurrent patches to disjoint fields both land.
func (r *repositoryImpl) Patch(ctx context.Context, id string, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Defect{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return 0, err
		}
		return count, nil
	}

	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Defect{}).Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	return affected, err
}

// UpdateStatusIf moves repair_status only when the stored value still
// matches from, so racing transitions cannot double-apply.
func (r *repositoryImpl) UpdateStatusIf(ctx context.Context, id string, from, to enums.RepairStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Defect{}).
		Where("id = ? AND repair_status = ?", id, from).
		UpdateColumn("repair_status", to)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListParams) ([]models.Defect, error) {
	query := r.db.WithContext(ctx).Model(&models.Defect{})
	if params.SortByUrgency {
		query = query.Order(severityOrder)
	} else {
		query = query.Order("detect_time DESC")
	}

	var defects []models.Defect
	if err := query.Find(&defects).Error; err != nil {
		return nil, err
	}
	return defects, nil
}

func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("detect_time < ?", cutoff).
		Delete(&models.Defect{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
