package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/minjaecho/defectwatch-backend/pkg/logger"
)

const defectRetentionDays = 30

// defectPurger deletes defect records detected before the cutoff.
// Implemented by internal/defects.Service.
type defectPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DefectRetentionJobParams configure the retention sweep.
type DefectRetentionJobParams struct {
	Logger    *logger.Logger
	Purger    defectPurger
	Retention int
}

// NewDefectRetentionJob builds the sweep that drops defect records older
// than the retention window, regardless of repair status.
func NewDefectRetentionJob(params DefectRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("defect purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defectRetentionDays
	}
	return &defectRetentionJob{
		logg:      params.Logger,
		purger:    params.Purger,
		retention: retention,
		now:       time.Now,
	}, nil
}

type defectRetentionJob struct {
	logg      *logger.Logger
	purger    defectPurger
	retention int
	now       func() time.Time
}

func (j *defectRetentionJob) Name() string { return "defect-retention" }

func (j *defectRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("defect retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "defect retention sweep complete")
	return nil
}
