package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minjaecho/defectwatch-backend/pkg/logger"
)

type fakePurger struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
	called      int
}

func (f *fakePurger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func newRetentionJob(t *testing.T, purger *fakePurger, retention int) *defectRetentionJob {
	t.Helper()
	jobIface, err := NewDefectRetentionJob(DefectRetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Purger:    purger,
		Retention: retention,
	})
	if err != nil {
		t.Fatalf("NewDefectRetentionJob: %v", err)
	}
	job, ok := jobIface.(*defectRetentionJob)
	if !ok {
		t.Fatalf("expected defectRetentionJob, got %T", jobIface)
	}
	return job
}

func TestDefectRetentionJobUsesConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)
	purger := &fakePurger{deletedRows: 7}
	job := newRetentionJob(t, purger, 14)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-14 * 24 * time.Hour)
	if !purger.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, purger.lastCutoff)
	}
	if purger.called != 1 {
		t.Fatalf("expected one sweep, got %d", purger.called)
	}
}

func TestDefectRetentionJobDefaultsTo30Days(t *testing.T) {
	now := time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)
	purger := &fakePurger{}
	job := newRetentionJob(t, purger, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expected := now.Add(-defectRetentionDays * 24 * time.Hour); !purger.lastCutoff.Equal(expected) {
		t.Fatalf("expected default cutoff %s, got %s", expected, purger.lastCutoff)
	}
}

func TestDefectRetentionJobPropagatesErrors(t *testing.T) {
	job := newRetentionJob(t, &fakePurger{err: errors.New("boom")}, 0)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
