package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/pkg/db/models"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
	"github.com/minjaecho/defectwatch-backend/pkg/metrics"
	"github.com/minjaecho/defectwatch-backend/pkg/vision"
	"go.uber.org/multierr"
)

const defaultTimeout = 120 * time.Second

const (
	stepGeocode  = "geocode"
	stepClassify = "classify"
	stepPatch    = "patch"
	stepPublish  = "publish"
)

// Classifier identifies the defect in an image. Implemented by pkg/vision.
type Classifier interface {
	Classify(ctx context.Context, imageRef string) (vision.Classification, error)
}

// Publisher emits defect.classified once a classification lands.
type Publisher interface {
	PublishClassified(ctx context.Context, defectID string) error
}

// RecordPatcher applies enrichment results to the stored record.
type RecordPatcher interface {
	ApplyEnrichment(ctx context.Context, id string, patch defects.EnrichmentPatch) (*models.Defect, error)
}

// Runner executes one background enrichment pass per ingested record.
// There is no retry queue; a failed pass leaves the record partial until
// the next ingestion of the same site.
type Runner struct {
	patcher    RecordPatcher
	classifier Classifier
	resolver   defects.AddressResolver
	publisher  Publisher
	metrics    *metrics.EnrichmentMetrics
	logg       *logger.Logger
	timeout    time.Duration

	wg sync.WaitGroup
}

// NewRunner wires the pipeline. Resolver and publisher may be nil; the
// corresponding steps are skipped.
func NewRunner(patcher RecordPatcher, classifier Classifier, resolver defects.AddressResolver, publisher Publisher, m *metrics.EnrichmentMetrics, logg *logger.Logger, timeout time.Duration) (*Runner, error) {
	if patcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "record patcher required")
	}
	if classifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "classifier required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		patcher:    patcher,
		classifier: classifier,
		resolver:   resolver,
		publisher:  publisher,
		metrics:    m,
		logg:       logg,
		timeout:    timeout,
	}, nil
}

// Enqueue spawns the enrichment task for a freshly ingested record. The
// task runs on a detached context so the ingestion response never waits
// on model inference.
func (r *Runner) Enqueue(defect models.Defect) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil && r.logg != nil {
				ctx := r.logg.WithDefectID(context.Background(), defect.ID)
				r.logg.Error(ctx, "enrichment panic recovered", fmt.Errorf("panic: %v", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.process(ctx, defect)
	}()
}

// Wait blocks until every enqueued task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) process(ctx context.Context, defect models.Defect) {
	if r.logg != nil {
		ctx = r.logg.WithDefectID(ctx, defect.ID)
	}

	var soft error
	patch := defects.EnrichmentPatch{}

	if defect.Address == nil && r.resolver != nil {
		address, err := r.resolver.ReverseGeocode(ctx, defect.Latitude, defect.Longitude)
		switch {
		case err != nil:
			r.metrics.IncFailed(stepGeocode)
			soft = multierr.Append(soft, fmt.Errorf("%s: %w", stepGeocode, err))
		case address != "":
			r.metrics.IncCompleted(stepGeocode)
			patch.Address = &address
		}
	}

	classified := false
	result, err := r.classifier.Classify(ctx, defect.Image)
	if err != nil {
		r.metrics.IncFailed(stepClassify)
		soft = multierr.Append(soft, fmt.Errorf("%s: %w", stepClassify, err))
	} else {
		r.metrics.IncCompleted(stepClassify)
		patch.DefectType = &result.DefectType
		patch.Urgency = &result.Urgency
		classified = true
	}

	if !patch.IsZero() {
		if _, err := r.patcher.ApplyEnrichment(ctx, defect.ID, patch); err != nil {
			r.metrics.IncFailed(stepPatch)
			soft = multierr.Append(soft, fmt.Errorf("%s: %w", stepPatch, err))
			classified = false
		} else {
			r.metrics.IncCompleted(stepPatch)
		}
	}

	if classified && r.publisher != nil {
		if err := r.publisher.PublishClassified(ctx, defect.ID); err != nil {
			r.metrics.IncFailed(stepPublish)
			soft = multierr.Append(soft, fmt.Errorf("%s: %w", stepPublish, err))
		} else {
			r.metrics.IncCompleted(stepPublish)
		}
	}

	if soft != nil && r.logg != nil {
		r.logg.Error(ctx, "enrichment finished with failed steps", soft)
	}
}
