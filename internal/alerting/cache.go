// Package alerting owns the batch prediction cache and turns scored students
// into alerts: target selection, payload rendering, channel fan-out and
// schedule persistence.
package alerting

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dropout-alerts/internal/common/errors"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/common/metrics"
	"dropout-alerts/internal/common/observability"
	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

var ErrStudentNotFound = stderrors.New("student not found")

// Scorer predicts one student; *scoring.Predictor satisfies it.
type Scorer interface {
	Predict(record models.StudentRecord) (models.RiskAssessment, error)
}

// RecordLoader returns the full student dataset.
type RecordLoader func() ([]models.StudentRecord, error)

// AssessmentStore shares assessments between processes.
type AssessmentStore interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.RiskAssessment, error)
	Save(ctx context.Context, assessments []models.RiskAssessment) error
	Clear(ctx context.Context) error
}

type CacheOptions struct {
	Loader        RecordLoader
	Scorer        Scorer
	Store         AssessmentStore
	Observability *observability.Observability
	Logger        logger.Logger
}

// PredictionCache scores the whole dataset once and serves the results until
// Invalidate is called. It is safe for concurrent use.
type PredictionCache struct {
	loader RecordLoader
	scorer Scorer
	store  AssessmentStore
	obs    *observability.Observability
	logger logger.Logger

	mu       sync.RWMutex
	loaded   bool
	students []models.ScoredStudent
	index    map[string]int
	failed   []string
}

func NewPredictionCache(opts CacheOptions) *PredictionCache {
	obs := opts.Observability
	if obs == nil {
		obs = &observability.Observability{}
	}
	return &PredictionCache{
		loader: opts.Loader,
		scorer: opts.Scorer,
		store:  opts.Store,
		obs:    obs,
		logger: logger.OrDefault(opts.Logger).Named("prediction-cache"),
	}
}

// Load runs the scoring pass if it has not run since the last Invalidate.
// A student whose prediction fails is left out and listed by Failures.
func (c *PredictionCache) Load(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	ctx, span := c.obs.StartSpan(ctx, "scoring.pass")
	defer span.End()
	start := time.Now()

	records, err := c.loader()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset unavailable")
		return fmt.Errorf("load dataset: %w", err)
	}

	stored := c.lookup(ctx, records)

	students := make([]models.ScoredStudent, 0, len(records))
	fresh := make([]models.RiskAssessment, 0, len(records))
	var failed []string
	reused := 0

	for _, rec := range records {
		if a, ok := stored[rec.ID]; ok {
			students = append(students, models.ScoredStudent{Student: rec, Assessment: a})
			reused++
			continue
		}
		a, err := c.scorer.Predict(rec)
		if err != nil {
			failed = append(failed, rec.ID)
			metrics.StudentsScored.WithLabelValues("failed").Inc()
			continue
		}
		metrics.StudentsScored.WithLabelValues("scored").Inc()
		students = append(students, models.ScoredStudent{Student: rec, Assessment: a})
		fresh = append(fresh, a)
	}

	if c.store != nil && len(fresh) > 0 {
		if err := c.store.Save(ctx, fresh); err != nil {
			c.storeFailed(ctx, "failed to share assessments", err, map[string]interface{}{
				"count": len(fresh),
			})
		}
	}

	scoring.SortByRisk(students)
	c.students = students
	c.index = make(map[string]int, len(students))
	for i, s := range students {
		c.index[s.Student.ID] = i
	}
	c.failed = failed
	c.loaded = true

	duration := time.Since(start)
	c.recordPass(ctx, duration, len(students), len(failed))
	span.SetAttributes(
		attribute.Int("students.scored", len(students)),
		attribute.Int("students.failed", len(failed)),
		attribute.Int("students.reused", reused),
	)

	c.logger.Info("scoring pass complete", map[string]interface{}{
		"students": len(students),
		"failed":   len(failed),
		"reused":   reused,
		"duration": duration.String(),
	})
	return nil
}

func (c *PredictionCache) lookup(ctx context.Context, records []models.StudentRecord) map[string]models.RiskAssessment {
	if c.store == nil {
		return nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	stored, err := c.store.Lookup(ctx, ids)
	if err != nil {
		c.storeFailed(ctx, "shared assessment lookup failed, scoring locally", err, nil)
		return nil
	}
	return stored
}

// storeFailed logs a shared store error. Store errors never fail a pass.
func (c *PredictionCache) storeFailed(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	cacheErr := errors.NewCacheUnavailableError(err)
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["code"] = string(cacheErr.Code)
	fields["retryable"] = cacheErr.Retryable
	fields["error"] = err.Error()
	c.logger.Warn(msg, fields)
	trace.SpanFromContext(ctx).RecordError(cacheErr)
}

func (c *PredictionCache) recordPass(ctx context.Context, duration time.Duration, scored, failed int) {
	metrics.ScoringPassDuration.Observe(duration.Seconds())
	counts := map[models.RiskTier]int{}
	for _, s := range c.students {
		counts[s.Assessment.Tier()]++
	}
	for _, tier := range []models.RiskTier{models.TierCritical, models.TierHigh, models.TierModerate, models.TierLow} {
		metrics.StudentsAtRisk.WithLabelValues(string(tier)).Set(float64(counts[tier]))
	}
	c.obs.RecordScoringPass(ctx, duration, scored, failed)
}

// All returns every scored student, highest risk first.
func (c *PredictionCache) All(ctx context.Context) ([]models.ScoredStudent, error) {
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.ScoredStudent, len(c.students))
	copy(out, c.students)
	return out, nil
}

// Get returns one scored student.
func (c *PredictionCache) Get(ctx context.Context, id string) (models.ScoredStudent, error) {
	if err := c.Load(ctx); err != nil {
		return models.ScoredStudent{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return models.ScoredStudent{}, fmt.Errorf("%w: %s", ErrStudentNotFound, id)
	}
	return c.students[i], nil
}

// Failures lists the ids whose prediction failed in the last pass.
func (c *PredictionCache) Failures() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.failed...)
}

// Invalidate drops every cached result; the next read rescores the dataset.
func (c *PredictionCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.loaded = false
	c.students = nil
	c.index = nil
	c.failed = nil
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(ctx); err != nil {
			c.storeFailed(ctx, "failed to clear shared assessments", err, nil)
		}
	}
}
