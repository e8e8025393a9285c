// Package app wires configuration into the scoring, alerting and storage
// components shared by the worker manager and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"dropout-alerts/internal/alerting"
	"dropout-alerts/internal/common/aws"
	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/database"
	"dropout-alerts/internal/common/errors"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/common/observability"
	"dropout-alerts/internal/dataset"
	"dropout-alerts/internal/models"
	"dropout-alerts/internal/notification"
	"dropout-alerts/internal/scoring"
	"dropout-alerts/internal/search"
)

// App holds the long-lived components. Index is nil when search is disabled.
type App struct {
	Config        *config.Config
	Logger        logger.Logger
	Observability *observability.Observability
	Predictor     *scoring.Predictor
	Cache         *alerting.PredictionCache
	Orchestrator  *alerting.Orchestrator
	Schedules     *alerting.ScheduleSaver
	Index         *search.AssessmentIndex

	closers []func()
}

// New builds every component cfg selects. Optional backends that cannot be
// reached are logged and left out; missing model artifacts are fatal.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	log = logger.OrDefault(log)
	a := &App{Config: cfg, Logger: log}

	a.Observability = observability.New(cfg.Observability.ServiceName, log)
	a.onClose(a.Observability.Shutdown)
	if cfg.Observability.TracingEnabled {
		provider := observability.NewTracerProvider(cfg.Observability.ServiceName)
		a.onClose(a.Observability.EnableTracing(cfg.Observability.ServiceName, provider))
	}

	artifacts, err := scoring.LoadArtifacts(cfg.Scoring.ArtifactsDir)
	if err != nil {
		a.Close()
		return nil, errors.NewModelArtifactsUnavailableError(err)
	}
	a.Predictor, err = scoring.NewPredictor(artifacts, log.Named("predictor"))
	if err != nil {
		a.Close()
		return nil, errors.NewModelArtifactsUnavailableError(err)
	}
	modelDigest, err := scoring.Digest(cfg.Scoring.ArtifactsDir)
	if err != nil {
		a.Close()
		return nil, errors.NewModelArtifactsUnavailableError(err)
	}

	datasetPath := cfg.Scoring.DatasetPath
	a.Cache = alerting.NewPredictionCache(alerting.CacheOptions{
		Loader:        func() ([]models.StudentRecord, error) { return dataset.Load(datasetPath) },
		Scorer:        a.Predictor,
		Store:         a.assessmentStore(ctx, modelDigest),
		Observability: a.Observability,
		Logger:        log,
	})

	a.Orchestrator = alerting.NewOrchestrator(alerting.OrchestratorOptions{
		Source:        a.Cache,
		Channels:      a.channels(ctx),
		Observability: a.Observability,
		Logger:        log,
	})

	a.Schedules, err = a.scheduleSaver(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Search.Enabled {
		a.Index = a.searchIndex(ctx)
	}

	return a, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// assessmentStore returns the shared Redis store, keyed by the model digest
// and the dataset stamp so a new model or a regenerated dataset starts a
// fresh generation.
func (a *App) assessmentStore(ctx context.Context, modelDigest string) alerting.AssessmentStore {
	cacheCfg := a.Config.Scoring.Cache
	if cacheCfg.Backend != config.CacheRedis {
		return nil
	}

	rc := database.NewRedis(a.Config.Database.Redis)
	err := retryWithBackoff(ctx, 3, time.Second, a.Logger, "Redis connection", func() error {
		return rc.Ping(ctx)
	})
	if err != nil {
		// The store is still returned: lookups fall back to local scoring
		// until Redis comes back.
		a.Logger.Warn("redis unreachable, predictions will be scored locally", map[string]interface{}{
			"error": err.Error(),
		})
	}
	a.onClose(func() { _ = rc.Close() })

	ttl := time.Duration(cacheCfg.TTL) * time.Millisecond
	datasetPath := a.Config.Scoring.DatasetPath
	return alerting.NewRedisAssessmentStore(rc.Client, cacheCfg.KeyPrefix, ttl).
		WithGeneration(func() string {
			return modelDigest + "." + dataset.Stamp(datasetPath)
		})
}

func (a *App) channels(ctx context.Context) []notification.Channel {
	n := a.Config.Notifications
	chans := []notification.Channel{
		notification.NewEmailChannel(n.Email, a.Logger),
		notification.NewTeamsChannel(n.Teams, a.Logger),
	}

	var mailer notification.HTMLMailer
	if n.AWS.Region != "" && n.AWS.SES.Complete() {
		client, err := aws.NewSESClient(ctx, n.AWS.Region)
		if err != nil {
			a.Logger.Warn("SES client unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			mailer = client
		}
	}
	chans = append(chans, notification.NewSESChannel(n.AWS, mailer, a.Logger))

	var publisher notification.SMSPublisher
	if n.AWS.Region != "" && n.AWS.SNS.Complete() {
		client, err := aws.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			a.Logger.Warn("SNS client unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			publisher = client
		}
	}
	chans = append(chans, notification.NewSNSChannel(n.AWS, publisher, a.Logger))

	return chans
}

func (a *App) scheduleSaver(ctx context.Context) (*alerting.ScheduleSaver, error) {
	sc := a.Config.Schedule
	if sc.Store != config.StorePostgres {
		return alerting.NewScheduleSaver(alerting.NewFileScheduleStore(sc.Path), config.StoreFile, a.Logger), nil
	}

	pg, err := database.NewPostgres(a.Config.Database.Postgres)
	if err != nil {
		return nil, errors.NewSchedulePersistFailedError(err)
	}
	a.onClose(func() { _ = pg.Close() })

	err = retryWithBackoff(ctx, 5, 2*time.Second, a.Logger, "PostgreSQL connection", func() error {
		return pg.Ping(ctx)
	})
	if err != nil {
		return nil, errors.NewSchedulePersistFailedError(err)
	}

	store := alerting.NewPostgresScheduleStore(pg.DB, sc.Table)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, errors.NewSchedulePersistFailedError(fmt.Errorf("create schedule table: %w", err))
	}
	return alerting.NewScheduleSaver(store, config.StorePostgres, a.Logger), nil
}

func (a *App) searchIndex(ctx context.Context) *search.AssessmentIndex {
	es, err := database.NewElasticsearch(a.Config.Database.Elasticsearch)
	if err == nil {
		err = retryWithBackoff(ctx, 3, 2*time.Second, a.Logger, "Elasticsearch connection", func() error {
			return es.Ping(ctx)
		})
	}
	if err != nil {
		a.Logger.Warn("search index disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}

	idx, err := search.NewAssessmentIndex(es.Client, a.Config.Search.Index, a.Logger)
	if err != nil {
		a.Logger.Warn("search index disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return idx
}

// retryWithBackoff runs op up to attempts times, doubling the delay after
// each failure.
func retryWithBackoff(ctx context.Context, attempts int, delay time.Duration, log logger.Logger, name string, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		log.Warn(name+" failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     i + 1,
			"maxRetries":  attempts,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}
