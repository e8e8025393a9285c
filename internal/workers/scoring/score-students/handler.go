package scorestudents

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dropout-alerts/internal/common/camunda"
	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/errors"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/common/metrics"
	"dropout-alerts/internal/dataset"
	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

const TaskType = "risk.score-students"

// configKey is the entry under workers: in the application config.
const configKey = "score-students"

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	cache        PopulationCache
	indexer      Indexer
	errorHandler *errors.ErrorHandler
	worker       *camunda.Worker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Cache        PopulationCache
	Indexer      Indexer
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", configKey, err)
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("invalid configuration for %s: prediction cache is required", configKey)
	}

	log := logger.OrDefault(opts.Logger).WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       workerConfig,
		logger:       log,
		camunda:      opts.Camunda,
		cache:        opts.Cache,
		indexer:      opts.Indexer,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing scoring job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output.Variables()); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	if err := inputSchema.Validate(variables).Err(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	return &input, nil
}

// Execute scores the population (reusing the cached pass unless Refresh is
// set) and summarizes the students matching the input filters.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Refresh {
		h.cache.Invalidate(ctx)
	}

	all, err := h.cache.All(ctx)
	if err != nil {
		if stderrors.Is(err, dataset.ErrDatasetUnavailable) {
			return nil, errors.NewDatasetUnavailableError(err)
		}
		return nil, errors.NewPredictionFailedError(err)
	}

	population, err := restrictTo(all, input.Students)
	if err != nil {
		return nil, err
	}

	selected := scoring.Filter(population, scoring.Criteria{
		Program: input.Program,
		Year:    input.Year,
		Tier:    models.RiskTier(input.Tier),
	})
	summary := scoring.Summarize(selected)
	metrics.StudentsAtRisk.WithLabelValues(string(models.TierCritical)).Set(float64(summary.Critical))
	metrics.StudentsAtRisk.WithLabelValues(string(models.TierHigh)).Set(float64(summary.High))
	metrics.StudentsAtRisk.WithLabelValues(string(models.TierModerate)).Set(float64(summary.Moderate))

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.TopLimit
	}

	output := &Output{
		TotalStudents:     summary.Total,
		AtRisk:            summary.AtRisk(),
		Critical:          summary.Critical,
		High:              summary.High,
		Moderate:          summary.Moderate,
		Low:               summary.Low,
		PredictedDropouts: summary.PredictedDropouts,
		MeanRiskPercent:   summary.MeanRiskPercent,
		TopStudents:       topStudents(selected, limit),
		FailedStudents:    append([]string{}, h.cache.Failures()...),
	}

	if (h.config.IndexResults || input.Index) && h.indexer != nil {
		if err := h.indexer.Index(ctx, all); err != nil {
			return nil, errors.NewIndexingFailedError(err)
		}
		output.Indexed = true
	}

	h.logger.Info("scoring summary computed", map[string]interface{}{
		"students": output.TotalStudents,
		"atRisk":   output.AtRisk,
		"failed":   len(output.FailedStudents),
		"indexed":  output.Indexed,
	})
	return output, nil
}

// restrictTo keeps the named students, in population order. Every id must
// be part of the scored population.
func restrictTo(all []models.ScoredStudent, ids []string) ([]models.ScoredStudent, error) {
	if len(ids) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]models.ScoredStudent, 0, len(ids))
	for _, s := range all {
		if wanted[s.Student.ID] {
			out = append(out, s)
			delete(wanted, s.Student.ID)
		}
	}
	for _, id := range ids {
		if wanted[id] {
			return nil, errors.NewStudentNotFoundError(id).WithMetadata("studentId", id)
		}
	}
	return out, nil
}

// topStudents keeps the first limit at-risk students; the population is
// already ordered by descending risk.
func topStudents(students []models.ScoredStudent, limit int) []StudentSummary {
	out := make([]StudentSummary, 0, limit)
	for _, s := range students {
		if len(out) == limit {
			break
		}
		if !s.Assessment.AtRisk() {
			continue
		}
		out = append(out, StudentSummary{
			ID:        s.Student.ID,
			Program:   s.Student.Program,
			Year:      wholeYear(s.Student.Year),
			RiskScore: s.Assessment.RiskScore,
			Tier:      string(s.Assessment.Tier()),
		})
	}
	return out
}

// wholeYear maps a missing year to zero so the summary stays valid JSON.
func wholeYear(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(v)
}

// Variables is the job completion payload.
func (o *Output) Variables() map[string]interface{} {
	return map[string]interface{}{
		"scoring": o,
		"atRisk":  o.AtRisk,
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode(err)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func errorCode(err error) string {
	if stdErr, ok := errors.As(err); ok {
		return string(stdErr.Code)
	}
	return string(errors.ErrCodeInternal)
}

// Register opens the job subscription when the worker is enabled.
func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("%s: camunda client is required to register", TaskType)
	}
	h.worker = h.camunda.OpenWorker(camunda.WorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
		Handler:       h.Handle,
	}, h.logger)
	return nil
}

func (h *Handler) Close() {
	if h.worker != nil {
		h.worker.Close()
		h.worker = nil
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[configKey]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
		cfg.IndexResults = appConfig.Search.Enabled
	}
	return cfg
}
