package saveschedule

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dropout-alerts/internal/alerting"
	"dropout-alerts/internal/common/camunda"
	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/errors"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/common/metrics"
)

const TaskType = "alert.schedule.save"

const configKey = "save-schedule"

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	saver        Saver
	storeName    string
	errorHandler *errors.ErrorHandler
	worker       *camunda.Worker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Saver        Saver
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", configKey, err)
	}
	if opts.Saver == nil {
		return nil, fmt.Errorf("invalid configuration for %s: schedule saver is required", configKey)
	}

	storeName := config.StoreFile
	if opts.AppConfig != nil {
		storeName = opts.AppConfig.Schedule.Store
	}

	log := logger.OrDefault(opts.Logger).WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       workerConfig,
		logger:       log,
		camunda:      opts.Camunda,
		saver:        opts.Saver,
		storeName:    storeName,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

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
	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	if input.Schedule == nil {
		return nil, errors.NewValidationError("schedule variable is required")
	}
	return &input, nil
}

// Execute validates and stores the descriptor. Saving never sends anything.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	cfg := input.Schedule
	if err := h.saver.SaveSchedule(ctx, cfg); err != nil {
		switch {
		case stderrors.Is(err, alerting.ErrInvalidSchedule):
			return nil, errors.NewValidationError(err.Error())
		default:
			return nil, errors.NewSchedulePersistFailedError(err).WithMetadata("store", h.storeName)
		}
	}

	return &Output{
		Saved:      true,
		Frequency:  cfg.Frequency,
		Time:       cfg.Time,
		Students:   len(cfg.Students),
		StoredWith: h.storeName,
	}, nil
}

func (o *Output) Variables() map[string]interface{} {
	return map[string]interface{}{
		"scheduleSaved":     o.Saved,
		"scheduleFrequency": o.Frequency,
		"scheduleTime":      o.Time,
		"scheduleStudents":  o.Students,
		"scheduleStore":     o.StoredWith,
	}
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.As(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

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
	}
	return cfg
}
