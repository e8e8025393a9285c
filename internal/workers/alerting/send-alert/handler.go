package sendalert

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dropout-alerts/internal/alerting"
	"dropout-alerts/internal/common/camunda"
	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/errors"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/common/metrics"
	"dropout-alerts/internal/dataset"
	"dropout-alerts/internal/models"
)

const TaskType = "alert.send"

const configKey = "send-alert"

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	sender       AlertSender
	errorHandler *errors.ErrorHandler
	worker       *camunda.Worker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	CustomConfig *Config
	Sender       AlertSender
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", configKey, err)
	}
	if _, err := alerting.ParseChannels(workerConfig.DefaultChannels); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", configKey, err)
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("invalid configuration for %s: alert sender is required", configKey)
	}

	log := logger.OrDefault(opts.Logger).WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       workerConfig,
		logger:       log,
		camunda:      opts.Camunda,
		sender:       opts.Sender,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing alert job", map[string]interface{}{
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

// Execute selects the targets and fans the alert out. Per-channel failures
// are part of the output; the job only fails when no channel could be
// attempted successfully and at least one actually failed.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	channelList := input.Channels
	if strings.TrimSpace(channelList) == "" {
		channelList = h.config.DefaultChannels
	}
	channels, err := alerting.ParseChannels(channelList)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	report, err := h.sender.SendAlert(ctx, alerting.SendRequest{
		Mode:       models.SelectionMode(input.Mode),
		StudentIDs: input.StudentIDs,
		Channels:   channels,
		Title:      input.Title,
		Message:    input.Message,
	})
	if err != nil {
		return nil, mapSendError(err, input)
	}

	if failed := failedChannels(report.Results); len(failed) > 0 && len(failed) == len(report.Results) {
		return nil, errors.NewChannelDeliveryFailedError(strings.Join(failed, "; ")).
			WithMetadata("alertId", report.AlertID)
	}

	return &Output{
		AlertID:   report.AlertID,
		Title:     report.Title,
		Students:  report.Students,
		Results:   report.Results,
		Delivered: report.Delivered(),
	}, nil
}

func mapSendError(err error, input *Input) error {
	switch {
	case stderrors.Is(err, alerting.ErrNoStudentsSelected):
		return errors.NewNoStudentsSelectedError(fmt.Sprintf("mode: %s, requested: %d", input.Mode, len(input.StudentIDs)))
	case stderrors.Is(err, alerting.ErrInvalidSelection), stderrors.Is(err, alerting.ErrUnknownChannel):
		return errors.NewValidationError(err.Error())
	case stderrors.Is(err, dataset.ErrDatasetUnavailable):
		return errors.NewDatasetUnavailableError(err)
	default:
		return errors.NewPredictionFailedError(err)
	}
}

// failedChannels lists "channel: message" for every attempted channel that
// did not deliver.
func failedChannels(results []models.DeliveryResult) []string {
	var out []string
	for _, r := range results {
		if !r.Success && !r.Skipped {
			out = append(out, fmt.Sprintf("%s: %s", r.Channel, r.Message))
		}
	}
	return out
}

// Variables is the job completion payload.
func (o *Output) Variables() map[string]interface{} {
	return map[string]interface{}{
		"alertId":        o.AlertID,
		"alertTitle":     o.Title,
		"alertStudents":  o.Students,
		"alertResults":   o.Results,
		"alertDelivered": o.Delivered > 0,
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
