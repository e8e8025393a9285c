package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/common/metrics"
	"dropout-alerts/internal/common/observability"
	"dropout-alerts/internal/models"
	"dropout-alerts/internal/notification"
)

var ErrUnknownChannel = errors.New("unknown channel")

// ChannelBoth is the dashboard shorthand for email plus Teams.
const ChannelBoth = "both"

// StudentSource serves the scored population; *PredictionCache satisfies it.
type StudentSource interface {
	All(ctx context.Context) ([]models.ScoredStudent, error)
}

// SendRequest is one "send now" action.
type SendRequest struct {
	Mode       models.SelectionMode `json:"mode"`
	StudentIDs []string             `json:"studentIds,omitempty"`
	Channels   []models.ChannelType `json:"channels"`
	Title      string               `json:"title,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// Report is the outcome of a send action, one result per requested channel
// in request order.
type Report struct {
	AlertID  string                  `json:"alertId"`
	Title    string                  `json:"title"`
	Students []string                `json:"students"`
	Results  []models.DeliveryResult `json:"results"`
}

// Delivered counts the channels that accepted the alert.
func (r *Report) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

type OrchestratorOptions struct {
	Source        StudentSource
	Channels      []notification.Channel
	Observability *observability.Observability
	Logger        logger.Logger
	Now           func() time.Time
}

// Orchestrator selects targets, builds one payload and fans it out.
type Orchestrator struct {
	source   StudentSource
	channels map[models.ChannelType]notification.Channel
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		source:   opts.Source,
		channels: make(map[models.ChannelType]notification.Channel, len(opts.Channels)),
		obs:      opts.Observability,
		logger:   logger.OrDefault(opts.Logger).Named("orchestrator"),
		now:      opts.Now,
	}
	if o.obs == nil {
		o.obs = &observability.Observability{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	for _, ch := range opts.Channels {
		o.channels[ch.Type()] = ch
	}
	return o
}

// ParseChannels reads a comma separated channel list. "both" expands to
// email and teams; duplicates are dropped.
func ParseChannels(channelList string) ([]models.ChannelType, error) {
	var out []models.ChannelType
	seen := map[models.ChannelType]bool{}
	add := func(c models.ChannelType) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, part := range strings.Split(channelList, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if part == ChannelBoth {
			add(models.ChannelEmail)
			add(models.ChannelTeams)
			continue
		}
		c := models.ChannelType(part)
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, part)
		}
		add(c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: none given", ErrUnknownChannel)
	}
	return out, nil
}

// SendAlert runs one send action. Selection problems are returned as errors;
// channel problems only ever appear in the report.
func (o *Orchestrator) SendAlert(ctx context.Context, req SendRequest) (*Report, error) {
	for _, c := range req.Channels {
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, c)
		}
	}
	if len(req.Channels) == 0 {
		return nil, fmt.Errorf("%w: none given", ErrUnknownChannel)
	}

	ctx, span := o.obs.StartSpan(ctx, "alert.send", attribute.String("selection", string(req.Mode)))
	defer span.End()

	students, err := o.source.All(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring unavailable")
		return nil, err
	}
	targets, err := SelectTargets(students, req.Mode, req.StudentIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	payload := BuildPayload(targets, req.Title, req.Message, o.now())
	span.SetAttributes(attribute.String("alert.id", payload.ID), attribute.Int("alert.targets", len(targets)))

	report := &Report{
		AlertID: payload.ID,
		Title:   payload.Title,
		Results: o.dispatch(ctx, payload, req.Channels),
	}
	for _, t := range targets {
		report.Students = append(report.Students, t.Student.ID)
	}

	o.logger.Info("alert dispatched", map[string]interface{}{
		"alertId":   payload.ID,
		"students":  len(targets),
		"channels":  len(req.Channels),
		"delivered": report.Delivered(),
	})
	return report, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, payload *models.AlertPayload, channels []models.ChannelType) []models.DeliveryResult {
	results := make([]models.DeliveryResult, len(channels))
	var wg sync.WaitGroup

	for i, channelType := range channels {
		ch, ok := o.channels[channelType]
		if !ok || !ch.Configured() {
			results[i] = notification.SkippedResult(channelType)
			o.record(ctx, results[i])
			continue
		}

		wg.Add(1)
		go func(i int, ch notification.Channel) {
			defer wg.Done()
			chCtx, span := o.obs.StartSpan(ctx, "alert.deliver", attribute.String("channel", string(ch.Type())))
			defer span.End()

			res := ch.Send(chCtx, payload)
			if !res.Success {
				span.SetStatus(codes.Error, res.Message)
			}
			results[i] = res
			o.record(chCtx, res)
		}(i, ch)
	}

	wg.Wait()
	return results
}

func (o *Orchestrator) record(ctx context.Context, res models.DeliveryResult) {
	status := metrics.StatusFailure
	switch {
	case res.Success:
		status = metrics.StatusSuccess
	case res.Skipped:
		status = metrics.StatusSkipped
		o.logger.Warn("channel skipped", map[string]interface{}{
			"channel": string(res.Channel),
			"reason":  res.Message,
		})
	}
	metrics.AlertDeliveries.WithLabelValues(string(res.Channel), status).Inc()
	o.obs.RecordDelivery(ctx, string(res.Channel), status)
}
