package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	"dropout-alerts/internal/common/config"
	commonhttp "dropout-alerts/internal/common/http"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

const (
	TeamsTimeout      = 10 * time.Second
	DefaultTeamsColor = "FF0000"

	MsgTeamsSent       = "Alerte Teams envoyée avec succès"
	MsgTeamsTimeout    = "Timeout : La requête a pris trop de temps"
	MsgTeamsConnection = "Erreur de connexion : Vérifiez votre connexion internet"
	msgTeamsHTTPStatus = "Erreur HTTP %d: %s"
	msgTeamsFailure    = "Erreur lors de l'envoi : %v"

	maxErrorBody = 200
)

// TeamsChannel posts alerts to a Teams incoming webhook or workflow trigger.
type TeamsChannel struct {
	cfg        config.TeamsConfig
	client     *commonhttp.Client
	serializer Serializer
	color      string
	logger     logger.Logger
	now        func() time.Time
}

type TeamsOption func(*TeamsChannel)

// WithHTTPClient replaces the 10 s default client.
func WithHTTPClient(c *commonhttp.Client) TeamsOption {
	return func(t *TeamsChannel) { t.client = c }
}

// WithClock fixes the time used for digest dates.
func WithClock(now func() time.Time) TeamsOption {
	return func(t *TeamsChannel) { t.now = now }
}

func NewTeamsChannel(cfg config.TeamsConfig, log logger.Logger, opts ...TeamsOption) *TeamsChannel {
	t := &TeamsChannel{
		cfg:    cfg,
		client: commonhttp.NewClient(TeamsTimeout),
		color:  DefaultTeamsColor,
		logger: logger.OrDefault(log).Named("teams"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if cfg.IsWorkflow {
		t.serializer = WorkflowSerializer{}
	} else {
		t.serializer = MessageCardSerializer{Now: t.now}
	}
	return t
}

func (t *TeamsChannel) Type() models.ChannelType { return models.ChannelTeams }

func (t *TeamsChannel) Configured() bool { return t.cfg.Complete() }

func (t *TeamsChannel) Send(ctx context.Context, payload *models.AlertPayload) models.DeliveryResult {
	if !t.Configured() {
		return SkippedResult(models.ChannelTeams)
	}

	msg := StructuredMessage(NewDigest(payload, t.now()))
	if payload.CustomMessage != "" {
		msg = FreeTextMessage(payload.CustomMessage)
	}

	body, err := t.serializer.Serialize(payload.Title, t.color, msg)
	if err != nil {
		return t.failure(payload, fmt.Sprintf(msgTeamsFailure, err), err)
	}

	resp, err := t.client.PostJSON(ctx, t.cfg.WebhookURL, body)
	if err != nil {
		return t.failure(payload, classifyHTTPError(err), err)
	}

	switch resp.StatusCode {
	case 200, 201, 202, 204:
	default:
		message := fmt.Sprintf(msgTeamsHTTPStatus, resp.StatusCode, truncateRunes(string(resp.Body), maxErrorBody))
		return t.failure(payload, message, errors.New(message))
	}

	t.logger.Info("teams alert sent", map[string]interface{}{
		"alertId":  payload.ID,
		"workflow": t.cfg.IsWorkflow,
		"status":   resp.StatusCode,
		"students": len(payload.Targets),
	})
	return models.NewSuccessResult(models.ChannelTeams, MsgTeamsSent)
}

// truncateRunes keeps the first n characters of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (t *TeamsChannel) failure(payload *models.AlertPayload, message string, err error) models.DeliveryResult {
	t.logger.Warn("teams alert failed", map[string]interface{}{
		"alertId":  payload.ID,
		"workflow": t.cfg.IsWorkflow,
		"error":    err.Error(),
	})
	return models.NewFailureResult(models.ChannelTeams, message)
}

func classifyHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return MsgTeamsTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return MsgTeamsTimeout
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return MsgTeamsConnection
	}
	return fmt.Sprintf(msgTeamsFailure, err)
}
