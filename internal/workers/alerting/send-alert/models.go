package sendalert

import (
	"context"

	"dropout-alerts/internal/alerting"
	"dropout-alerts/internal/models"
)

// Input is one "send now" request carried by the process instance.
type Input struct {
	Mode       string   `json:"mode"`
	StudentIDs []string `json:"studentIds,omitempty"`
	Channels   string   `json:"channels,omitempty"`
	Title      string   `json:"title,omitempty"`
	Message    string   `json:"message,omitempty"`
}

type Output struct {
	AlertID   string                  `json:"alertId"`
	Title     string                  `json:"title"`
	Students  []string                `json:"students"`
	Results   []models.DeliveryResult `json:"results"`
	Delivered int                     `json:"delivered"`
}

// AlertSender runs a send action; *alerting.Orchestrator satisfies it.
type AlertSender interface {
	SendAlert(ctx context.Context, req alerting.SendRequest) (*alerting.Report, error)
}
