// Package notification delivers alert payloads to staff through email, Teams,
// AWS SES and AWS SNS. Channels never return Go errors: every outcome,
// including transport failures, is a models.DeliveryResult.
package notification

import (
	"context"

	"dropout-alerts/internal/models"
)

// Channel is one delivery target.
type Channel interface {
	Type() models.ChannelType
	// Configured reports whether every required setting is present. The
	// orchestrator skips unconfigured channels without calling Send.
	Configured() bool
	Send(ctx context.Context, payload *models.AlertPayload) models.DeliveryResult
}

// Messages reported for unconfigured channels.
const (
	MsgEmailConfigIncomplete = "Configuration email incomplète"
	MsgTeamsConfigIncomplete = "URL webhook Teams non configurée"
	MsgSESConfigIncomplete   = "Configuration SES incomplète"
	MsgSMSConfigIncomplete   = "Configuration SMS incomplète"
)

// IncompleteMessage returns the skipped-channel message for a channel type.
func IncompleteMessage(channel models.ChannelType) string {
	switch channel {
	case models.ChannelEmail:
		return MsgEmailConfigIncomplete
	case models.ChannelTeams:
		return MsgTeamsConfigIncomplete
	case models.ChannelSES:
		return MsgSESConfigIncomplete
	case models.ChannelSMS:
		return MsgSMSConfigIncomplete
	default:
		return "Configuration incomplète"
	}
}

// SkippedResult is the result recorded for a channel that was not attempted.
func SkippedResult(channel models.ChannelType) models.DeliveryResult {
	r := models.NewFailureResult(channel, IncompleteMessage(channel))
	r.Skipped = true
	return r
}
