// internal/models/alert.go
package models

import "time"

// ChannelType identifies a delivery channel.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelTeams ChannelType = "teams"
	ChannelSES   ChannelType = "ses"
	ChannelSMS   ChannelType = "sms"
)

// IsValid reports whether the channel is one the dispatcher knows.
func (c ChannelType) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelTeams, ChannelSES, ChannelSMS:
		return true
	default:
		return false
	}
}

// SelectionMode decides which students an alert targets.
type SelectionMode string

const (
	SelectAllAtRisk    SelectionMode = "all_at_risk"
	SelectCriticalOnly SelectionMode = "critical_only"
	SelectManual       SelectionMode = "manual"
)

// IsValid reports whether the mode is known.
func (m SelectionMode) IsValid() bool {
	switch m {
	case SelectAllAtRisk, SelectCriticalOnly, SelectManual:
		return true
	default:
		return false
	}
}

// AlertPayload is built once per send action and shared by every channel.
// CustomMessage is set only when the user wrote the body themselves.
type AlertPayload struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	HTMLBody      string          `json:"htmlBody"`
	TextBody      string          `json:"textBody"`
	CustomMessage string          `json:"customMessage,omitempty"`
	Targets       []ScoredStudent `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// TierCounts returns how many targets fall in each at-risk tier.
func (p *AlertPayload) TierCounts() (critical, high, moderate int) {
	for _, t := range p.Targets {
		switch t.Assessment.Tier() {
		case TierCritical:
			critical++
		case TierHigh:
			high++
		case TierModerate:
			moderate++
		}
	}
	return critical, high, moderate
}

// DeliveryResult is the outcome of one channel send.
type DeliveryResult struct {
	Channel ChannelType `json:"channel"`
	Success bool        `json:"success"`
	Skipped bool        `json:"skipped,omitempty"`
	Message string      `json:"message"`
	SentAt  time.Time   `json:"sentAt"`
}

// NewSuccessResult builds a successful delivery result.
func NewSuccessResult(channel ChannelType, message string) DeliveryResult {
	return DeliveryResult{Channel: channel, Success: true, Message: message, SentAt: time.Now().UTC()}
}

// NewFailureResult builds a failed delivery result.
func NewFailureResult(channel ChannelType, message string) DeliveryResult {
	return DeliveryResult{Channel: channel, Success: false, Message: message, SentAt: time.Now().UTC()}
}
