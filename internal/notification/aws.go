package notification

import (
	"context"
	"fmt"
	"strings"

	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

const (
	MsgSESSent       = "Email SES envoyé avec succès"
	msgSESFailure    = "Erreur lors de l'envoi SES : %v"
	msgSMSSent       = "SMS envoyé avec succès (%d destinataire(s))"
	msgSMSFailure    = "Erreur lors de l'envoi SMS : %v"
	msgSMSSummary    = "%s : %d étudiant(s) à risque (%d critique(s), %d élevé(s), %d modéré(s)). Détails envoyés par email."
	maxSMSCharacters = 320
)

// HTMLMailer sends one HTML email; *aws.SESClient satisfies it.
type HTMLMailer interface {
	SendHTMLEmail(ctx context.Context, from string, to []string, subject, html, text string) (string, error)
}

// SMSPublisher sends short messages; *aws.SNSClient satisfies it.
type SMSPublisher interface {
	SendSMS(ctx context.Context, phone, senderID, message string) (string, error)
	PublishTopic(ctx context.Context, topicARN, subject, message string) (string, error)
}

// SESChannel sends the HTML alert through AWS SES.
type SESChannel struct {
	cfg    config.AWSConfig
	mailer HTMLMailer
	logger logger.Logger
}

// NewSESChannel builds the channel. A nil mailer leaves it unconfigured.
func NewSESChannel(cfg config.AWSConfig, mailer HTMLMailer, log logger.Logger) *SESChannel {
	return &SESChannel{cfg: cfg, mailer: mailer, logger: logger.OrDefault(log).Named("ses")}
}

func (c *SESChannel) Type() models.ChannelType { return models.ChannelSES }

func (c *SESChannel) Configured() bool {
	return c.mailer != nil && strings.TrimSpace(c.cfg.Region) != "" && c.cfg.SES.Complete()
}

func (c *SESChannel) Send(ctx context.Context, payload *models.AlertPayload) models.DeliveryResult {
	if !c.Configured() {
		return SkippedResult(models.ChannelSES)
	}

	messageID, err := c.mailer.SendHTMLEmail(ctx, c.cfg.SES.FromEmail, c.cfg.SES.Recipients, payload.Title, payload.HTMLBody, payload.TextBody)
	if err != nil {
		c.logger.Warn("ses alert failed", map[string]interface{}{
			"alertId": payload.ID,
			"error":   err.Error(),
		})
		return models.NewFailureResult(models.ChannelSES, fmt.Sprintf(msgSESFailure, err))
	}

	c.logger.Info("ses alert sent", map[string]interface{}{
		"alertId":    payload.ID,
		"messageId":  messageID,
		"recipients": len(c.cfg.SES.Recipients),
	})
	return models.NewSuccessResult(models.ChannelSES, MsgSESSent)
}

// SNSChannel sends a one-line summary by SMS and, when a topic is set,
// publishes it to that topic.
type SNSChannel struct {
	cfg       config.AWSConfig
	publisher SMSPublisher
	logger    logger.Logger
}

// NewSNSChannel builds the channel. A nil publisher leaves it unconfigured.
func NewSNSChannel(cfg config.AWSConfig, publisher SMSPublisher, log logger.Logger) *SNSChannel {
	return &SNSChannel{cfg: cfg, publisher: publisher, logger: logger.OrDefault(log).Named("sns")}
}

func (c *SNSChannel) Type() models.ChannelType { return models.ChannelSMS }

func (c *SNSChannel) Configured() bool {
	return c.publisher != nil && strings.TrimSpace(c.cfg.Region) != "" && c.cfg.SNS.Complete()
}

func (c *SNSChannel) Send(ctx context.Context, payload *models.AlertPayload) models.DeliveryResult {
	if !c.Configured() {
		return SkippedResult(models.ChannelSMS)
	}

	text := SMSSummary(payload)
	delivered := 0

	if arn := strings.TrimSpace(c.cfg.SNS.TopicARN); arn != "" {
		if _, err := c.publisher.PublishTopic(ctx, arn, payload.Title, text); err != nil {
			return c.failure(payload, err)
		}
		delivered++
	}
	for _, phone := range c.cfg.SNS.PhoneNumbers {
		if _, err := c.publisher.SendSMS(ctx, phone, c.cfg.SNS.SenderID, text); err != nil {
			return c.failure(payload, err)
		}
		delivered++
	}

	c.logger.Info("sms alert sent", map[string]interface{}{
		"alertId":    payload.ID,
		"recipients": delivered,
	})
	return models.NewSuccessResult(models.ChannelSMS, fmt.Sprintf(msgSMSSent, delivered))
}

func (c *SNSChannel) failure(payload *models.AlertPayload, err error) models.DeliveryResult {
	c.logger.Warn("sms alert failed", map[string]interface{}{
		"alertId": payload.ID,
		"error":   err.Error(),
	})
	return models.NewFailureResult(models.ChannelSMS, fmt.Sprintf(msgSMSFailure, err))
}

// SMSSummary renders the payload as a single short line.
func SMSSummary(payload *models.AlertPayload) string {
	critical, high, moderate := payload.TierCounts()
	text := fmt.Sprintf(msgSMSSummary, payload.Title, len(payload.Targets), critical, high, moderate)
	if r := []rune(text); len(r) > maxSMSCharacters {
		text = string(r[:maxSMSCharacters])
	}
	return text
}
