// Package aws wraps the AWS SDK clients used for alert delivery.
package aws

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

// SESAPI is the part of the SES client the wrapper calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client SESAPI
}

func loadConfig(ctx context.Context, region string) (sdkaws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

func NewSESClient(ctx context.Context, region string) (*SESClient, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(cfg)}, nil
}

// NewSESClientWithAPI wraps an existing client, typically a test double.
func NewSESClientWithAPI(api SESAPI) *SESClient {
	return &SESClient{client: api}
}

// SendHTMLEmail sends one message with an HTML body and an optional text
// alternative, returning the SES message id.
func (s *SESClient) SendHTMLEmail(ctx context.Context, from string, to []string, subject, html, text string) (string, error) {
	body := &types.Body{
		Html: &types.Content{Charset: sdkaws.String(charsetUTF8), Data: sdkaws.String(html)},
	}
	if text != "" {
		body.Text = &types.Content{Charset: sdkaws.String(charsetUTF8), Data: sdkaws.String(text)}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      sdkaws.String(from),
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Subject: &types.Content{Charset: sdkaws.String(charsetUTF8), Data: sdkaws.String(subject)},
			Body:    body,
		},
	})
	if err != nil {
		return "", err
	}
	return sdkaws.ToString(out.MessageId), nil
}
