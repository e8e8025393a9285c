package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: sdkaws.String("ses-1")}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{MessageId: sdkaws.String("sns-1")}, nil
}

func TestSESClient_SendHTMLEmail(t *testing.T) {
	fake := &fakeSES{}
	client := NewSESClientWithAPI(fake)

	id, err := client.SendHTMLEmail(context.Background(), "from@example.com", []string{"to@example.com"}, "Sujet", "<p>x</p>", "")
	require.NoError(t, err)

	assert.Equal(t, "ses-1", id)
	assert.Equal(t, "from@example.com", sdkaws.ToString(fake.input.Source))
	assert.Equal(t, []string{"to@example.com"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "<p>x</p>", sdkaws.ToString(fake.input.Message.Body.Html.Data))
	assert.Nil(t, fake.input.Message.Body.Text)
}

func TestSESClient_PropagatesError(t *testing.T) {
	client := NewSESClientWithAPI(&fakeSES{err: errors.New("denied")})

	_, err := client.SendHTMLEmail(context.Background(), "a", []string{"b"}, "s", "h", "t")
	assert.EqualError(t, err, "denied")
}

func TestSNSClient(t *testing.T) {
	fake := &fakeSNS{}
	client := NewSNSClientWithAPI(fake)

	_, err := client.SendSMS(context.Background(), "+33600000001", "EPITECH", "hello")
	require.NoError(t, err)
	_, err = client.PublishTopic(context.Background(), "arn:topic", "", "hello")
	require.NoError(t, err)

	require.Len(t, fake.inputs, 2)
	assert.Equal(t, "+33600000001", sdkaws.ToString(fake.inputs[0].PhoneNumber))
	assert.Equal(t, "EPITECH", sdkaws.ToString(fake.inputs[0].MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))
	assert.Equal(t, "arn:topic", sdkaws.ToString(fake.inputs[1].TopicArn))
	assert.Nil(t, fake.inputs[1].Subject)
}
