package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type stubSMTPClient struct {
	startTLSErr error
	authErr     error
	mailErr     error
	rcptErr     error

	startTLSCalled bool
	quitCalled     bool
	closed         bool
	data           bytes.Buffer
}

func (s *stubSMTPClient) StartTLS(*tls.Config) error {
	s.startTLSCalled = true
	return s.startTLSErr
}

func (s *stubSMTPClient) Auth(smtp.Auth) error { return s.authErr }
func (s *stubSMTPClient) Mail(string) error    { return s.mailErr }
func (s *stubSMTPClient) Rcpt(string) error    { return s.rcptErr }

func (s *stubSMTPClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&s.data}, nil
}

func (s *stubSMTPClient) Quit() error {
	s.quitCalled = true
	return nil
}

func (s *stubSMTPClient) Close() error {
	s.closed = true
	return nil
}

func stubDialer(client SMTPClient, err error) Dialer {
	return func(context.Context, string, int) (SMTPClient, error) {
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func createValidEmailConfig() config.EmailConfig {
	return config.EmailConfig{
		SMTPServer:     "smtp.example.com",
		SMTPPort:       587,
		FromEmail:      "alerts@example.com",
		Password:       "secret",
		RecipientEmail: "pedagogie@example.com",
	}
}

func createPayload(n int) *models.AlertPayload {
	p := &models.AlertPayload{
		ID:        "alert-1",
		Title:     "🚨 Alerte Décrochage - test",
		HTMLBody:  "<h2>Alerte décrochage</h2>",
		TextBody:  "Alerte décrochage",
		CreatedAt: time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		score := 0.95 - float64(i)*0.02
		p.Targets = append(p.Targets, models.ScoredStudent{
			Student: models.StudentRecord{
				ID:           fmt.Sprintf("EPI-BDX-%05d", i+1),
				Program:      "PGE",
				Year:         2,
				AverageGrade: 9.5,
			},
			Assessment: models.RiskAssessment{
				StudentID: fmt.Sprintf("EPI-BDX-%05d", i+1),
				RiskScore: score,
			},
		})
	}
	return p
}

func TestEmailChannel_Send(t *testing.T) {
	client := &stubSMTPClient{}
	ch := NewEmailChannel(createValidEmailConfig(), logger.NewTestLogger(t), WithDialer(stubDialer(client, nil)))

	result := ch.Send(context.Background(), createPayload(2))

	assert.True(t, result.Success)
	assert.Equal(t, MsgEmailSent, result.Message)
	assert.Equal(t, models.ChannelEmail, result.Channel)
	assert.True(t, client.startTLSCalled)
	assert.True(t, client.quitCalled)
	assert.True(t, client.closed)

	msg := client.data.String()
	assert.Contains(t, msg, "From: alerts@example.com")
	assert.Contains(t, msg, "To: pedagogie@example.com")
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "text/html; charset=utf-8")
	assert.Contains(t, msg, "text/plain; charset=utf-8")
}

func TestEmailChannel_ImplicitTLSSkipsStartTLS(t *testing.T) {
	cfg := createValidEmailConfig()
	cfg.SMTPPort = 465
	client := &stubSMTPClient{}
	ch := NewEmailChannel(cfg, logger.NewTestLogger(t), WithDialer(stubDialer(client, nil)))

	result := ch.Send(context.Background(), createPayload(1))

	assert.True(t, result.Success)
	assert.False(t, client.startTLSCalled)
}

func TestEmailChannel_Failures(t *testing.T) {
	tests := []struct {
		name     string
		client   *stubSMTPClient
		dialErr  error
		expected string
		contains []string
	}{
		{
			name:     "authentication rejected",
			client:   &stubSMTPClient{authErr: errors.New("535 5.7.8 Username and Password not accepted")},
			expected: MsgEmailAuthFailed,
		},
		{
			name:     "server unreachable",
			dialErr:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			contains: []string{"Erreur de connexion au serveur SMTP", "smtp.example.com", "587"},
		},
		{
			name:     "server closes during greeting",
			dialErr:  io.EOF,
			contains: []string{"Connexion interrompue", "Le serveur a fermé la connexion"},
		},
		{
			name:     "server drops during transfer",
			client:   &stubSMTPClient{mailErr: io.ErrUnexpectedEOF},
			contains: []string{"Connexion interrompue"},
		},
		{
			name:     "recipient rejected",
			client:   &stubSMTPClient{rcptErr: errors.New("550 mailbox unavailable")},
			contains: []string{"Erreur lors de l'envoi : 550 mailbox unavailable"},
		},
		{
			name:     "starttls unsupported",
			client:   &stubSMTPClient{startTLSErr: errors.New("smtp: server doesn't support STARTTLS")},
			contains: []string{"Erreur lors de l'envoi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var client SMTPClient
			if tt.client != nil {
				client = tt.client
			}
			ch := NewEmailChannel(createValidEmailConfig(), logger.NewTestLogger(t), WithDialer(stubDialer(client, tt.dialErr)))

			result := ch.Send(context.Background(), createPayload(1))

			assert.False(t, result.Success)
			assert.False(t, result.Skipped)
			if tt.expected != "" {
				assert.Equal(t, tt.expected, result.Message)
			}
			for _, s := range tt.contains {
				assert.Contains(t, result.Message, s)
			}
		})
	}
}

func TestEmailChannel_Unconfigured(t *testing.T) {
	cfg := createValidEmailConfig()
	cfg.Password = ""
	dialed := false
	ch := NewEmailChannel(cfg, logger.NewTestLogger(t), WithDialer(func(context.Context, string, int) (SMTPClient, error) {
		dialed = true
		return &stubSMTPClient{}, nil
	}))

	require.False(t, ch.Configured())
	result := ch.Send(context.Background(), createPayload(1))

	assert.False(t, result.Success)
	assert.True(t, result.Skipped)
	assert.Equal(t, MsgEmailConfigIncomplete, result.Message)
	assert.False(t, dialed)
}

func TestEmailChannel_PassesDeadlineToDialer(t *testing.T) {
	var hasDeadline bool
	ch := NewEmailChannel(createValidEmailConfig(), logger.NewTestLogger(t), WithDialer(func(ctx context.Context, host string, port int) (SMTPClient, error) {
		_, hasDeadline = ctx.Deadline()
		assert.Equal(t, "smtp.example.com", host)
		assert.Equal(t, 587, port)
		return &stubSMTPClient{}, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ch.Send(ctx, createPayload(1))

	assert.True(t, hasDeadline)
}

func TestBuildMessage_OmitsEmptyTextPart(t *testing.T) {
	msg, err := buildMessage("a@example.com", "b@example.com", "Sujet", "", "<p>Bonjour</p>", time.Now())
	require.NoError(t, err)

	assert.Contains(t, string(msg), "text/html; charset=utf-8")
	assert.NotContains(t, string(msg), "text/plain")
}
