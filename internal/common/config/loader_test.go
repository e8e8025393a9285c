package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_SMTP_SERVER", "smtp.example.org")
	t.Setenv("SMTP_PASSWORD", "s3cret")

	path := writeConfig(t, `
app:
  name: dropout-alerts
scoring:
  artifacts_dir: /srv/models
notifications:
  email:
    smtp_server: ${TEST_SMTP_SERVER}
    smtp_port: 465
    from_email: alerts@example.org
    recipient_email: staff@example.org
  teams:
    webhook_url: https://example.org/hook
workers:
  alert-send:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.org", cfg.Notifications.Email.SMTPServer)
	assert.Equal(t, "s3cret", cfg.Notifications.Email.Password)
	assert.True(t, cfg.Notifications.Email.Complete())
	assert.True(t, cfg.Notifications.Teams.Complete())
	assert.Equal(t, "/srv/models", cfg.Scoring.ArtifactsDir)
	assert.Equal(t, CacheMemory, cfg.Scoring.Cache.Backend)
	assert.Equal(t, StoreFile, cfg.Schedule.Store)
	assert.Equal(t, ":8080", cfg.Observability.MetricsAddress)
	assert.Equal(t, "dropout-alerts", cfg.Observability.ServiceName)

	w := GetWorkerConfig(cfg, "alert-send")
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
	assert.Equal(t, 30*time.Second, GetDuration(w.Timeout))
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))

	assert.Error(t, cfg.RequireBroker())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown cache backend", "scoring:\n  cache:\n    backend: memcached\n"},
		{"redis backend without address", "scoring:\n  cache:\n    backend: redis\n"},
		{"postgres store without host", "schedule:\n  store: postgres\n"},
		{"unknown store", "schedule:\n  store: s3\n"},
		{"search without elasticsearch", "search:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestChannelCompleteness(t *testing.T) {
	email := EmailConfig{SMTPServer: "smtp", SMTPPort: 587, FromEmail: "a@b", Password: "p", RecipientEmail: "c@d"}
	assert.True(t, email.Complete())

	email.Password = ""
	assert.False(t, email.Complete())

	assert.False(t, TeamsConfig{WebhookURL: "  "}.Complete())
	assert.False(t, SESConfig{FromEmail: "a@b"}.Complete())
	assert.True(t, SNSConfig{PhoneNumbers: []string{"+33600000000"}}.Complete())
}
