// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Scoring       ScoringConfig           `mapstructure:"scoring"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Schedule      ScheduleStoreConfig     `mapstructure:"schedule"`
	Search        SearchConfig            `mapstructure:"search"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// --- Domain sections ---

// ScoringConfig locates the dataset and the trained model artifacts.
type ScoringConfig struct {
	DatasetPath  string      `mapstructure:"dataset_path"`
	ArtifactsDir string      `mapstructure:"artifacts_dir"`
	Cache        CacheConfig `mapstructure:"cache"`
}

// CacheConfig selects where batch predictions are kept. "memory" keeps them
// in-process only; "redis" also shares them across worker replicas.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"`
	TTL       int    `mapstructure:"ttl"` // milliseconds, 0 keeps entries until invalidated
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NotificationConfig holds every delivery channel's settings.
type NotificationConfig struct {
	Email EmailConfig `mapstructure:"email"`
	Teams TeamsConfig `mapstructure:"teams"`
	AWS   AWSConfig   `mapstructure:"aws"`
}

// EmailConfig is the SMTP account alerts are sent from.
type EmailConfig struct {
	SMTPServer     string `mapstructure:"smtp_server"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	FromEmail      string `mapstructure:"from_email"`
	Password       string `mapstructure:"password"`
	RecipientEmail string `mapstructure:"recipient_email"`
}

// Complete reports whether every SMTP field is set.
func (e EmailConfig) Complete() bool {
	return strings.TrimSpace(e.SMTPServer) != "" &&
		e.SMTPPort > 0 &&
		strings.TrimSpace(e.FromEmail) != "" &&
		e.Password != "" &&
		strings.TrimSpace(e.RecipientEmail) != ""
}

// TeamsConfig targets either an incoming webhook or a Power Automate workflow.
type TeamsConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	IsWorkflow bool   `mapstructure:"is_workflow"`
}

// Complete reports whether a target URL is set.
func (t TeamsConfig) Complete() bool {
	return strings.TrimSpace(t.WebhookURL) != ""
}

type AWSConfig struct {
	Region string    `mapstructure:"region"`
	SES    SESConfig `mapstructure:"ses"`
	SNS    SNSConfig `mapstructure:"sns"`
}

type SESConfig struct {
	FromEmail  string   `mapstructure:"from_email"`
	Recipients []string `mapstructure:"recipients"`
}

func (s SESConfig) Complete() bool {
	return strings.TrimSpace(s.FromEmail) != "" && len(s.Recipients) > 0
}

type SNSConfig struct {
	TopicARN     string   `mapstructure:"topic_arn"`
	PhoneNumbers []string `mapstructure:"phone_numbers"`
	SenderID     string   `mapstructure:"sender_id"`
}

func (s SNSConfig) Complete() bool {
	return strings.TrimSpace(s.TopicARN) != "" || len(s.PhoneNumbers) > 0
}

// ScheduleStoreConfig selects where schedule descriptors are saved.
type ScheduleStoreConfig struct {
	Store string `mapstructure:"store"` // "file" or "postgres"
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// SearchConfig controls the Elasticsearch assessment index.
type SearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	MetricsAddress string `mapstructure:"metrics_address"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}
