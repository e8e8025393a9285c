package alerting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"dropout-alerts/internal/models"
)

// FileScheduleStore keeps the schedule as a YAML document. Each save
// replaces the previous one.
type FileScheduleStore struct {
	path string
}

func NewFileScheduleStore(path string) *FileScheduleStore {
	return &FileScheduleStore{path: path}
}

func (s *FileScheduleStore) Save(_ context.Context, cfg *models.ScheduleConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schedule directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".schedule-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write schedule: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace schedule: %w", err)
	}
	return nil
}

func (s *FileScheduleStore) Load(_ context.Context) (*models.ScheduleConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	var cfg models.ScheduleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &cfg, nil
}

// PostgresScheduleStore appends every saved schedule to a table; Load
// returns the most recent one.
type PostgresScheduleStore struct {
	db    *sql.DB
	table string
}

func NewPostgresScheduleStore(db *sql.DB, table string) *PostgresScheduleStore {
	return &PostgresScheduleStore{db: db, table: pq.QuoteIdentifier(table)}
}

// EnsureSchema creates the table when it does not exist.
func (s *PostgresScheduleStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		frequency TEXT NOT NULL,
		send_time TEXT NOT NULL,
		day_of_week TEXT NOT NULL DEFAULT '',
		day_of_month INTEGER NOT NULL DEFAULT 0,
		channel_type TEXT NOT NULL,
		students TEXT[] NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresScheduleStore) Save(ctx context.Context, cfg *models.ScheduleConfig) error {
	query := fmt.Sprintf(`INSERT INTO %s (frequency, send_time, day_of_week, day_of_month, channel_type, students, title, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		cfg.Frequency, cfg.Time, cfg.DayOfWeek, cfg.DayOfMonth,
		cfg.ChannelType, pq.Array(cfg.Students), cfg.Title, cfg.Message,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *PostgresScheduleStore) Load(ctx context.Context) (*models.ScheduleConfig, error) {
	query := fmt.Sprintf(`SELECT frequency, send_time, day_of_week, day_of_month, channel_type, students, title, message
		FROM %s ORDER BY id DESC LIMIT 1`, s.table)

	var cfg models.ScheduleConfig
	err := s.db.QueryRowContext(ctx, query).Scan(
		&cfg.Frequency, &cfg.Time, &cfg.DayOfWeek, &cfg.DayOfMonth,
		&cfg.ChannelType, pq.Array(&cfg.Students), &cfg.Title, &cfg.Message,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("select schedule: %w", err)
	}
	return &cfg, nil
}
