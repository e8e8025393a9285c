package alerting

import (
	"context"
	"errors"
	"fmt"

	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/common/metrics"
	"dropout-alerts/internal/common/validation"
	"dropout-alerts/internal/models"
)

var (
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrSchedulePersist  = errors.New("schedule persistence failed")
	ErrScheduleNotFound = errors.New("no schedule saved")
)

// ScheduleStore persists the recurring alert descriptor. Nothing in this
// module executes a saved schedule.
type ScheduleStore interface {
	Save(ctx context.Context, cfg *models.ScheduleConfig) error
	Load(ctx context.Context) (*models.ScheduleConfig, error)
}

var scheduleSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["frequency", "time", "channelType", "students", "title"],
	"properties": {
		"frequency": {"type": "string", "enum": ["daily", "weekly", "monthly"]},
		"time": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$"},
		"dayOfWeek": {"type": "string", "enum": ["Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi"]},
		"dayOfMonth": {"type": "integer", "minimum": 1, "maximum": 28},
		"channelType": {"type": "string", "enum": ["email", "teams", "both", "ses", "sms"]},
		"students": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
		"title": {"type": "string", "minLength": 1},
		"message": {"type": "string"}
	},
	"allOf": [
		{
			"if": {"properties": {"frequency": {"const": "weekly"}}},
			"then": {"required": ["dayOfWeek"]}
		},
		{
			"if": {"properties": {"frequency": {"const": "monthly"}}},
			"then": {"required": ["dayOfMonth"]}
		}
	]
}`)

// ValidateSchedule checks a descriptor before it is stored.
func ValidateSchedule(cfg *models.ScheduleConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: empty descriptor", ErrInvalidSchedule)
	}
	if err := scheduleSchema.Validate(cfg).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return nil
}

// ScheduleSaver validates and persists schedules.
type ScheduleSaver struct {
	store     ScheduleStore
	storeName string
	logger    logger.Logger
}

func NewScheduleSaver(store ScheduleStore, storeName string, log logger.Logger) *ScheduleSaver {
	return &ScheduleSaver{store: store, storeName: storeName, logger: logger.OrDefault(log).Named("schedule")}
}

// SaveSchedule stores cfg. It has no effect on alerts already sent.
func (s *ScheduleSaver) SaveSchedule(ctx context.Context, cfg *models.ScheduleConfig) error {
	if err := ValidateSchedule(cfg); err != nil {
		metrics.SchedulesSaved.WithLabelValues(s.storeName, metrics.StatusFailure).Inc()
		return err
	}
	if err := s.store.Save(ctx, cfg); err != nil {
		metrics.SchedulesSaved.WithLabelValues(s.storeName, metrics.StatusFailure).Inc()
		s.logger.Error("failed to save schedule", map[string]interface{}{
			"store": s.storeName,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrSchedulePersist, err)
	}

	metrics.SchedulesSaved.WithLabelValues(s.storeName, metrics.StatusSuccess).Inc()
	s.logger.Info("schedule saved", map[string]interface{}{
		"store":     s.storeName,
		"frequency": cfg.Frequency,
		"time":      cfg.Time,
		"students":  len(cfg.Students),
	})
	return nil
}

// LoadSchedule returns the stored descriptor.
func (s *ScheduleSaver) LoadSchedule(ctx context.Context) (*models.ScheduleConfig, error) {
	return s.store.Load(ctx)
}
