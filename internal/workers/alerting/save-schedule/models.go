package saveschedule

import (
	"context"

	"dropout-alerts/internal/models"
)

// Input is the schedule descriptor, read from the "schedule" variable.
type Input struct {
	Schedule *models.ScheduleConfig `json:"schedule"`
}

type Output struct {
	Saved      bool   `json:"scheduleSaved"`
	Frequency  string `json:"scheduleFrequency"`
	Time       string `json:"scheduleTime"`
	Students   int    `json:"scheduleStudents"`
	StoredWith string `json:"scheduleStore"`
}

// Saver validates and stores schedules; *alerting.ScheduleSaver satisfies it.
type Saver interface {
	SaveSchedule(ctx context.Context, cfg *models.ScheduleConfig) error
}
