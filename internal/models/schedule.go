// internal/models/schedule.go
package models

// Schedule frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Channel selections stored in a schedule
const (
	ScheduleChannelEmail = "email"
	ScheduleChannelTeams = "teams"
	ScheduleChannelBoth  = "both"
)

// ScheduleConfig describes a recurring alert. It is persisted on request and
// never executed by this module.
type ScheduleConfig struct {
	Frequency   string   `json:"frequency" yaml:"frequency"`
	Time        string   `json:"time" yaml:"time"`
	DayOfWeek   string   `json:"dayOfWeek,omitempty" yaml:"day_of_week,omitempty"`
	DayOfMonth  int      `json:"dayOfMonth,omitempty" yaml:"day_of_month,omitempty"`
	ChannelType string   `json:"channelType" yaml:"channel_type"`
	Students    []string `json:"students" yaml:"students"`
	Title       string   `json:"title" yaml:"title"`
	Message     string   `json:"message" yaml:"message"`
}
