package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dropout-alerts/internal/models"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the recurring alert descriptor",
	}
	cmd.AddCommand(newScheduleSaveCmd())
	cmd.AddCommand(newScheduleShowCmd())
	return cmd
}

func newScheduleSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Validate and store a schedule. Nothing is sent.",
		Example: `  riskctl schedule save --frequency weekly --time 09:00 --day-of-week Lundi \
      --channel teams --students EPI-BDX-00002,EPI-BDX-00006 --title "Point hebdo"
  riskctl schedule save --file schedule.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := scheduleFromFlags(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Schedules.SaveSchedule(cmd.Context(), schedule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule saved (%s at %s, %d student(s)) to the %s store\n",
				schedule.Frequency, schedule.Time, len(schedule.Students), a.Config.Schedule.Store)
			return nil
		},
	}

	cmd.Flags().String("file", "", "Read the schedule from a YAML file instead of flags")
	cmd.Flags().String("frequency", models.FrequencyWeekly, "daily, weekly or monthly")
	cmd.Flags().String("time", "09:00", "Time of day, HH:MM")
	cmd.Flags().String("day-of-week", "", "Weekday for weekly schedules (Lundi..Vendredi)")
	cmd.Flags().Int("day-of-month", 0, "Day for monthly schedules (1-28)")
	cmd.Flags().String("channel", models.ScheduleChannelBoth, "email, teams or both")
	cmd.Flags().StringSlice("students", nil, "Student ids the schedule covers")
	cmd.Flags().String("title", "", "Alert title")
	cmd.Flags().String("message", "", "Optional message")
	return cmd
}

func scheduleFromFlags(cmd *cobra.Command) (*models.ScheduleConfig, error) {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schedule: %w", err)
		}
		var schedule models.ScheduleConfig
		if err := yaml.Unmarshal(data, &schedule); err != nil {
			return nil, fmt.Errorf("parse schedule %s: %w", path, err)
		}
		return &schedule, nil
	}

	flags := cmd.Flags()
	s := &models.ScheduleConfig{}
	s.Frequency, _ = flags.GetString("frequency")
	s.Time, _ = flags.GetString("time")
	s.DayOfWeek, _ = flags.GetString("day-of-week")
	s.DayOfMonth, _ = flags.GetInt("day-of-month")
	s.ChannelType, _ = flags.GetString("channel")
	s.Students, _ = flags.GetStringSlice("students")
	s.Title, _ = flags.GetString("title")
	s.Message, _ = flags.GetString("message")
	return s, nil
}

func newScheduleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored schedule as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			schedule, err := a.Schedules.LoadSchedule(cmd.Context())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(schedule)
		},
	}
}
