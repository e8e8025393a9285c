package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dropout-alerts/internal/app"
	"dropout-alerts/internal/common/config"
	"dropout-alerts/internal/common/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "riskctl",
		Short:         "Score students for dropout risk and dispatch alerts",
		Long:          "riskctl runs the dropout risk pipeline from the terminal: scoring, per-student detail, alert sending and schedule management.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("config", "", "Path to a config file (defaults to configs/config.yaml)")
	root.PersistentFlags().String("log-level", "", "Override logging.level")

	root.AddCommand(newScoreCmd())
	root.AddCommand(newStudentCmd())
	root.AddCommand(newAlertCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newDatasetCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newProcessCmd())
	return root
}

// loadConfig reads --config when given, otherwise the default search path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// openApp loads the config and builds the components a command needs. The
// caller closes the returned App.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialise: %w", err)
	}
	return a, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
