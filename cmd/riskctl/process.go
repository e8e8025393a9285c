package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dropout-alerts/internal/common/camunda"
)

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Drive the BPMN processes on the Zeebe broker",
	}
	cmd.AddCommand(newProcessStartCmd())
	return cmd
}

func newProcessStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start <bpmn-process-id>",
		Short:   "Start a process instance",
		Example: `  riskctl process start dropout-alert --var mode=critical_only --var channels=teams`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetStringToString("var")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireBroker(); err != nil {
				return err
			}

			client, err := camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
			if err != nil {
				return err
			}
			defer client.Close()

			key, err := client.StartProcess(cmd.Context(), args[0], processVariables(raw))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s, instance %d\n", args[0], key)
			return nil
		},
	}
	cmd.Flags().StringToString("var", nil, "Process variable key=value (repeatable)")
	return cmd
}

// processVariables turns flag strings into typed variables: booleans and
// integers are converted, everything else stays a string.
func processVariables(raw map[string]string) map[string]interface{} {
	vars := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if n, err := strconv.Atoi(v); err == nil {
			vars[k] = n
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			vars[k] = b
			continue
		}
		vars[k] = v
	}
	return vars
}
