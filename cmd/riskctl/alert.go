package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dropout-alerts/internal/alerting"
	"dropout-alerts/internal/models"
)

func newAlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Send alerts about at-risk students",
	}
	cmd.AddCommand(newAlertSendCmd())
	return cmd
}

func newAlertSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one alert now",
		Example: `  riskctl alert send --mode critical_only --channels teams
  riskctl alert send --mode manual --students EPI-BDX-00002,EPI-BDX-00006 --channels email,ses`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _ := cmd.Flags().GetString("mode")
			ids, _ := cmd.Flags().GetStringSlice("students")
			channelList, _ := cmd.Flags().GetString("channels")
			title, _ := cmd.Flags().GetString("title")
			message, _ := cmd.Flags().GetString("message")
			asJSON, _ := cmd.Flags().GetBool("json")

			selection := models.SelectionMode(mode)
			if !selection.IsValid() {
				return fmt.Errorf("%w: %q", alerting.ErrInvalidSelection, mode)
			}
			channels, err := alerting.ParseChannels(channelList)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Orchestrator.SendAlert(cmd.Context(), alerting.SendRequest{
				Mode:       selection,
				StudentIDs: ids,
				Channels:   channels,
				Title:      title,
				Message:    message,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}

			fmt.Fprintf(out, "Alert %s\n%s\n%d student(s)\n\n", report.AlertID, report.Title, len(report.Students))
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANNEL\tSTATUS\tMESSAGE")
			for _, r := range report.Results {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Channel, resultStatus(r), r.Message)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("mode", string(models.SelectAllAtRisk), "all_at_risk, critical_only or manual")
	cmd.Flags().StringSlice("students", nil, "Student ids for manual mode")
	cmd.Flags().String("channels", alerting.ChannelBoth, "Comma separated channels: email, teams, ses, sms or both")
	cmd.Flags().String("title", "", "Alert title (defaults to the generated one)")
	cmd.Flags().String("message", "", "Free text sent instead of the structured digest")
	cmd.Flags().Bool("json", false, "Print the delivery report as JSON")
	return cmd
}

func resultStatus(r models.DeliveryResult) string {
	switch {
	case r.Success:
		return "sent"
	case r.Skipped:
		return "skipped"
	default:
		return "failed"
	}
}
