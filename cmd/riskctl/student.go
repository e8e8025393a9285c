package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

func newStudentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student <id>",
		Short: "Show one student's assessment and recommendations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Cache.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			detail := scoring.Detail(s)

			fields := make(map[string]string)
			for _, name := range models.Columns() {
				if v, ok := s.Student.Field(name); ok {
					fields[name] = v.String()
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]interface{}{
					"student":         fields,
					"assessment":      detail.Assessment,
					"level":           detail.Level,
					"recommendations": detail.Recommendations,
				})
			}

			fmt.Fprintf(out, "%s %s  (%s)\n", detail.Level.Icon, s.Student.ID, detail.Level.Tier)
			fmt.Fprintf(out, "Risk score:          %.1f%%\n", detail.Assessment.RiskScore*100)
			fmt.Fprintf(out, "Dropout probability: %.1f%%\n", detail.Assessment.DropoutProbability*100)
			fmt.Fprintf(out, "Dropout predicted:   %v\n\n", detail.Assessment.DropoutLabel == 1)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, name := range models.Columns() {
				if v, ok := fields[name]; ok {
					fmt.Fprintf(tw, "%s\t%s\n", name, v)
				}
			}
			_ = tw.Flush()

			fmt.Fprintln(out, "\nRecommendations:")
			for _, r := range detail.Recommendations {
				fmt.Fprintf(out, "  - %s\n", r)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print JSON instead of text")
	return cmd
}
