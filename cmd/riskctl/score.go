package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dropout-alerts/internal/models"
	"dropout-alerts/internal/scoring"
)

// scoredRow is the JSON form of one student in command output. Missing
// numeric fields are reported as zero.
type scoredRow struct {
	ID        string          `json:"id"`
	Program   string          `json:"program"`
	Year      int             `json:"year,omitempty"`
	RiskScore float64         `json:"riskScore"`
	Dropout   int             `json:"dropoutPredicted"`
	Tier      models.RiskTier `json:"tier"`
}

func toRow(s models.ScoredStudent) scoredRow {
	year := 0
	if !math.IsNaN(s.Student.Year) {
		year = int(s.Student.Year)
	}
	return scoredRow{
		ID:        s.Student.ID,
		Program:   s.Student.Program,
		Year:      year,
		RiskScore: s.Assessment.RiskScore,
		Dropout:   s.Assessment.DropoutLabel,
		Tier:      s.Assessment.Tier(),
	}
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the dataset and list students by risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			program, _ := cmd.Flags().GetString("program")
			year, _ := cmd.Flags().GetInt("year")
			tierFlag, _ := cmd.Flags().GetString("tier")
			limit, _ := cmd.Flags().GetInt("limit")
			all, _ := cmd.Flags().GetBool("all")
			asJSON, _ := cmd.Flags().GetBool("json")

			tier, err := parseTier(tierFlag)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			students, err := a.Cache.All(cmd.Context())
			if err != nil {
				return fmt.Errorf("score students: %w", err)
			}
			filtered := scoring.Filter(students, scoring.Criteria{Program: program, Year: year, Tier: tier})
			summary := scoring.Summarize(filtered)

			var rows []scoredRow
			for _, s := range filtered {
				if !all && !s.Assessment.AtRisk() {
					continue
				}
				if limit > 0 && len(rows) >= limit {
					break
				}
				rows = append(rows, toRow(s))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]interface{}{
					"summary":  summary,
					"students": rows,
					"failed":   a.Cache.Failures(),
				})
			}
			printSummary(out, summary)
			printRows(out, rows)
			if failed := a.Cache.Failures(); len(failed) > 0 {
				fmt.Fprintf(out, "\n%d student(s) could not be scored: %s\n", len(failed), strings.Join(failed, ", "))
			}
			return nil
		},
	}

	cmd.Flags().String("program", "", "Only students of this program")
	cmd.Flags().Int("year", 0, "Only students of this study year")
	cmd.Flags().String("tier", "", "Only students of this tier (critical, high, moderate, low)")
	cmd.Flags().Int("limit", 20, "Maximum students listed, 0 for no limit")
	cmd.Flags().Bool("all", false, "List low-risk students too")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

// parseTier accepts the English names as well as the dashboard labels.
func parseTier(s string) (models.RiskTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "critical", "critique":
		return models.TierCritical, nil
	case "high", "élevé", "eleve":
		return models.TierHigh, nil
	case "moderate", "modéré", "modere":
		return models.TierModerate, nil
	case "low", "faible":
		return models.TierLow, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

func printSummary(w io.Writer, s scoring.Summary) {
	fmt.Fprintf(w, "Students:           %d\n", s.Total)
	fmt.Fprintf(w, "At risk:            %d\n", s.AtRisk())
	fmt.Fprintf(w, "Predicted dropouts: %d\n", s.PredictedDropouts)
	fmt.Fprintf(w, "Mean risk:          %.1f%%\n", s.MeanRiskPercent)
	fmt.Fprintf(w, "%s %d  %s %d  %s %d  %s %d\n\n",
		scoring.LevelOf(models.TierCritical).Icon, s.Critical,
		scoring.LevelOf(models.TierHigh).Icon, s.High,
		scoring.LevelOf(models.TierModerate).Icon, s.Moderate,
		scoring.LevelOf(models.TierLow).Icon, s.Low,
	)
}

func printRows(w io.Writer, rows []scoredRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No students match.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROGRAM\tYEAR\tRISK\tTIER")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\t%s %s\n",
			r.ID, r.Program, r.Year, r.RiskScore*100, scoring.LevelOf(r.Tier).Icon, r.Tier)
	}
	_ = tw.Flush()
}
