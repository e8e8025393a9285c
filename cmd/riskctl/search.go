package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dropout-alerts/internal/app"
	"dropout-alerts/internal/search"
)

var errSearchDisabled = errors.New("search is disabled or Elasticsearch is unreachable (see search.enabled)")

func requireIndex(a *app.App) (*search.AssessmentIndex, error) {
	if a.Index == nil {
		return nil, errSearchDisabled
	}
	return a.Index, nil
}

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Score the dataset and push every assessment to Elasticsearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			idx, err := requireIndex(a)
			if err != nil {
				return err
			}
			students, err := a.Cache.All(cmd.Context())
			if err != nil {
				return fmt.Errorf("score students: %w", err)
			}
			if err := idx.Index(cmd.Context(), students); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d students into %s\n", len(students), a.Config.Search.Index)
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query indexed assessments by tier, program or year",
		RunE: func(cmd *cobra.Command, args []string) error {
			program, _ := cmd.Flags().GetString("program")
			year, _ := cmd.Flags().GetInt("year")
			tierFlag, _ := cmd.Flags().GetString("tier")
			size, _ := cmd.Flags().GetInt("size")
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

			idx, err := requireIndex(a)
			if err != nil {
				return err
			}
			docs, total, err := idx.Search(cmd.Context(), search.Query{Tier: tier, Program: program, Year: year, Size: size})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]interface{}{"total": total, "students": docs})
			}
			fmt.Fprintf(out, "%d match(es)\n", total)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROGRAM\tRISK\tTIER\tINDEXED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%s\t%s\n",
					d.StudentID, d.Program, d.RiskScore*100, d.Tier, d.IndexedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("program", "", "Only students of this program")
	cmd.Flags().Int("year", 0, "Only students of this study year")
	cmd.Flags().String("tier", "", "Only students of this tier")
	cmd.Flags().Int("size", 20, "Maximum hits")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}
