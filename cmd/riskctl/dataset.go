package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dropout-alerts/internal/dataset"
)

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Work with the student dataset",
	}
	cmd.AddCommand(newDatasetGenerateCmd())
	return cmd
}

func newDatasetGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic student dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("n")
			seed, _ := cmd.Flags().GetUint64("seed")
			out, _ := cmd.Flags().GetString("out")

			if out == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				out = cfg.Scoring.DatasetPath
			}

			records := dataset.Generate(dataset.Options{Students: n, Seed: seed})
			if err := dataset.Save(out, records); err != nil {
				return fmt.Errorf("write dataset: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d students to %s\n", len(records), out)
			return nil
		},
	}
	cmd.Flags().Int("n", dataset.DefaultStudents, "Number of students")
	cmd.Flags().Uint64("seed", dataset.DefaultSeed, "Random seed")
	cmd.Flags().String("out", "", "Output CSV (defaults to scoring.dataset_path)")
	return cmd
}
