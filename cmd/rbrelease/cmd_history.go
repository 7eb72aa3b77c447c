package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(global *globalOptions) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded release runs",
		Example: `  rbrelease history
  rbrelease history --limit 5
  rbrelease history --run 3f0c9a7e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			journal, err := openJournal(global.journalPath)
			if err != nil {
				return err
			}
			//nolint:errcheck // Defer close
			defer journal.Close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			if runID != "" {
				steps, err := journal.Steps(ctx, runID)
				if err != nil {
					return err
				}
				if len(steps) == 0 {
					return fmt.Errorf("no steps recorded for run %s", runID)
				}
				rows := make([][]string, 0, len(steps))
				for _, step := range steps {
					rows = append(rows, []string{step.Step, step.Status, step.Message, step.RecordedAt.Local().Format(time.DateTime)})
				}
				fmt.Fprintln(out, renderTable([]string{"Step", "Status", "Detail", "Recorded"}, rows, nil))
				return nil
			}

			runs, err := journal.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No releases recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				duration := "-"
				if run.FinishedAt != nil {
					duration = formatDuration(run.FinishedAt.Sub(run.StartedAt))
				}
				version := run.Version
				if version == "" {
					version = "-"
				}
				rows = append(rows, []string{run.ID, version, run.Status, run.StartedAt.Local().Format(time.DateTime), duration})
			}
			fmt.Fprintln(out, renderTable([]string{"Run", "Version", "Status", "Started", "Duration"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the steps of one run")
	return cmd
}
