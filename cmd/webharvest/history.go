package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/webharvest/webharvest/internal/config"
	"github.com/webharvest/webharvest/internal/model"
	"github.com/webharvest/webharvest/internal/storage"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show past runs from the local database",
		Long: `History lists the runs stored in the local result database, newest
first. With a target name or URL, only that target's runs are shown.

Use --records with a run ID to print that run's extracted records as CSV.

Examples:
  # All stored runs
  webharvest history

  # Runs for one target
  webharvest history books

  # Records of run 12 as CSV
  webharvest history --records 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("records", 0, "Print the records of the given run ID as CSV")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	runID, err := cmd.Flags().GetInt64("records")
	if err != nil {
		return err
	}

	// History is read-only: require an existing database.
	db, err := storage.Open(config.XDGDataDir(), storage.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no run history yet: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if runID > 0 {
		return printRunRecords(ctx, cmd, db, runID)
	}

	target := ""
	if len(args) == 1 {
		target = args[0]
	}

	runs, err := db.RunHistory(ctx, target)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTARGET\tOUTCOME\tRECORDS\tPAGES\tFAILURE\tSTARTED\tELAPSED")
	for _, run := range runs {
		failure := run.FailureKind
		if failure == "" {
			failure = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			run.ID,
			run.Target,
			run.Outcome,
			run.RecordCount,
			run.PagesVisited,
			failure,
			run.StartedAt.Format("2006-01-02 15:04"),
			run.Elapsed.Round(1e6),
		)
	}
	return w.Flush()
}

// printRunRecords prints one stored run's records as CSV.
func printRunRecords(ctx context.Context, cmd *cobra.Command, db *storage.ResultDB, runID int64) error {
	records, err := db.RecordsForRun(ctx, runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %d has no records.\n", runID)
		return nil
	}

	result := &model.RunResult{Records: records}
	_, err = storage.NewCSVWriter(cmd.OutOrStdout()).Write(result)
	return err
}
