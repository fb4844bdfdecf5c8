package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/montiglio/graphbench/internal/config"
	"github.com/montiglio/graphbench/internal/report"
	"github.com/montiglio/graphbench/internal/store"
	"github.com/montiglio/graphbench/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent benchmark runs",
	Long: `Lists recent runs from the results database (--db), or the trials of one run
when a run ID is given. Without a database, the history section of the TOML
report (--report) is shown instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyCmd.Flags().String("report", "", "TOML run report path")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	printer := ui.New()

	if cfg.DB == "" {
		path, _ := cmd.Flags().GetString("report")
		if path == "" {
			path = cfg.Report
		}
		if path == "" {
			return errors.New("history: set db or report")
		}
		run, hist, err := report.Load(path)
		if err != nil {
			return err
		}
		printer.ReportHistory(run, hist)
		return nil
	}

	db, err := store.NewSQLiteStore(cmd.Context(), cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		trials, err := db.Trials(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printer.Trials(trials)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := db.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	printer.Runs(runs)
	return nil
}
