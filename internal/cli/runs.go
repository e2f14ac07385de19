package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/db"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent pipeline runs",
	Long: `Show the most recent pipeline runs recorded in the etl_runs table,
newest first. Run history survives schema resets.`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "maximum number of runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	conn, err := db.Connect(ctx, cfg.ConnString(), cfg.Dialect)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer conn.Close(ctx)

	runs, err := db.LastRuns(ctx, conn, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No recorded runs.")
		return nil
	}

	cmd.Printf("%-36s  %-12s  %-10s  %-8s  %-20s  %s\n",
		"RUN ID", "PHASE", "STATUS", "VERSION", "STARTED", "DURATION")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		ver := "-"
		if r.Version != nil {
			ver = *r.Version
		}
		cmd.Printf("%-36s  %-12s  %-10s  %-8s  %-20s  %s\n",
			r.ID, r.Phase, r.Status, ver,
			r.StartedAt.Format("2006-01-02 15:04:05"), duration)
	}
	return nil
}
