package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/db"
)

var resetRuns bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate the managed tables",
	Long: `Drop and recreate the two staging tables, four dimension tables, and
the songplays fact table. Any existing data in them is destroyed. Running
reset twice in a row leaves an identical empty schema.

Run history in etl_runs is kept unless --runs is given.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetRuns, "runs", false, "also drop the run history table")
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	conn, err := db.Connect(ctx, cfg.ConnString(), cfg.Dialect)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer conn.Close(ctx)

	runner, err := newRunner(conn, false)
	if err != nil {
		return err
	}
	if err := runner.ResetSchema(ctx); err != nil {
		return err
	}

	if resetRuns {
		if err := db.DropRuns(ctx, conn); err != nil {
			return fmt.Errorf("failed to drop run history: %w", err)
		}
	}
	return nil
}
