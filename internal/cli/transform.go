package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/db"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Populate the star schema from the staging tables",
	Long: `Issue the INSERT...SELECT statements that populate users, time, songs,
and artists from staging, then songplays last since its SELECT joins the
songs and artists dimensions. All transformation logic (timestamp
expansion, deduplication, join predicates) runs warehouse-side.`,
	RunE: runTransform,
}

func runTransform(cmd *cobra.Command, args []string) error {
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
	return runner.PopulateTargets(ctx)
}
