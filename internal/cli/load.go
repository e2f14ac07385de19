package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/db"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "COPY source data from S3 into the staging tables",
	Long: `Issue the two COPY statements that bulk-load newline-delimited JSON
from the configured S3 prefixes into staging_events and staging_songs.
The staging tables must already exist (run 'reset' first). Loading appends;
re-running without a reset duplicates staging rows.`,
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateLoad(); err != nil {
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
	return runner.LoadStaging(ctx)
}
