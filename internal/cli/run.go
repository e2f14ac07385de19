package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/db"
	"github.com/sparkifydata/sparkify-etl/internal/logging"
)

var runNoProgress bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: reset schema, load staging, populate targets",
	Long: `Run the full ETL pipeline over one warehouse connection:

  1. Drop and recreate the seven managed tables (destroys existing data).
  2. COPY event logs and song metadata from S3 into the staging tables.
  3. INSERT...SELECT the four dimension tables, then the songplays fact table.

The COPY phase can take minutes; the warehouse streams directly from S3.
Nothing is retried: the first failing statement stops the run and tables
keep whatever state the warehouse left them in. Re-running is safe because
the schema is reset from scratch each time.

Example:
  sparkify-etl run --config sparkify-etl.yaml`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runNoProgress, "no-progress", false,
		"disable the terminal progress bar")
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateLoad(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(ctx, cfg.ConnString(), cfg.Dialect)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer conn.Close(ctx)

	runner, err := newRunner(conn, !runNoProgress)
	if err != nil {
		return err
	}

	start := time.Now()
	logging.Info().
		Str("log_data", cfg.S3.LogData).
		Str("song_data", cfg.S3.SongData).
		Msg("Starting ETL run")

	if err := runner.Run(ctx); err != nil {
		return err
	}

	logging.Info().
		Dur("elapsed", time.Since(start)).
		Msg("ETL run complete")
	return nil
}
