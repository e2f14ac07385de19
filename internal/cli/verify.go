package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/db"
	"github.com/sparkifydata/sparkify-etl/internal/logging"
	"github.com/sparkifydata/sparkify-etl/internal/pipeline"
	"github.com/sparkifydata/sparkify-etl/internal/storage"
)

var verifySkipS3 bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check warehouse state after a pipeline run",
	Long: `Run consistency checks against the loaded warehouse: row counts for the
staging and fact tables, duplicate natural keys in the dimension tables,
and songplays rows whose non-null references are missing from their
dimension. It also counts the source objects under the configured S3
prefixes for comparison with the staging row counts.

Verification reports problems; it never repairs them.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifySkipS3, "skip-s3", false,
		"skip counting source objects in S3")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	conn, err := db.Connect(ctx, cfg.ConnString(), cfg.Dialect)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer conn.Close(ctx)

	results, err := pipeline.RunChecks(ctx, conn)
	if err != nil {
		return err
	}

	var failed []string
	for _, res := range results {
		event := logging.Info()
		if res.Failed() {
			event = logging.Error()
			failed = append(failed, res.Check.Name)
		}
		event.
			Str("check", res.Check.Name).
			Str("count", humanize.Comma(res.Count)).
			Msg(res.Check.Description)
	}

	if !verifySkipS3 {
		if err := reportSourceObjects(ctx); err != nil {
			logging.Warn().Err(err).Msg("Could not count source objects in S3")
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("verification failed: %s", strings.Join(failed, ", "))
	}

	logging.Info().Msg("Verification passed")
	return nil
}

// reportSourceObjects logs how many objects sit under each configured S3
// prefix. Each object holds one or more NDJSON lines, so the staging row
// counts should be at least as large as these.
func reportSourceObjects(ctx context.Context) error {
	if !strings.HasPrefix(cfg.S3.LogData, "s3://") ||
		!strings.HasPrefix(cfg.S3.SongData, "s3://") {
		return fmt.Errorf("s3.log_data and s3.song_data are not both s3:// URIs")
	}

	client, err := storage.New(ctx, cfg.S3.Region)
	if err != nil {
		return err
	}

	for name, uri := range map[string]string{
		"log_data":  cfg.S3.LogData,
		"song_data": cfg.S3.SongData,
	} {
		count, err := client.CountObjects(ctx, uri)
		if err != nil {
			return err
		}
		logging.Info().
			Str("prefix", uri).
			Str("objects", humanize.Comma(count)).
			Msgf("Source objects under %s", name)
	}
	return nil
}
