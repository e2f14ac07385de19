package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sparkifydata/sparkify-etl/internal/datagen"
	"github.com/sparkifydata/sparkify-etl/internal/logging"
	"github.com/sparkifydata/sparkify-etl/internal/storage"
)

var (
	seedEvents     int
	seedSongs      int
	seedFiles      int
	seedRandomSeed uint64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic source data and upload it to S3",
	Long: `Generate Sparkify-shaped source data - song metadata documents and app
event log lines - and upload it as newline-delimited JSON under the
configured S3 prefixes, creating the buckets if they do not exist. A share
of generated events reference generated songs so the fact-table join
produces matches. The JSONPaths file for the event COPY is uploaded to the
configured s3.log_jsonpath location.

Example:
  sparkify-etl seed --events 5000 --songs 500 --random-seed 42`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedEvents, "events", 0,
		"number of event log lines to generate")
	seedCmd.Flags().IntVar(&seedSongs, "songs", 0,
		"number of song metadata documents to generate")
	seedCmd.Flags().IntVar(&seedFiles, "files", 0,
		"number of files to split the event lines across")
	seedCmd.Flags().Uint64Var(&seedRandomSeed, "random-seed", 0,
		"seed for reproducible generation (0 = random)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if seedEvents > 0 {
		cfg.Seed.Events = seedEvents
	}
	if seedSongs > 0 {
		cfg.Seed.Songs = seedSongs
	}
	if seedFiles > 0 {
		cfg.Seed.Files = seedFiles
	}
	if seedRandomSeed != 0 {
		cfg.Seed.RandomSeed = seedRandomSeed
	}

	if err := cfg.ValidateSeed(); err != nil {
		return err
	}

	gen := datagen.NewGenerator()
	if cfg.Seed.RandomSeed != 0 {
		gen = datagen.NewGeneratorWithSeed(cfg.Seed.RandomSeed)
	}

	songs := gen.Songs(cfg.Seed.Songs)
	events := gen.Events(cfg.Seed.Events, songs)

	ctx := cmd.Context()
	client, err := storage.New(ctx, cfg.S3.Region)
	if err != nil {
		return err
	}

	if err := ensureBuckets(cmd, client); err != nil {
		return err
	}

	// Song metadata, batched into files under the song_data prefix.
	const songsPerFile = 100
	for i := 0; i < len(songs); i += songsPerFile {
		chunk := songs[i:min(i+songsPerFile, len(songs))]
		body, err := datagen.EncodeNDJSON(chunk)
		if err != nil {
			return fmt.Errorf("failed to encode song data: %w", err)
		}
		uri := storage.JoinURI(cfg.S3.SongData, fmt.Sprintf("part-%04d.json", i/songsPerFile))
		if err := client.Upload(ctx, uri, body); err != nil {
			return err
		}
	}

	// Event logs, split across the configured number of files.
	perFile := (len(events) + cfg.Seed.Files - 1) / cfg.Seed.Files
	for i := 0; i < cfg.Seed.Files; i++ {
		lo := i * perFile
		if lo >= len(events) {
			break
		}
		chunk := events[lo:min(lo+perFile, len(events))]
		body, err := datagen.EncodeNDJSON(chunk)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		uri := storage.JoinURI(cfg.S3.LogData, "2018", "11", fmt.Sprintf("events-%04d.json", i))
		if err := client.Upload(ctx, uri, body); err != nil {
			return err
		}
	}

	// JSONPaths file used by the staging_events COPY.
	if cfg.S3.LogJSONPath != "" {
		if err := client.Upload(ctx, cfg.S3.LogJSONPath, []byte(datagen.EventJSONPaths)); err != nil {
			return err
		}
	}

	logging.Info().
		Str("events", humanize.Comma(int64(len(events)))).
		Str("songs", humanize.Comma(int64(len(songs)))).
		Str("log_data", cfg.S3.LogData).
		Str("song_data", cfg.S3.SongData).
		Msg("Seed data uploaded")
	return nil
}

func ensureBuckets(cmd *cobra.Command, client *storage.Client) error {
	seen := map[string]bool{}
	for _, uri := range []string{cfg.S3.LogData, cfg.S3.SongData, cfg.S3.LogJSONPath} {
		if uri == "" {
			continue
		}
		bucket, _, err := storage.ParseURI(uri)
		if err != nil {
			return err
		}
		if seen[bucket] {
			continue
		}
		seen[bucket] = true
		if err := client.EnsureBucket(cmd.Context(), bucket); err != nil {
			return err
		}
	}
	return nil
}
