//go:build integration
// +build integration

// Integration tests for the pipeline against live PostgreSQL.
// Run with: go test -tags=integration ./internal/pipeline/...
// Set SPARKIFY_TEST_CONN to override the connection string.
//
// Stock PostgreSQL cannot COPY from S3, so these tests use the postgres
// dialect, insert staging fixtures directly, and exercise the reset,
// transform, and verification phases. The COPY statement text is covered
// by unit tests.

package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sparkifydata/sparkify-etl/internal/config"
	"github.com/sparkifydata/sparkify-etl/internal/db"
	"github.com/sparkifydata/sparkify-etl/internal/pipeline"
	"github.com/sparkifydata/sparkify-etl/internal/testutil"
	"github.com/sparkifydata/sparkify-etl/pkg/version"
)

type stagingEvent struct {
	artist string
	song   string
	length *float64
	page   string
	level  string
	ts     int64
	userID *int
}

type stagingSong struct {
	songID   string
	title    string
	artistID string
	artist   string
	location string
	duration float64
	year     int
}

func f64(v float64) *float64 { return &v }
func ip(v int) *int          { return &v }

// Fixture: two catalog songs (one duplicated in staging), two listening
// users (one upgrading from free to paid mid-window), one anonymous event,
// and one non-play page view.
var (
	fixtureSongs = []stagingSong{
		{songID: "SOFIRE123456", title: "Set Fire to the Rain", artistID: "ARADELE00001",
			artist: "Adele", location: "London, England", duration: 235.0, year: 2011},
		{songID: "SOFIRE123456", title: "Set Fire to the Rain", artistID: "ARADELE00001",
			artist: "Adele", location: "Tottenham, London", duration: 235.0, year: 2011},
		{songID: "SOJUDE654321", title: "Hey Jude", artistID: "ARBEATLE0001",
			artist: "The Beatles", location: "Liverpool, England", duration: 431.0, year: 1968},
	}

	fixtureEvents = []stagingEvent{
		{artist: "Adele", song: "Set Fire to the Rain", length: f64(235.0),
			page: "NextSong", level: "free", ts: 1541990210000, userID: ip(1)},
		{artist: "Some Garage Band", song: "Unreleased Demo", length: f64(180.5),
			page: "NextSong", level: "paid", ts: 1541990220000, userID: ip(1)},
		{artist: "The Beatles", song: "Hey Jude", length: f64(431.0),
			page: "NextSong", level: "paid", ts: 1541990230000, userID: ip(2)},
		{artist: "Another Band", song: "Filler Track", length: f64(201.0),
			page: "NextSong", level: "paid", ts: 1541990240000, userID: ip(2)},
		{artist: "Third Band", song: "Background Noise", length: f64(150.0),
			page: "NextSong", level: "paid", ts: 1541990250000, userID: ip(2)},
		{artist: "Mystery Artist", song: "Anonymous Play", length: f64(90.0),
			page: "NextSong", level: "free", ts: 1541990260000, userID: nil},
		{page: "Home", level: "paid", ts: 1541990270000, userID: ip(1)},
	}
)

const (
	fixtureNextSongCount = 6
	fixtureUserCount     = 2
	fixtureMatchedPlays  = 2
)

func loadFixtures(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	for _, s := range fixtureSongs {
		_, err := pool.Exec(ctx, `
            INSERT INTO staging_songs
                (num_songs, artist_id, artist_location, artist_name, song_id, title, duration, year)
            VALUES (1, $1, $2, $3, $4, $5, $6, $7)
        `, s.artistID, s.location, s.artist, s.songID, s.title, s.duration, s.year)
		if err != nil {
			t.Fatalf("Failed to insert staging song: %v", err)
		}
	}

	for i, e := range fixtureEvents {
		_, err := pool.Exec(ctx, `
            INSERT INTO staging_events
                (artist, auth, first_name, gender, item_in_session, last_name, length,
                 level, location, method, page, registration, session_id, song, status,
                 ts, user_agent, user_id)
            VALUES ($1, 'Logged In', 'Test', 'F', $2, 'Listener', $3,
                    $4, 'San Francisco, CA', 'PUT', $5, 1540000000000, $6, $7, 200,
                    $8, 'Mozilla/5.0', $9)
        `, e.artist, i, e.length, e.level, e.page, 100+i, e.song, e.ts, e.userID)
		if err != nil {
			t.Fatalf("Failed to insert staging event: %v", err)
		}
	}
}

func rowCount(t *testing.T, ctx context.Context, pool *pgxpool.Pool, table string) int64 {
	t.Helper()
	var count int64
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return count
}

func newIntegrationRunner(t *testing.T, pool *pgxpool.Pool, track bool) *pipeline.Runner {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Cluster.Host = "localhost"
	cfg.Cluster.User = "test"
	cfg.Dialect = "postgres"
	cfg.IAMRole.ARN = "arn:aws:iam::123456789012:role/sparkify-copy"
	cfg.S3.LogData = "s3://sparkify-source/log_data"
	cfg.S3.LogJSONPath = "s3://sparkify-source/log_json_path.json"
	cfg.S3.SongData = "s3://sparkify-source/song_data"

	runner, err := pipeline.NewRunner(pipeline.RunnerConfig{
		DB:        pool,
		Config:    cfg,
		Dialect:   pipeline.DialectPostgres,
		TrackRuns: track,
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return runner
}

func TestPipelineIntegration(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)
	testConnStr := testutil.CreateTestDB(t, baseConnStr)
	dbName := testutil.GetDBNameFromConnStr(testConnStr)

	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	t.Cleanup(cleanup.Cleanup)

	pool := testutil.ConnectTestDB(t, testConnStr)
	cleanup.SetPool(pool)

	ctx := context.Background()
	runner := newIntegrationRunner(t, pool, true)

	t.Run("ResetSchemaIdempotent", func(t *testing.T) {
		if err := runner.ResetSchema(ctx); err != nil {
			t.Fatalf("ResetSchema failed: %v", err)
		}
		if err := runner.ResetSchema(ctx); err != nil {
			t.Fatalf("Second ResetSchema failed: %v", err)
		}
		for _, table := range pipeline.AllTables() {
			if count := rowCount(t, ctx, pool, table); count != 0 {
				t.Errorf("Table %s should be empty after reset, has %d rows", table, count)
			}
		}
	})

	t.Run("TransformBeforeLoadYieldsNoRows", func(t *testing.T) {
		if err := runner.PopulateTargets(ctx); err != nil {
			t.Fatalf("PopulateTargets on empty staging failed: %v", err)
		}
		for _, table := range pipeline.TargetTables() {
			if count := rowCount(t, ctx, pool, table); count != 0 {
				t.Errorf("Table %s should be empty without staged data, has %d rows", table, count)
			}
		}
	})

	t.Run("LoadFixtures", func(t *testing.T) {
		if err := runner.ResetSchema(ctx); err != nil {
			t.Fatalf("ResetSchema failed: %v", err)
		}
		loadFixtures(t, ctx, pool)

		if count := rowCount(t, ctx, pool, "staging_events"); count != int64(len(fixtureEvents)) {
			t.Errorf("staging_events has %d rows, want %d", count, len(fixtureEvents))
		}
		if count := rowCount(t, ctx, pool, "staging_songs"); count != int64(len(fixtureSongs)) {
			t.Errorf("staging_songs has %d rows, want %d", count, len(fixtureSongs))
		}
	})

	t.Run("PopulateTargets", func(t *testing.T) {
		if err := runner.PopulateTargets(ctx); err != nil {
			t.Fatalf("PopulateTargets failed: %v", err)
		}

		if count := rowCount(t, ctx, pool, "users"); count != fixtureUserCount {
			t.Errorf("users has %d rows, want %d", count, fixtureUserCount)
		}

		// User 1 played on free, then upgraded; the dimension keeps the
		// latest level.
		var level string
		err := pool.QueryRow(ctx, "SELECT level FROM users WHERE user_id = 1").Scan(&level)
		if err != nil {
			t.Fatalf("Failed to read user 1: %v", err)
		}
		if level != "paid" {
			t.Errorf("User 1 level = %q, want 'paid'", level)
		}

		// Duplicate staging song collapses to one catalog row.
		if count := rowCount(t, ctx, pool, "songs"); count != 2 {
			t.Errorf("songs has %d rows, want 2", count)
		}
		if count := rowCount(t, ctx, pool, "artists"); count != 2 {
			t.Errorf("artists has %d rows, want 2", count)
		}

		if count := rowCount(t, ctx, pool, "songplays"); count != fixtureNextSongCount {
			t.Errorf("songplays has %d rows, want %d", count, fixtureNextSongCount)
		}

		var matched int64
		err = pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM songplays WHERE song_id IS NOT NULL").Scan(&matched)
		if err != nil {
			t.Fatalf("Failed to count matched plays: %v", err)
		}
		if matched != fixtureMatchedPlays {
			t.Errorf("%d plays matched the catalog, want %d", matched, fixtureMatchedPlays)
		}

		// One time row per distinct NextSong timestamp.
		if count := rowCount(t, ctx, pool, "time"); count != fixtureNextSongCount {
			t.Errorf("time has %d rows, want %d", count, fixtureNextSongCount)
		}
	})

	t.Run("ChecksPass", func(t *testing.T) {
		results, err := pipeline.RunChecks(ctx, pool)
		if err != nil {
			t.Fatalf("RunChecks failed: %v", err)
		}
		for _, res := range results {
			if res.Failed() {
				t.Errorf("Check %s failed with count %d", res.Check.Name, res.Count)
			}
		}
	})

	t.Run("RunsRecorded", func(t *testing.T) {
		var pending int64
		err := pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM etl_runs WHERE status = 'running'").Scan(&pending)
		if err != nil {
			t.Fatalf("Failed to read etl_runs: %v", err)
		}
		if pending != 0 {
			t.Errorf("%d runs left in 'running' state", pending)
		}
		if count := rowCount(t, ctx, pool, "etl_runs"); count == 0 {
			t.Error("Expected recorded runs in etl_runs")
		}

		runs, err := db.LastRuns(ctx, pool, 10)
		if err != nil {
			t.Fatalf("LastRuns failed: %v", err)
		}
		if len(runs) == 0 {
			t.Fatal("LastRuns returned no runs")
		}
		for _, r := range runs {
			if r.Status != "completed" {
				t.Errorf("Run %s (%s) has status %q", r.ID, r.Phase, r.Status)
			}
			if r.FinishedAt == nil {
				t.Errorf("Run %s has no finish time", r.ID)
			}
			if r.Version == nil || *r.Version != version.Short() {
				t.Errorf("Run %s is not stamped with version %s", r.ID, version.Short())
			}
		}
	})
}

// A COPY against a warehouse that cannot reach the storage path (here:
// PostgreSQL, which rejects the statement outright) must terminate the run
// before any target table is populated.
func TestCopyFailurePropagates(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)
	testConnStr := testutil.CreateTestDB(t, baseConnStr)
	dbName := testutil.GetDBNameFromConnStr(testConnStr)

	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	t.Cleanup(cleanup.Cleanup)

	pool := testutil.ConnectTestDB(t, testConnStr)
	cleanup.SetPool(pool)

	ctx := context.Background()
	runner := newIntegrationRunner(t, pool, false)

	err := runner.Run(ctx)
	if err == nil {
		t.Fatal("Expected Run to fail at the COPY phase")
	}

	var stmtErr *pipeline.StatementError
	if !errors.As(err, &stmtErr) {
		t.Fatalf("Expected *StatementError, got %T: %v", err, err)
	}
	if stmtErr.Statement.Table != pipeline.TableStagingEvents {
		t.Errorf("Expected failure on staging_events copy, got %s", stmtErr.Statement.Table)
	}

	// Schema was reset, load failed, transform never ran.
	for _, table := range pipeline.TargetTables() {
		if count := rowCount(t, ctx, pool, table); count != 0 {
			t.Errorf("Table %s has %d rows after failed load", table, count)
		}
	}
}
