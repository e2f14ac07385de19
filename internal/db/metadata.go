package db

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sparkifydata/sparkify-etl/internal/logging"
	"github.com/sparkifydata/sparkify-etl/pkg/version"
)

const runsTable = "etl_runs"

// createRunsTableSQL creates the run tracking table if it doesn't exist.
// It is operational metadata and deliberately not part of the pipeline's
// managed schema, so resetting the star schema never erases run history.
const createRunsTableSQL = `
CREATE TABLE IF NOT EXISTS etl_runs (
    run_id      VARCHAR(36) NOT NULL,
    phase       VARCHAR(32) NOT NULL,
    status      VARCHAR(16) NOT NULL,
    version     VARCHAR(32),
    detail      VARCHAR(1024),
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
)`

// StartRun records the start of an ETL phase and returns the run id.
func StartRun(ctx context.Context, db Executor, phase string) (string, error) {
	if _, err := db.Exec(ctx, createRunsTableSQL); err != nil {
		return "", fmt.Errorf("failed to create %s table: %w", runsTable, err)
	}

	runID := uuid.NewString()
	_, err := db.Exec(ctx, `
        INSERT INTO etl_runs (run_id, phase, status, version, started_at)
        VALUES ($1, $2, 'running', $3, $4)
    `, runID, phase, version.Short(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}

	logging.Debug().
		Str("run_id", runID).
		Str("phase", phase).
		Msg("Recorded run start")

	return runID, nil
}

// FinishRun records the outcome of a previously started run.
func FinishRun(ctx context.Context, db Executor, runID string, runErr error) error {
	status := "completed"
	detail := ""
	if runErr != nil {
		status = "failed"
		detail = truncateDetail(runErr.Error(), 1024)
	}

	_, err := db.Exec(ctx, `
        UPDATE etl_runs
        SET status = $2, detail = $3, finished_at = $4
        WHERE run_id = $1
    `, runID, status, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record run outcome: %w", err)
	}
	return nil
}

// truncateDetail caps s at max bytes without splitting a multibyte rune.
func truncateDetail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// LastRuns returns the most recent run records, newest first.
func LastRuns(ctx context.Context, db Executor, limit int) ([]RunRecord, error) {
	rows, err := db.Query(ctx, `
        SELECT run_id, phase, status, version, started_at, finished_at
        FROM etl_runs
        ORDER BY started_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Phase, &r.Status, &r.Version, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunRecord is one row of the etl_runs table.
type RunRecord struct {
	ID         string
	Phase      string
	Status     string
	Version    *string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// DropRuns drops the run tracking table.
func DropRuns(ctx context.Context, db Executor) error {
	_, err := db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", runsTable))
	return err
}
