package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/sparkifydata/sparkify-etl/internal/config"
	"github.com/sparkifydata/sparkify-etl/internal/db"
	"github.com/sparkifydata/sparkify-etl/internal/logging"
)

// StatementError reports a failed pipeline statement. The run halts at the
// first failure; nothing is retried or rolled back, so tables keep whatever
// state the warehouse left them in.
type StatementError struct {
	Statement Statement
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %s (table %s) failed: %v",
		e.Statement.Name, e.Statement.Table, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// RunnerConfig holds configuration for a pipeline Runner.
type RunnerConfig struct {
	// DB executes statements; a single *pgx.Conn in production.
	DB db.Executor

	// Config supplies the S3 locations and IAM role for the COPY phase.
	Config *config.Config

	// Dialect selects the DDL variant.
	Dialect Dialect

	// Progress renders a terminal progress bar per phase.
	Progress bool

	// TrackRuns records phase outcomes in the etl_runs table.
	TrackRuns bool
}

// Runner executes the pipeline batches sequentially over one connection.
// Each statement is issued only after the previous one completed.
type Runner struct {
	db       db.Executor
	cfg      *config.Config
	dialect  Dialect
	progress bool
	track    bool
}

// NewRunner creates a pipeline runner.
func NewRunner(rc RunnerConfig) (*Runner, error) {
	if rc.DB == nil {
		return nil, fmt.Errorf("runner requires a database executor")
	}
	if rc.Config == nil {
		return nil, fmt.Errorf("runner requires a configuration")
	}
	if rc.Dialect == "" {
		rc.Dialect = DialectRedshift
	}
	return &Runner{
		db:       rc.DB,
		cfg:      rc.Config,
		dialect:  rc.Dialect,
		progress: rc.Progress,
		track:    rc.TrackRuns,
	}, nil
}

// ResetSchema drops and recreates the seven managed tables. Any existing
// data in them is destroyed. Running it twice leaves an identical empty
// schema.
func (r *Runner) ResetSchema(ctx context.Context) error {
	return r.trackPhase(ctx, "reset_schema", r.resetSchema)
}

// LoadStaging bulk-loads the configured S3 prefixes into the staging
// tables. This is the long-running phase; the warehouse streams directly
// from S3 and the statement blocks until ingest finishes.
func (r *Runner) LoadStaging(ctx context.Context) error {
	return r.trackPhase(ctx, "load_staging", r.loadStaging)
}

// PopulateTargets fills the dimension tables and then the fact table from
// staging. All transformation logic lives in the SQL text; nothing is
// computed in-process.
func (r *Runner) PopulateTargets(ctx context.Context) error {
	return r.trackPhase(ctx, "populate_targets", r.populateTargets)
}

// Run executes the full pipeline: reset, load, transform. The first failing
// statement halts the run and propagates.
func (r *Runner) Run(ctx context.Context) error {
	return r.trackPhase(ctx, "run", func(ctx context.Context) error {
		if err := r.resetSchema(ctx); err != nil {
			return err
		}
		if err := r.loadStaging(ctx); err != nil {
			return err
		}
		return r.populateTargets(ctx)
	})
}

func (r *Runner) resetSchema(ctx context.Context) error {
	batch := append(DropStatements(), CreateStatements(r.dialect)...)
	return r.execBatch(ctx, "reset_schema", batch)
}

func (r *Runner) loadStaging(ctx context.Context) error {
	if err := r.cfg.ValidateLoad(); err != nil {
		return err
	}
	return r.execBatch(ctx, "load_staging", CopyStatements(r.cfg))
}

func (r *Runner) populateTargets(ctx context.Context) error {
	return r.execBatch(ctx, "populate_targets", InsertStatements())
}

// trackPhase wraps a phase with etl_runs bookkeeping. Tracking failures are
// logged and ignored; they must never mask or block the pipeline itself.
func (r *Runner) trackPhase(ctx context.Context, phase string, fn func(context.Context) error) error {
	if !r.track {
		return fn(ctx)
	}

	runID, err := db.StartRun(ctx, r.db, phase)
	if err != nil {
		logging.Warn().Err(err).
			Str("phase", phase).
			Msg("Could not record run start; continuing untracked")
		return fn(ctx)
	}

	log := logging.WithRun(runID)
	phaseErr := fn(ctx)
	if err := db.FinishRun(ctx, r.db, runID, phaseErr); err != nil {
		log.Warn().Err(err).Msg("Could not record run outcome")
	}
	return phaseErr
}

func (r *Runner) execBatch(ctx context.Context, phase string, batch []Statement) error {
	start := time.Now()
	logging.Info().
		Str("phase", phase).
		Int("statements", len(batch)).
		Msg("Starting phase")

	var bar *progressbar.ProgressBar
	if r.progress {
		bar = progressbar.NewOptions(len(batch),
			progressbar.OptionSetDescription(phase),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, stmt := range batch {
		stmtStart := time.Now()
		tag, err := r.db.Exec(ctx, stmt.SQL)
		if err != nil {
			if bar != nil {
				_ = bar.Clear()
			}
			return &StatementError{Statement: stmt, Err: err}
		}

		logging.Debug().
			Str("statement", stmt.Name).
			Str("table", stmt.Table).
			Str("rows", humanize.Comma(tag.RowsAffected())).
			Dur("elapsed", time.Since(stmtStart)).
			Msg("Statement complete")

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	logging.Info().
		Str("phase", phase).
		Dur("elapsed", time.Since(start)).
		Msg("Phase complete")

	return nil
}
