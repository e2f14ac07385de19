// Package db provides warehouse connection management for sparkify-etl.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sparkifydata/sparkify-etl/internal/logging"
)

// Executor is the subset of pgx operations the pipeline needs. Both
// *pgx.Conn and *pgxpool.Pool satisfy it, so the ETL run can hold a single
// dedicated connection while tests use a pool.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect establishes a single connection to the warehouse. The ETL run is
// strictly sequential, so one connection is held for its whole duration.
func Connect(ctx context.Context, connString, dialect string) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	// Redshift does not implement the extended query protocol.
	if dialect == "redshift" {
		cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	logging.Debug().
		Str("host", cfg.Host).
		Uint16("port", cfg.Port).
		Str("database", cfg.Database).
		Str("dialect", dialect).
		Msg("Connecting to warehouse")

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	logging.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Msg("Connected to warehouse")

	return conn, nil
}

// ConnectPool establishes a connection pool. The pipeline itself holds a
// single connection; the pool serves callers that issue independent queries
// concurrently, such as the integration test harness.
func ConnectPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	return pool, nil
}
