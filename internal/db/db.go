// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rinkvault/scheduler/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the named statements the config store
// reads, the club roster lookup, and the run recorder use. Config mutations
// (create, update, lifecycle flags, last-run fields, delete) and the
// match/player/stat inserts are sent as plain SQL through pool.Exec/QueryRow
// instead.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		"health_check": "SELECT 1",

		// Config store
		"config_by_season":  "SELECT season_id, platform, active_days, start_hour, end_hour, interval_minutes, interval_seconds, is_active, is_paused, last_run_at, last_run_status FROM scheduler_config WHERE season_id = $1",
		"config_list_active": "SELECT season_id, platform, active_days, start_hour, end_hour, interval_minutes, interval_seconds, is_active, is_paused, last_run_at, last_run_status FROM scheduler_config WHERE is_active = true",
		"config_list_all":    "SELECT season_id, platform, active_days, start_hour, end_hour, interval_minutes, interval_seconds, is_active, is_paused, last_run_at, last_run_status FROM scheduler_config ORDER BY season_id",

		// Season → club roster (read-only contract with out-of-scope club CRUD)
		"season_clubs": "SELECT external_club_id, club_name, platform FROM season_clubs WHERE season_id = $1",

		// Run recorder
		"run_open":            "INSERT INTO scheduler_run (config_season_id, season_id, started_at, status) VALUES ($1, $1, NOW(), 'running') RETURNING id",
		"run_close":           "UPDATE scheduler_run SET finished_at = NOW(), status = $2, matches_fetched = $3, matches_new = $4, error_message = $5 WHERE id = $1",
		"run_list_for_season": "SELECT id, config_season_id, season_id, started_at, finished_at, status, matches_fetched, matches_new, error_message FROM scheduler_run WHERE season_id = $1 ORDER BY started_at DESC LIMIT $2",
		"run_close_stale":     "UPDATE scheduler_run SET finished_at = NOW(), status = 'failed', error_message = $1 WHERE status = 'running' RETURNING id",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
