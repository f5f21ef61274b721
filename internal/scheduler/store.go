package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// configChangedChannel is the pg_notify channel ConfigStore mutations publish
// to. The Manager's reconciliation listener (reconcile.go) subscribes to it
// so that a config change made from a separate process — the operator CLI,
// in particular — reaches the daemon's in-memory Job registry without a
// shared-memory dependency between them. Grounded on the teacher's
// LISTEN/NOTIFY milestone pipeline (internal/listener), repurposed here for
// config reconciliation instead of follower notification.
const configChangedChannel = "scheduler_config_changed"

// notifyOp tags a pg_notify payload with which mutation fired it, so a
// listening Manager in another process can tell an explicit field update
// (which must recreate its local Job with fresh timing, spec §4.5) apart
// from a lifecycle flip (which must not, so pause/resume stay cheap).
const (
	notifyOpCreate = "create"
	notifyOpUpdate = "update"
	notifyOpActive = "active"
	notifyOpDelete = "delete"
)

// ConfigStore is the Configuration Store of spec §4.7: a thin persistence
// layer over scheduler_config/scheduler_run, with the (season_id) uniqueness
// invariant and cascading delete to runs (spec §6.3).
type ConfigStore struct {
	pool *pgxpool.Pool
}

// NewConfigStore wraps a pool for scheduler_config/scheduler_run access.
func NewConfigStore(pool *pgxpool.Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

// Get returns the config for a season, or ErrConfigNotFound.
func (s *ConfigStore) Get(ctx context.Context, seasonID string) (*Config, error) {
	row := s.pool.QueryRow(ctx, "config_by_season", seasonID)
	cfg, err := scanConfig(row)
	if err != nil {
		if errorsIsNoRows(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("get config %s: %w", seasonID, err)
	}
	return cfg, nil
}

// Create inserts a new config in the inactive state.
func (s *ConfigStore) Create(ctx context.Context, cfg Config) (*Config, error) {
	if err := validateWindow(cfg); err != nil {
		return nil, err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduler_config (
			season_id, platform, active_days, start_hour, end_hour,
			interval_minutes, interval_seconds, is_active, is_paused
		) VALUES ($1,$2,$3,$4,$5,$6,$7,false,false)`,
		cfg.SeasonID, cfg.Platform, cfg.ActiveDays, cfg.StartHour, cfg.EndHour,
		cfg.IntervalMinutes, cfg.IntervalSeconds,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConfigExists
		}
		return nil, fmt.Errorf("create config %s: %w", cfg.SeasonID, err)
	}
	s.notifyChanged(ctx, cfg.SeasonID, notifyOpCreate)
	return s.Get(ctx, cfg.SeasonID)
}

// Update replaces the tunable fields of a config (window, interval,
// platform). Lifecycle flags (is_active/is_paused) are mutated only through
// the dedicated Set* methods below, to keep the state machine's transitions
// explicit (spec §4.5).
func (s *ConfigStore) Update(ctx context.Context, cfg Config) (*Config, error) {
	if err := validateWindow(cfg); err != nil {
		return nil, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduler_config
		SET platform = $2, active_days = $3, start_hour = $4, end_hour = $5,
		    interval_minutes = $6, interval_seconds = $7
		WHERE season_id = $1`,
		cfg.SeasonID, cfg.Platform, cfg.ActiveDays, cfg.StartHour, cfg.EndHour,
		cfg.IntervalMinutes, cfg.IntervalSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("update config %s: %w", cfg.SeasonID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrConfigNotFound
	}
	s.notifyChanged(ctx, cfg.SeasonID, notifyOpUpdate)
	return s.Get(ctx, cfg.SeasonID)
}

// SetActive flips is_active/is_paused atomically (start/pause/resume/stop)
// and notifies any listening Manager to reconcile its local Job registry.
func (s *ConfigStore) SetActive(ctx context.Context, seasonID string, active, paused bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduler_config SET is_active = $2, is_paused = $3 WHERE season_id = $1`,
		seasonID, active, paused)
	if err != nil {
		return fmt.Errorf("set active config %s: %w", seasonID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	s.notifyChanged(ctx, seasonID, notifyOpActive)
	return nil
}

// SetLastRun records the most recent tick's outcome on the config row.
func (s *ConfigStore) SetLastRun(ctx context.Context, seasonID string, at time.Time, status RunStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scheduler_config SET last_run_at = $2, last_run_status = $3 WHERE season_id = $1`,
		seasonID, at, string(status))
	if err != nil {
		return fmt.Errorf("set last run %s: %w", seasonID, err)
	}
	return nil
}

// Delete removes a config; scheduler_run rows cascade via the schema's
// foreign key (spec §3 "destroyed by API (cascades to runs)").
func (s *ConfigStore) Delete(ctx context.Context, seasonID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scheduler_config WHERE season_id = $1`, seasonID)
	if err != nil {
		return fmt.Errorf("delete config %s: %w", seasonID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	s.notifyChanged(ctx, seasonID, notifyOpDelete)
	return nil
}

// notifyChanged publishes a best-effort pg_notify so that any Manager
// listening (in this process or another) reconciles its Job registry against
// the new config state. A notify failure must not fail the mutation itself —
// the daemon's own startup restore, and the reconcile on any later
// notification for the same season, remain the backstop.
func (s *ConfigStore) notifyChanged(ctx context.Context, seasonID, op string) {
	payload := seasonID + "|" + op
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, configChangedChannel, payload); err != nil {
		// Dropped: the store has no logger of its own and the caller is not
		// told, since the mutation has already succeeded.
		_ = err
	}
}

// ListActive returns every config with is_active=true, for Manager startup
// restore (spec §4.6).
func (s *ConfigStore) ListActive(ctx context.Context) ([]Config, error) {
	rows, err := s.pool.Query(ctx, "config_list_active")
	if err != nil {
		return nil, fmt.Errorf("list active configs: %w", err)
	}
	defer rows.Close()
	return scanConfigs(rows)
}

// ListAll returns every config for the operator listing (spec §6.2 `GET /`).
func (s *ConfigStore) ListAll(ctx context.Context) ([]Config, error) {
	rows, err := s.pool.Query(ctx, "config_list_all")
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func validateWindow(cfg Config) error {
	if cfg.StartHour < 0 || cfg.StartHour > 23 {
		return fmt.Errorf("%w: start_hour out of range", ErrInvalidWindow)
	}
	if cfg.EndHour < 1 || cfg.EndHour > 24 {
		return fmt.Errorf("%w: end_hour out of range", ErrInvalidWindow)
	}
	if cfg.IntervalMinutes < 1 {
		return fmt.Errorf("%w: interval_minutes must be >= 1", ErrInvalidWindow)
	}
	if cfg.IntervalSeconds < 0 || cfg.IntervalSeconds > 59 {
		return fmt.Errorf("%w: interval_seconds out of range", ErrInvalidWindow)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*Config, error) {
	var c Config
	var lastRunAt *time.Time
	var lastRunStatus *string
	err := row.Scan(
		&c.SeasonID, &c.Platform, &c.ActiveDays, &c.StartHour, &c.EndHour,
		&c.IntervalMinutes, &c.IntervalSeconds, &c.IsActive, &c.IsPaused,
		&lastRunAt, &lastRunStatus,
	)
	if err != nil {
		return nil, err
	}
	c.LastRunAt = lastRunAt
	if lastRunStatus != nil {
		c.LastRunStatus = *lastRunStatus
	}
	return &c, nil
}

func scanConfigs(rows pgx.Rows) ([]Config, error) {
	var configs []Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

func errorsIsNoRows(err error) bool {
	return err != nil && (err == pgx.ErrNoRows || strings.Contains(err.Error(), "no rows"))
}
