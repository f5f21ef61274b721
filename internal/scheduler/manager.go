package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rinkvault/scheduler/internal/upstream"
)

// Manager is the Scheduler Manager of spec §4.6: a process-singleton
// registry of live Jobs, keyed by season id. It is the only component that
// creates or tears down Job goroutines; the out-of-scope API layer drives it
// through the methods below rather than touching Job directly.
type Manager struct {
	configs *ConfigStore
	runs    *RunStore
	roster  *ClubRoster
	persist *Persister
	client  *upstream.Client
	logger  *slog.Logger

	shutdownGrace time.Duration

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewManager wires the Manager's dependencies. Each Job it creates shares
// this pool-backed set of stores and the single rate-limited upstream
// client (spec §4.1: one client, one rate limit, shared across every job).
func NewManager(pool *pgxpool.Pool, client *upstream.Client, shutdownGrace time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		configs:       NewConfigStore(pool),
		runs:          NewRunStore(pool),
		roster:        NewClubRoster(pool),
		persist:       NewPersister(pool),
		client:        client,
		logger:        logger,
		shutdownGrace: shutdownGrace,
		jobs:          make(map[string]*Job),
	}
}

// RestoreActive is run once at process startup (spec §4.6 "Startup"): it
// closes any run left in the running state by a prior process (spec §9, the
// crash-marker resolution), then recreates a Job for every config whose
// is_active flag survived the restart, preserving its paused/running state.
func (m *Manager) RestoreActive(ctx context.Context) error {
	n, err := m.runs.CloseStaleRunning(ctx)
	if err != nil {
		return fmt.Errorf("close stale running runs: %w", err)
	}
	if n > 0 {
		m.logger.Warn("closed stale running runs from a prior process", "count", n)
	}

	active, err := m.configs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active configs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cfg := range active {
		job := newJob(cfg, m.configs, m.runs, m.roster, m.client, m.persist, m.logger)
		job.start(context.Background())
		m.jobs[cfg.SeasonID] = job
		m.logger.Info("restored job", "season_id", cfg.SeasonID, "state", cfg.State())
	}
	return nil
}

// CreateConfig persists a new, inactive config. Call StartJob to bring it
// under active scheduling.
func (m *Manager) CreateConfig(ctx context.Context, cfg Config) (*Config, error) {
	return m.configs.Create(ctx, cfg)
}

// UpdateConfig replaces a config's window/interval/platform. Per spec §4.6,
// an update to a running job's config stops and recreates the job rather
// than mutating it in place, so the new interval/window take effect on the
// next tick cleanly. Every lifecycle method below mutates the ConfigStore
// (the single source of truth) and then reconciles this process's local Job
// registry; a pg_notify fired by the store additionally reaches any other
// process listening (see reconcile.go), so the operator CLI and the daemon
// agree on state without sharing memory.
func (m *Manager) UpdateConfig(ctx context.Context, cfg Config) (*Config, error) {
	updated, err := m.configs.Update(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := m.reconcile(ctx, cfg.SeasonID, true); err != nil {
		m.logger.Warn("local reconcile after update failed", "season_id", cfg.SeasonID, "error", err)
	}
	return updated, nil
}

// StartJob transitions a config to active.
func (m *Manager) StartJob(ctx context.Context, seasonID string) error {
	cfg, err := m.configs.Get(ctx, seasonID)
	if err != nil {
		return err
	}
	if cfg.IsActive {
		return fmt.Errorf("%w: season %s is already active", ErrInvalidTransition, seasonID)
	}
	if err := m.configs.SetActive(ctx, seasonID, true, false); err != nil {
		return err
	}
	return m.reconcile(ctx, seasonID, false)
}

// PauseJob keeps a Job's goroutine alive but makes the clockgate reject every
// tick, per spec §4.5's distinction between paused and stopped.
func (m *Manager) PauseJob(ctx context.Context, seasonID string) error {
	cfg, err := m.configs.Get(ctx, seasonID)
	if err != nil {
		return err
	}
	if !cfg.IsActive {
		return fmt.Errorf("%w: season %s is not active", ErrInvalidTransition, seasonID)
	}
	if err := m.configs.SetActive(ctx, seasonID, true, true); err != nil {
		return err
	}
	return m.reconcile(ctx, seasonID, false)
}

// ResumeJob clears a Job's pause flag so ticks resume.
func (m *Manager) ResumeJob(ctx context.Context, seasonID string) error {
	cfg, err := m.configs.Get(ctx, seasonID)
	if err != nil {
		return err
	}
	if !cfg.IsActive {
		return fmt.Errorf("%w: season %s is not active", ErrInvalidTransition, seasonID)
	}
	if err := m.configs.SetActive(ctx, seasonID, true, false); err != nil {
		return err
	}
	return m.reconcile(ctx, seasonID, false)
}

// StopJob cancels a season's job and marks the config inactive. The config
// itself survives; StartJob can bring it back later.
func (m *Manager) StopJob(ctx context.Context, seasonID string) error {
	if err := m.configs.SetActive(ctx, seasonID, false, false); err != nil {
		return err
	}
	return m.reconcile(ctx, seasonID, false)
}

// DeleteConfig stops any running Job and removes the config (cascading to
// its run history per the store's foreign key).
func (m *Manager) DeleteConfig(ctx context.Context, seasonID string) error {
	if err := m.configs.Delete(ctx, seasonID); err != nil {
		return err
	}
	m.removeJob(seasonID)
	return nil
}

// ListConfigs returns every config's summary for the operator surface.
func (m *Manager) ListConfigs(ctx context.Context) ([]Summary, error) {
	configs, err := m.configs.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(configs))
	for _, c := range configs {
		summaries = append(summaries, Summary{
			SeasonID:      c.SeasonID,
			State:         c.State(),
			LastRunAt:     c.LastRunAt,
			LastRunStatus: c.LastRunStatus,
		})
	}
	return summaries, nil
}

// ListRuns returns the recent run history for one season.
func (m *Manager) ListRuns(ctx context.Context, seasonID string, limit int) ([]Run, error) {
	return m.runs.ListForSeason(ctx, seasonID, limit)
}

// Shutdown cancels every live Job and waits up to the configured grace
// period for in-flight ticks to observe cancellation at their next
// match/club boundary (spec §4.6 "Shutdown"), mirroring the teacher's
// bounded http.Server.Shutdown pattern.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		job.stop()
		jobs = append(jobs, job)
	}
	m.mu.Unlock()

	grace := m.shutdownGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	deadline := time.After(grace)
	for _, job := range jobs {
		for job.ticking.Load() {
			select {
			case <-ctx.Done():
				return
			case <-deadline:
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
}
