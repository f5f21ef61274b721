package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Listen opens a dedicated connection and subscribes to configChangedChannel,
// reconciling the local Job registry against the database on every
// notification. It reconnects automatically on connection loss, mirroring
// the teacher's milestone LISTEN/NOTIFY consumer (internal/listener), here
// repurposed so that config changes made by a separate ingestctl process
// reach this daemon's in-memory registry. Blocks until ctx is cancelled;
// intended to be run with `go`.
func (m *Manager) Listen(ctx context.Context, dbURL string) {
	backoff := reconnectBackoff

	for {
		err := m.listenLoop(ctx, dbURL)
		if ctx.Err() != nil {
			m.logger.Info("config reconciliation listener stopped")
			return
		}

		m.logger.Error("config reconciliation listener disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) listenLoop(ctx context.Context, dbURL string) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+configChangedChannel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", configChangedChannel, err)
	}
	m.logger.Info("config reconciliation listener connected", "channel", configChangedChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		seasonID, op, _ := strings.Cut(notification.Payload, "|")
		if err := m.reconcile(ctx, seasonID, op == notifyOpUpdate); err != nil {
			m.logger.Warn("reconcile failed", "season_id", seasonID, "error", err)
		}
	}
}

// reconcile brings the local Job registry for one season in line with its
// persisted config: creating/starting a missing job when the config is now
// active, flipping the pause flag on an existing job, and tearing down a job
// whose config has gone inactive or been deleted. Idempotent and safe to call
// redundantly — both from a direct lifecycle-method call in this process and
// from a notification describing a change another process already applied.
//
// forceRestart mirrors spec §4.5's update rule: "if running/paused, the
// worker is torn down and replaced with fresh timing". Pause/resume/start/
// stop reuse the existing goroutine (false); an explicit field update always
// recreates it so a changed window or interval takes effect immediately
// (true), even if a job already existed for this season.
func (m *Manager) reconcile(ctx context.Context, seasonID string, forceRestart bool) error {
	cfg, err := m.configs.Get(ctx, seasonID)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			m.removeJob(seasonID)
			return nil
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[seasonID]
	switch cfg.State() {
	case StateInactive:
		if exists {
			job.stop()
			delete(m.jobs, seasonID)
		}
	case StateRunning, StatePaused:
		if exists && forceRestart {
			job.stop()
			exists = false
		}
		if !exists {
			job = newJob(*cfg, m.configs, m.runs, m.roster, m.client, m.persist, m.logger)
			job.start(context.Background())
			m.jobs[seasonID] = job
		}
		job.setPaused(cfg.State() == StatePaused)
	}
	return nil
}

func (m *Manager) removeJob(seasonID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[seasonID]; ok {
		job.stop()
		delete(m.jobs, seasonID)
	}
}
