package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunStore is the Run Recorder of spec §4.4: an append-mostly audit trail of
// every tick, opened at the start of a tick and closed exactly once.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore wraps a pool for scheduler_run access.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Open inserts a new run row in the running state and returns its id.
func (s *RunStore) Open(ctx context.Context, seasonID string) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, "run_open", seasonID).Scan(&id); err != nil {
		return 0, fmt.Errorf("open run for %s: %w", seasonID, err)
	}
	return id, nil
}

// Close finalizes a run with its outcome counters. Status is decided by the
// caller (job.go) per the rules in spec §4.4: success (no club errors),
// partial (at least one club fetch or match persist failed but at least one
// match was fetched), failed (no match fetched and at least one error, or the
// tick errored before fetching anything).
func (s *RunStore) Close(ctx context.Context, runID int64, status RunStatus, matchesFetched, matchesNew int, errMsg string) error {
	var errArg *string
	if errMsg != "" {
		errArg = &errMsg
	}
	_, err := s.pool.Exec(ctx, "run_close", runID, string(status), matchesFetched, matchesNew, errArg)
	if err != nil {
		return fmt.Errorf("close run %d: %w", runID, err)
	}
	return nil
}

// ListForSeason returns the most recent runs for a season, newest first.
func (s *RunStore) ListForSeason(ctx context.Context, seasonID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, "run_list_for_season", seasonID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", seasonID, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finishedAt *time.Time
		var errMsg *string
		if err := rows.Scan(&r.ID, &r.ConfigSeasonID, &r.SeasonID, &r.StartedAt, &finishedAt,
			&r.Status, &r.MatchesFetched, &r.MatchesNew, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.FinishedAt = finishedAt
		if errMsg != nil {
			r.ErrorMessage = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CloseStaleRunning marks every run still in the running state as failed.
// Called once at Manager startup (spec §9 Open Question, resolved: a process
// restart abandons any in-flight tick, so its run row can never be closed by
// the goroutine that opened it). The error message flags these distinctly
// from ticks that failed for a domain reason.
func (s *RunStore) CloseStaleRunning(ctx context.Context) (int, error) {
	rows, err := s.pool.Query(ctx, "run_close_stale", "marked failed: process restarted with run still open (crash)")
	if err != nil {
		return 0, fmt.Errorf("close stale running runs: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}
