package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rinkvault/scheduler/internal/clockgate"
	"github.com/rinkvault/scheduler/internal/upstream"
)

// The Job depends on its collaborators only through these narrow interfaces
// (accept interfaces, return structs) so the tick loop's orchestration —
// gating, counting, status derivation — can be exercised in tests with local
// fakes instead of a live database or upstream. *ConfigStore, *RunStore,
// *ClubRoster, *upstream.Client, and *Persister each satisfy one of these
// structurally; the Manager wires the real types in, tests wire in fakes.
type lastRunSetter interface {
	SetLastRun(ctx context.Context, seasonID string, at time.Time, status RunStatus) error
}

type jobRunRecorder interface {
	Open(ctx context.Context, seasonID string) (int64, error)
	Close(ctx context.Context, runID int64, status RunStatus, matchesFetched, matchesNew int, errMsg string) error
}

type jobClubLister interface {
	ForSeason(ctx context.Context, seasonID string) ([]Club, error)
}

type jobMatchFetcher interface {
	ResolveClub(ctx context.Context, name, platform string) (int, error)
	ListMatches(ctx context.Context, clubID int, platform string) ([]upstream.Match, error)
}

type jobMatchPersister interface {
	Persist(ctx context.Context, seasonID string, m upstream.Match) (PersistResult, error)
}

// Job is the per-season worker of spec §4.5: one goroutine, one timer, and
// the state machine (inactive/running/paused/deleted) that governs it. Ticks
// are non-overlapping by construction — a tick that is still running when its
// timer fires again is skipped, never queued (spec §4.5 "skip, don't queue").
type Job struct {
	seasonID string

	configs  lastRunSetter
	runs     jobRunRecorder
	roster   jobClubLister
	upstream jobMatchFetcher
	persist  jobMatchPersister
	logger   *slog.Logger

	mu      sync.Mutex
	cfg     Config
	window  clockgate.Window
	cancel  context.CancelFunc
	ticking atomic.Bool
}

// newJob builds a Job bound to the given config. It does not start the
// goroutine; call run() (typically via Manager) once registered.
func newJob(cfg Config, configs lastRunSetter, runs jobRunRecorder, roster jobClubLister, client jobMatchFetcher, persist jobMatchPersister, logger *slog.Logger) *Job {
	return &Job{
		seasonID: cfg.SeasonID,
		configs:  configs,
		runs:     runs,
		roster:   roster,
		upstream: client,
		persist:  persist,
		logger:   logger.With("season_id", cfg.SeasonID),
		cfg:      cfg,
		window:   clockgate.FromMondayIndices(cfg.ActiveDays, cfg.StartHour, cfg.EndHour),
	}
}

// start launches the job's ticker loop. Safe to call once per Job lifetime;
// the Manager recreates a fresh Job on config changes rather than restarting
// an existing one (spec §4.6 "update stops and recreates the job").
func (j *Job) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	j.mu.Lock()
	j.cancel = cancel
	interval := j.cfg.Interval()
	j.mu.Unlock()

	go j.loop(ctx, interval)
}

// stop cancels the job's ticker loop. Does not wait for an in-flight tick to
// finish; the Manager's Shutdown applies the bounded grace period for that.
func (j *Job) stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// setPaused flips the job's pause flag without tearing down its goroutine —
// a paused job keeps ticking, but clockgate.Admitted rejects every tick.
func (j *Job) setPaused(paused bool) {
	j.mu.Lock()
	j.cfg.IsPaused = paused
	j.mu.Unlock()
}

func (j *Job) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !j.ticking.CompareAndSwap(false, true) {
				// Previous tick still running: skip this one rather than
				// queueing it (spec §4.5).
				j.logger.Warn("tick skipped, previous tick still in flight")
				continue
			}
			j.tick(ctx)
			j.ticking.Store(false)
		}
	}
}

// tick runs one fetch cycle: gate check, run-open, per-club fetch+persist,
// run-close with the status rules of spec §4.4.
func (j *Job) tick(ctx context.Context) {
	j.mu.Lock()
	paused := j.cfg.IsPaused
	window := j.window
	j.mu.Unlock()

	now := clockgate.Now()
	if !clockgate.Admitted(window, now, paused) {
		return
	}

	clubs, err := j.roster.ForSeason(ctx, j.seasonID)
	if err != nil {
		j.logger.Error("failed to list clubs for season", "error", err)
		j.recordRun(ctx, now, RunFailed, 0, 0, err.Error())
		if err := j.configs.SetLastRun(ctx, j.seasonID, now, RunFailed); err != nil {
			j.logger.Error("failed to record last run on config", "error", err)
		}
		return
	}
	if len(clubs) == 0 {
		return
	}

	runID, err := j.runs.Open(ctx, j.seasonID)
	if err != nil {
		j.logger.Error("failed to open run", "error", err)
		return
	}

	fetched, newMatches, failedClubs, failures := j.fetchAndPersistClubs(ctx, clubs)

	// Status rule (spec §4.4): failed only when nothing was fetched and an
	// error occurred; any matches fetched/stored despite a club- or
	// match-level error makes the run partial, never failed (spec §4.3.4).
	status := RunSuccess
	errMsg := ""
	switch {
	case fetched == 0 && failedClubs > 0:
		status = RunFailed
		errMsg = strings.Join(failures, "; ")
	case failedClubs > 0:
		status = RunPartial
		errMsg = strings.Join(failures, "; ")
	}

	if err := j.runs.Close(ctx, runID, status, fetched, newMatches, errMsg); err != nil {
		j.logger.Error("failed to close run", "error", err, "run_id", runID)
	}
	if err := j.configs.SetLastRun(ctx, j.seasonID, now, status); err != nil {
		j.logger.Error("failed to record last run on config", "error", err)
	}
}

// fetchAndPersistClubs walks the season's club roster, resolving+listing
// matches for each and persisting them. It observes cancellation between
// clubs and between matches within a club, per spec §4.5 "observes
// cancellation at match/club iteration boundaries, not mid-transaction".
// failures carries one message per failing club, naming the club so the
// run's error_message can reference which club fetch/persist failed
// (spec §8 scenario 4).
func (j *Job) fetchAndPersistClubs(ctx context.Context, clubs []Club) (fetched, newMatches, failedClubs int, failures []string) {
	for _, club := range clubs {
		if ctx.Err() != nil {
			return
		}

		clubID := club.ExternalClubID
		if clubID == 0 {
			resolved, err := j.upstream.ResolveClub(ctx, club.Name, club.Platform)
			if err != nil {
				j.logger.Warn("resolve club failed", "club_name", club.Name, "error", err)
				failedClubs++
				failures = append(failures, fmt.Sprintf("club %s: resolve failed: %v", club.Name, err))
				continue
			}
			clubID = resolved
		}

		matches, err := j.upstream.ListMatches(ctx, clubID, club.Platform)
		if err != nil {
			j.logger.Warn("list matches failed", "club_id", clubID, "error", err)
			failedClubs++
			failures = append(failures, fmt.Sprintf("club %s (id %d): list matches failed: %v", club.Name, clubID, err))
			continue
		}

		clubFailed := false
		var clubErr error
		for _, m := range matches {
			if ctx.Err() != nil {
				return
			}
			fetched++
			result, err := j.persist.Persist(ctx, j.seasonID, m)
			if err != nil {
				j.logger.Warn("persist match failed", "match_id", m.ExternalMatchID, "error", err)
				clubFailed = true
				clubErr = err
				continue
			}
			if result.MatchWasNew {
				newMatches++
			}
		}
		if clubFailed {
			failedClubs++
			failures = append(failures, fmt.Sprintf("club %s (id %d): persist failed: %v", club.Name, clubID, clubErr))
		}
	}
	return
}

func (j *Job) recordRun(ctx context.Context, at time.Time, status RunStatus, fetched, newMatches int, errMsg string) {
	runID, err := j.runs.Open(ctx, j.seasonID)
	if err != nil {
		j.logger.Error("failed to open run for error record", "error", err)
		return
	}
	if err := j.runs.Close(ctx, runID, status, fetched, newMatches, errMsg); err != nil {
		j.logger.Error("failed to close error run", "error", err)
	}
}
