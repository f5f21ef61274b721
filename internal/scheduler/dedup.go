package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rinkvault/scheduler/internal/upstream"
)

// postgresUniqueViolation is the SQLSTATE Postgres raises for a unique index
// conflict. Grounded on the dist-job-scheduler's
// `errors.As(err, &pgErr) && pgErr.Code == "23505"` dedup pattern: rather than
// pre-checking existence, insert optimistically and let the constraint do the
// dedup work (spec §9, resolved: rely on unique index + catch the violation).
const postgresUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation
}

// Persister is the Deduplicator/Persister of spec §4.3: one transaction per
// match, inserting the match row (dedup via unique violation on
// (season_id, external_match_id)), upserting each player (refreshing
// gamertag), and inserting each player's stat line (dedup via unique
// violation on (player_id, match_id), the player and match row ids).
type Persister struct {
	pool *pgxpool.Pool
}

// NewPersister wraps a pool for match/player/stats persistence.
func NewPersister(pool *pgxpool.Pool) *Persister {
	return &Persister{pool: pool}
}

// PersistResult reports whether a match was newly recorded and how many
// player stat lines were written, for the Run Recorder's counters.
type PersistResult struct {
	MatchWasNew   bool
	StatLinesNew  int
}

// Persist commits one match, its players, and their stat lines inside a
// single transaction. Returns PersistResult{MatchWasNew: false} without error
// when the match was already recorded — a prior tick (or overlapping club
// perspective) having seen it first is an expected outcome, not a failure
// (spec §4.3.2 "a match observed from two clubs' perspectives must not be
// recorded twice").
func (p *Persister) Persist(ctx context.Context, seasonID string, m upstream.Match) (PersistResult, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return PersistResult{}, fmt.Errorf("begin match tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	var matchRowID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO scheduler_match (season_id, external_match_id, played_at)
		VALUES ($1, $2, to_timestamp($3))
		RETURNING id`,
		seasonID, m.ExternalMatchID, m.Timestamp,
	).Scan(&matchRowID)
	if err != nil {
		if isUniqueViolation(err) {
			return PersistResult{MatchWasNew: false}, nil
		}
		return PersistResult{}, fmt.Errorf("insert match %s: %w", m.ExternalMatchID, err)
	}

	if err := persistClubs(ctx, tx, matchRowID, m); err != nil {
		return PersistResult{}, err
	}

	statLines, err := persistPlayers(ctx, tx, matchRowID, m)
	if err != nil {
		return PersistResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return PersistResult{}, fmt.Errorf("commit match %s: %w", m.ExternalMatchID, err)
	}
	return PersistResult{MatchWasNew: true, StatLinesNew: statLines}, nil
}

func persistClubs(ctx context.Context, tx pgx.Tx, matchRowID int64, m upstream.Match) error {
	for externalClubID, stats := range m.Clubs {
		_, err := tx.Exec(ctx, `
			INSERT INTO scheduler_match_club (match_id, external_club_id, goals, result)
			VALUES ($1, $2, $3, $4)`,
			matchRowID, externalClubID, stats.Goals, stats.Result,
		)
		if err != nil {
			return fmt.Errorf("insert match club %s: %w", externalClubID, err)
		}
	}
	return nil
}

// persistPlayers upserts each player (insert-or-refresh-gamertag) and inserts
// their stat line for this match. It only runs for a newly inserted match row
// (a match already recorded, e.g. via the opposing club's fetch, returns from
// Persist at the match insert), so a stat line conflict arises only when the
// same player appears more than once in this payload; such a line is skipped
// rather than treated as an error.
func persistPlayers(ctx context.Context, tx pgx.Tx, matchRowID int64, m upstream.Match) (int, error) {
	written := 0
	for externalClubID, roster := range m.Players {
		for externalPlayerID, payload := range roster {
			var playerRowID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO scheduler_player (external_player_id, gamertag)
				VALUES ($1, $2)
				ON CONFLICT (external_player_id) DO UPDATE SET gamertag = EXCLUDED.gamertag
				RETURNING id`,
				externalPlayerID, payload.Gamertag,
			).Scan(&playerRowID)
			if err != nil {
				return written, fmt.Errorf("upsert player %s: %w", externalPlayerID, err)
			}

			ok, err := insertStatLine(ctx, tx, matchRowID, playerRowID, externalClubID, payload)
			if err != nil {
				return written, err
			}
			if ok {
				written++
			}
		}
	}
	return written, nil
}

func insertStatLine(ctx context.Context, tx pgx.Tx, matchRowID, playerRowID int64, externalClubID string, payload upstream.PlayerStatsPayload) (bool, error) {
	cols := make([]string, 0, len(statFields)+3)
	args := make([]interface{}, 0, len(statFields)+3)
	placeholders := make([]string, 0, len(statFields)+3)

	cols = append(cols, "match_id", "player_id", "external_club_id")
	args = append(args, matchRowID, playerRowID, externalClubID)

	for _, field := range statFields {
		cols = append(cols, field)
		args = append(args, coerceNumericPtr(payload.Fields[field]))
	}
	for i := range args {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}

	query := fmt.Sprintf(`
		INSERT INTO scheduler_player_stats (%s)
		VALUES (%s)`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	_, err := tx.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert stat line for player row %d: %w", playerRowID, err)
	}
	return true, nil
}
