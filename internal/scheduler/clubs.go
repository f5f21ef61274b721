package scheduler

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClubRoster is the narrow, read-only contract this package needs from the
// out-of-scope club/season management layer (spec §1): given a season, which
// upstream club ids to poll and under what platform tag.
type ClubRoster struct {
	pool *pgxpool.Pool
}

// NewClubRoster wraps a pool for the season_clubs lookup.
func NewClubRoster(pool *pgxpool.Pool) *ClubRoster {
	return &ClubRoster{pool: pool}
}

// ForSeason returns every club registered to a season. external_club_id is
// nullable: a club added to a season by name only, before its upstream id has
// ever been resolved, surfaces as Club.ExternalClubID == 0, which the Job
// treats as "resolve by name before first fetch" (spec §4.1, §4.5 step 2).
func (r *ClubRoster) ForSeason(ctx context.Context, seasonID string) ([]Club, error) {
	rows, err := r.pool.Query(ctx, "season_clubs", seasonID)
	if err != nil {
		return nil, fmt.Errorf("list clubs for season %s: %w", seasonID, err)
	}
	defer rows.Close()

	var clubs []Club
	for rows.Next() {
		var c Club
		var externalClubID *int
		if err := rows.Scan(&externalClubID, &c.Name, &c.Platform); err != nil {
			return nil, fmt.Errorf("scan club: %w", err)
		}
		if externalClubID != nil {
			c.ExternalClubID = *externalClubID
		}
		clubs = append(clubs, c)
	}
	return clubs, rows.Err()
}
