package upstream

import "encoding/json"

// ClubStats is the per-club slice of a match payload (goals, result, ...).
type ClubStats struct {
	Goals  *int    `json:"goals"`
	Result *string `json:"result"`
}

// PlayerStatsPayload is one player's raw per-match stat block. The upstream
// returns 60+ fields across scoring, shooting, passing, puck control,
// defense, faceoffs, time on ice, and goaltending families; they are kept as
// a raw map here and coerced field-by-field during persistence (spec §4.3).
type PlayerStatsPayload struct {
	Gamertag string                 `json:"playername"`
	Fields   map[string]interface{} `json:"-"`
}

// UnmarshalJSON captures the gamertag field directly and keeps everything
// else (including it) available as a raw field map for stat coercion.
func (p *PlayerStatsPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Fields = raw
	if name, ok := raw["playername"].(string); ok {
		p.Gamertag = name
	}
	return nil
}

// Match is one upstream match object, as returned relative to the club that
// was queried (the "perspective" described in spec §4.3.2).
type Match struct {
	ExternalMatchID string                                    `json:"matchId"`
	Timestamp       int64                                     `json:"timestamp"`
	Clubs           map[string]ClubStats                       `json:"clubs"`
	Players         map[string]map[string]PlayerStatsPayload   `json:"players"`
	Aggregate       json.RawMessage                            `json:"aggregate,omitempty"`
}

// clubSearchResult mirrors one element of the clubs/search response.
type clubSearchResult struct {
	ClubID int `json:"clubId"`
}
