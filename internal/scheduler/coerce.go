package scheduler

import "strconv"

// coerceNumeric normalizes one raw stat value pulled from an upstream
// PlayerStatsPayload.Fields map into a float64, or ok=false when the field is
// absent, null, or not numeric. Mirrors the teacher's provider.ExtractValue:
// coercion never raises, a bad field is simply stored as null (spec §4.3,
// "never raise: missing/unparseable fields are stored as null").
func coerceNumeric(val interface{}) (float64, bool) {
	if val == nil {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// coerceNumericPtr is coerceNumeric adapted for nullable-column insertion.
func coerceNumericPtr(val interface{}) *float64 {
	f, ok := coerceNumeric(val)
	if !ok {
		return nil
	}
	return &f
}

// statFields lists every stat family's field name the persistence layer
// extracts from PlayerStatsPayload.Fields (spec §4.3: scoring, shooting,
// passing, puck control, defense, faceoffs, time on ice, goaltending,
// positional). Kept as a simple ordered slice rather than a struct so new
// upstream fields can be added without a schema migration cycle in lockstep.
var statFields = []string{
	// Scoring
	"skgoals", "skassists", "skgwg", "skshgoals", "skshassists", "skppgoals", "skppassists",
	"skbreakawaygoals", "skbreakawayshots", "skpenaltyshotgoals", "skpenaltyshotattempts",
	// Shooting
	"skshots", "skshotpct", "skshotattempts", "skshotonnetpct",
	"skwristshotsattempts", "skwristshotsontarget",
	"skslapshotsattempts", "skslapshotsontarget",
	"skbackhandshotsattempts", "skbackhandshotsontarget",
	"skonetimershotsattempts", "skonetimershotsontarget",
	"skdeflectionshotsattempts", "skdeflectionshotsontarget",
	"skplusmin",
	// Passing
	"skpasses", "skpassattempts", "skpasspct", "skgiveaways",
	// Puck control
	"skpossession", "skdeflections", "skinterceptions", "skdekes", "skdekesmade",
	// Defense
	"skhits", "skbs", "sktakeaways", "skpim", "skpenaltiesdrawn", "skminorpenalties",
	"skmajorpenalties", "skpkclearzone", "skpenaltykillgoals", "skpenaltykillassists",
	// Faceoffs
	"skfow", "skfol", "skfopct", "skfotaken",
	// Time on ice
	"sktoi", "sktoiseconds", "sktoiperiod1", "sktoiperiod2", "sktoiperiod3",
	// Positional / overall
	"skposition", "skscore", "skrating", "skshotattemptsperiod1",
	// Goaltending
	"glsaves", "glshots", "glga", "glsavepct", "glgaa", "glshutouts", "glsoperiods",
	"gldsaves", "glbrksaves", "glbrkshots", "glpensaves", "glpenshots",
	"glpkclearzone", "glpokechecks", "gltoi", "glsoperiodtime",
}
