// Package api is the thin, read-only operator HTTP surface described in
// spec §4.6/§6.2: listing configs and run history for observability. It is
// NOT the lifecycle-mutation API (create/start/pause/resume/stop/delete) —
// that surface belongs to the external, out-of-scope collaborator named in
// spec §1; this package exists only so an operator (or that external
// service) can inspect scheduler state without going through ingestctl.
package api

import (
	"net/http"
	"strconv"

	"github.com/rinkvault/scheduler/internal/api/respond"
	"github.com/rinkvault/scheduler/internal/scheduler"
)

// Handler holds the Manager every read-only endpoint queries.
type Handler struct {
	manager *scheduler.Manager
}

// NewHandler creates a Handler bound to a Manager.
func NewHandler(manager *scheduler.Manager) *Handler {
	return &Handler{manager: manager}
}

// Root serves basic service info at /.
// @Summary Operator surface info
// @Description Returns service name, status, and links to the listing endpoints.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"name":   "rinkvault ingestion scheduler",
		"status": "running",
		"docs":   "/docs",
	})
}

// HealthCheck reports liveness only; it does not touch the database.
// @Summary Liveness probe
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// ListConfigs lists every season's scheduler state.
// @Summary List scheduler configs
// @Tags configs
// @Produce json
// @Success 200 {array} scheduler.Summary
// @Router /configs [get]
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.manager.ListConfigs(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, summaries)
}

// ListRuns lists recent runs for one season.
// @Summary List runs for a season
// @Tags runs
// @Produce json
// @Param season_id path string true "season id"
// @Param limit query int false "max rows (default 50)"
// @Success 200 {array} scheduler.Run
// @Router /configs/{season_id}/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request, seasonID string, rawLimit string) {
	limit := 50
	if rawLimit != "" {
		if n, err := strconv.Atoi(rawLimit); err == nil {
			limit = n
		}
	}
	runs, err := h.manager.ListRuns(r.Context(), seasonID, limit)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	if runs == nil {
		runs = []scheduler.Run{}
	}
	respond.WriteJSON(w, http.StatusOK, runs)
}
