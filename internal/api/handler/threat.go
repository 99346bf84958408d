package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/api/models"
	"github.com/guardian-safety/guardian/internal/api/response"
	"github.com/guardian-safety/guardian/internal/threat"
)

// ThreatHandler handles threat alert requests.
type ThreatHandler struct {
	registry *threat.Registry
	logger   zerolog.Logger
}

// ThreatHandlerConfig holds configuration for the threat handler.
type ThreatHandlerConfig struct {
	Registry *threat.Registry
	Logger   zerolog.Logger
}

// NewThreatHandler creates a new ThreatHandler.
func NewThreatHandler(cfg ThreatHandlerConfig) *ThreatHandler {
	return &ThreatHandler{registry: cfg.Registry, logger: cfg.Logger}
}

// ListThreats handles GET /v1/threats - the active alert list, newest first.
func (h *ThreatHandler) ListThreats(w http.ResponseWriter, r *http.Request) {
	alerts := h.registry.Active()
	response.JSON(w, r, http.StatusOK, models.ThreatListResponse{
		Alerts: alerts,
		Count:  len(alerts),
	})
}

// DismissThreat handles DELETE /v1/threats/{alertId} - dismiss an active
// alert. Dismissal is permanent; the alert does not come back on the next
// analysis pass.
func (h *ThreatHandler) DismissThreat(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertId")
	if alertID == "" {
		response.BadRequest(w, r, "alertId is required", nil)
		return
	}

	if !h.registry.Dismiss(r.Context(), alertID) {
		response.NotFound(w, r, "alert not found")
		return
	}

	h.logger.Info().Str("alert_id", alertID).Msg("alert dismissed")
	response.NoContent(w, r)
}
