package handler

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/api/models"
	"github.com/guardian-safety/guardian/internal/api/response"
	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/safety"
)

// Analysis radius limits in kilometers.
const (
	defaultRadiusKm = 2.0
	maxRadiusKm     = 10.0
)

// SafetyHandler handles composite safety analysis requests.
type SafetyHandler struct {
	safety *safety.Service
	logger zerolog.Logger
}

// SafetyHandlerConfig holds configuration for the safety handler.
type SafetyHandlerConfig struct {
	Safety *safety.Service
	Logger zerolog.Logger
}

// NewSafetyHandler creates a new SafetyHandler.
func NewSafetyHandler(cfg SafetyHandlerConfig) *SafetyHandler {
	return &SafetyHandler{safety: cfg.Safety, logger: cfg.Logger}
}

// GetAnalysis handles GET /v1/safety/analysis - composite safety profile for
// a point.
//
// Query parameters: lat and lng (required), radius in km (optional, default
// 2.0, capped at 10.0), priority ("normal" or "high", default "normal").
func (h *SafetyHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	var fieldErrors []models.FieldError

	lat, err := parseFloatParam(r, "lat", &fieldErrors)
	lng, err2 := parseFloatParam(r, "lng", &fieldErrors)
	if err != nil || err2 != nil {
		response.BadRequest(w, r, "invalid location parameters", fieldErrors)
		return
	}

	loc := geo.LatLng{Lat: lat, Lng: lng}
	if err := loc.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	radiusKm := defaultRadiusKm
	if raw := r.URL.Query().Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			response.BadRequest(w, r, "radius must be a positive number", nil)
			return
		}
		radiusKm = v
	}
	if radiusKm > maxRadiusKm {
		radiusKm = maxRadiusKm
	}

	priority := safety.PriorityNormal
	switch r.URL.Query().Get("priority") {
	case "", "normal":
	case "high":
		priority = safety.PriorityHigh
	default:
		response.BadRequest(w, r, "priority must be \"normal\" or \"high\"", nil)
		return
	}

	metrics, err := h.safety.Analyze(r.Context(), loc, radiusKm, priority)
	if err != nil {
		h.logger.Error().Err(err).
			Float64("lat", loc.Lat).
			Float64("lng", loc.Lng).
			Msg("safety analysis failed")
		response.ServiceUnavailable(w, r, "safety analysis is temporarily unavailable")
		return
	}

	response.JSON(w, r, http.StatusOK, models.AnalysisResponse{
		Location: models.Point{Lat: loc.Lat, Lng: loc.Lng},
		RadiusKm: radiusKm,
		Priority: string(priority),
		Metrics:  metrics,
	})
}
