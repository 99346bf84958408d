package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/api/models"
	"github.com/guardian-safety/guardian/internal/api/response"
	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/movement"
	"github.com/guardian-safety/guardian/internal/threat"
	"github.com/guardian-safety/guardian/pkg/polyline"
)

// MovementHandler handles location sample ingestion.
type MovementHandler struct {
	tracker  *movement.Tracker
	analyzer *threat.Analyzer
	logger   zerolog.Logger
}

// MovementHandlerConfig holds configuration for the movement handler.
type MovementHandlerConfig struct {
	Tracker *movement.Tracker

	// Analyzer, when set, receives an out-of-cycle trigger whenever an
	// ingested sample is flagged anomalous.
	Analyzer *threat.Analyzer

	Logger zerolog.Logger
}

// NewMovementHandler creates a new MovementHandler.
func NewMovementHandler(cfg MovementHandlerConfig) *MovementHandler {
	return &MovementHandler{
		tracker:  cfg.Tracker,
		analyzer: cfg.Analyzer,
		logger:   cfg.Logger,
	}
}

// IngestSample handles POST /v1/location/samples - record one location fix.
//
// Speed and heading are derived server-side from the previous sample, so the
// client only supplies position, accuracy, and optionally a capture
// timestamp.
func (h *MovementHandler) IngestSample(w http.ResponseWriter, r *http.Request) {
	var req models.MovementSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	loc := geo.LatLng{Lat: req.Lat, Lng: req.Lng}
	if err := loc.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if req.AccuracyMeters < 0 {
		response.BadRequest(w, r, "accuracy must be non-negative", []models.FieldError{
			{Field: "accuracy", Message: "must be non-negative"},
		})
		return
	}

	ts := time.Now()
	if req.Timestamp != nil {
		ts = time.Time(*req.Timestamp)
	}

	sample, anomalous := h.tracker.Ingest(movement.Sample{
		Timestamp:      ts,
		Location:       loc,
		AccuracyMeters: req.AccuracyMeters,
	})

	triggered := false
	if anomalous && h.analyzer != nil {
		h.analyzer.Trigger()
		triggered = true
		h.logger.Warn().
			Str("user_id", GetUserID(r.Context())).
			Float64("speed_kmh", sample.SpeedKmh).
			Msg("anomalous movement sample")
	}

	response.JSON(w, r, http.StatusAccepted, models.MovementSampleResponse{
		Sample:            sample,
		Anomalous:         anomalous,
		AnalysisTriggered: triggered,
	})
}

// GetTrack handles GET /v1/location/track - the buffered movement history as
// an encoded polyline, oldest point first.
func (h *MovementHandler) GetTrack(w http.ResponseWriter, r *http.Request) {
	history := h.tracker.History()

	coords := make([]polyline.Coordinate, len(history))
	for i, s := range history {
		coords[i] = polyline.Coordinate{Lat: s.Location.Lat, Lon: s.Location.Lng}
	}

	resp := models.TrackResponse{
		Polyline:       polyline.Encode(coords),
		Samples:        len(history),
		DistanceMeters: polyline.Length(coords),
	}
	if len(history) > 0 {
		from := models.Timestamp(history[0].Timestamp)
		to := models.Timestamp(history[len(history)-1].Timestamp)
		resp.From = &from
		resp.To = &to
	}

	response.JSON(w, r, http.StatusOK, resp)
}
