package handler

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/api/models"
	"github.com/guardian-safety/guardian/internal/api/response"
	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/grid"
)

// errMissingParam marks a required query parameter that was not supplied.
var errMissingParam = errors.New("missing query parameter")

// GridHandler handles viewport tessellation requests.
type GridHandler struct {
	scorer *grid.Scorer
	logger zerolog.Logger

	mu         sync.Mutex
	lastZoom   int
	generation uint64
}

// GridHandlerConfig holds configuration for the grid handler.
type GridHandlerConfig struct {
	Scorer *grid.Scorer
	Logger zerolog.Logger
}

// NewGridHandler creates a new GridHandler.
func NewGridHandler(cfg GridHandlerConfig) *GridHandler {
	return &GridHandler{
		scorer:   cfg.Scorer,
		logger:   cfg.Logger,
		lastZoom: -1,
	}
}

// GetGrid handles GET /v1/grid - tessellate and score the requested viewport.
//
// Query parameters: north, south, east, west (degrees) and zoom (integer map
// zoom level). Every parameter is required.
func (h *GridHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	var fieldErrors []models.FieldError

	north, err := parseFloatParam(r, "north", &fieldErrors)
	south, err2 := parseFloatParam(r, "south", &fieldErrors)
	east, err3 := parseFloatParam(r, "east", &fieldErrors)
	west, err4 := parseFloatParam(r, "west", &fieldErrors)
	zoom, err5 := parseIntParam(r, "zoom", &fieldErrors)
	if err != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		response.BadRequest(w, r, "invalid viewport parameters", fieldErrors)
		return
	}

	bounds, err := geo.NewBounds(north, south, east, west)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	g, err := grid.Tessellate(bounds, zoom)
	if err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	g.Generation = h.nextGeneration(zoom)
	h.scorer.ScoreGrid(g, time.Now())

	h.logger.Debug().
		Int("rows", g.Rows).
		Int("cols", g.Cols).
		Int("zoom", zoom).
		Uint64("generation", g.Generation).
		Msg("viewport tessellated")

	response.JSON(w, r, http.StatusOK, models.NewGridResponse(g))
}

// nextGeneration advances the tessellation generation. Crossing a zoom tier
// boundary invalidates every in-flight response, so the generation always
// moves forward and clients compare against the newest value they hold.
func (h *GridHandler) nextGeneration(zoom int) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lastZoom < 0 || grid.TierChanged(h.lastZoom, zoom) {
		h.generation++
	}
	h.lastZoom = zoom
	return h.generation
}

// parseFloatParam parses a required float query parameter, appending a field
// error on failure.
func parseFloatParam(r *http.Request, name string, fieldErrors *[]models.FieldError) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		*fieldErrors = append(*fieldErrors, models.FieldError{Field: name, Message: "is required"})
		return 0, errMissingParam
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*fieldErrors = append(*fieldErrors, models.FieldError{Field: name, Message: "must be a number"})
		return 0, err
	}
	return v, nil
}

// parseIntParam parses a required integer query parameter, appending a field
// error on failure.
func parseIntParam(r *http.Request, name string, fieldErrors *[]models.FieldError) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		*fieldErrors = append(*fieldErrors, models.FieldError{Field: name, Message: "is required"})
		return 0, errMissingParam
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*fieldErrors = append(*fieldErrors, models.FieldError{Field: name, Message: "must be an integer"})
		return 0, err
	}
	return v, nil
}
