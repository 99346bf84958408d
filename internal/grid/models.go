// Package grid tessellates a map viewport into scored safety cells. It owns
// the zoom tier table, the per-cell factor weighting, and the color banding
// used to render the safety heatmap.
package grid

import (
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
)

// Cell is one tile of the tessellated viewport. Cells are recreated wholesale
// on viewport or zoom-tier change and refreshed in place on periodic
// re-scoring.
type Cell struct {
	// ID is "row-col" within the current tessellation.
	ID string `json:"cellId"`

	Bounds geo.Bounds `json:"bounds"`
	Center geo.LatLng `json:"center"`

	Row int `json:"row"`
	Col int `json:"col"`

	// Score is the blended safety score in [20, 95].
	Score float64 `json:"safetyScore"`

	// ColorClass and Opacity are derived from Score alone.
	ColorClass string  `json:"colorClass"`
	Opacity    float64 `json:"opacity"`

	LastUpdate time.Time `json:"lastUpdate"`
}

// Grid is the result of tessellating a viewport at a zoom tier.
type Grid struct {
	Bounds geo.Bounds `json:"bounds"`
	Zoom   int        `json:"zoom"`
	Rows   int        `json:"rows"`
	Cols   int        `json:"cols"`
	Cells  []Cell     `json:"cells"`

	// Generation tags the tessellation pass so superseded results can be
	// discarded by the caller.
	Generation uint64 `json:"generation"`
}

// At returns the cell at (row, col), or nil if out of range.
func (g *Grid) At(row, col int) *Cell {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return nil
	}
	return &g.Cells[row*g.Cols+col]
}

// TierConfig pairs a target cell size with a per-axis cell cap for a zoom
// level.
type TierConfig struct {
	CellSizeMeters  float64
	MaxCellsPerAxis int
}

// zoomTiers maps zoom levels to tessellation configs. Lookup picks the
// nearest defined zoom at or below the requested one; zooms beyond the table
// use the highest tier.
var zoomTiers = []struct {
	Zoom int
	TierConfig
}{
	{10, TierConfig{CellSizeMeters: 2000, MaxCellsPerAxis: 12}},
	{12, TierConfig{CellSizeMeters: 1000, MaxCellsPerAxis: 16}},
	{14, TierConfig{CellSizeMeters: 500, MaxCellsPerAxis: 20}},
	{16, TierConfig{CellSizeMeters: 250, MaxCellsPerAxis: 24}},
	{18, TierConfig{CellSizeMeters: 100, MaxCellsPerAxis: 28}},
}

// TierForZoom returns the tessellation config for a zoom level.
func TierForZoom(zoom int) TierConfig {
	cfg := zoomTiers[0].TierConfig
	for _, tier := range zoomTiers {
		if zoom >= tier.Zoom {
			cfg = tier.TierConfig
		}
	}
	return cfg
}

// TierChanged reports whether moving between two zoom levels crosses a tier
// boundary. Re-tessellation is only warranted when it does; minor zoom jitter
// within a tier keeps the existing grid.
func TierChanged(oldZoom, newZoom int) bool {
	return TierForZoom(oldZoom) != TierForZoom(newZoom)
}

// MinCellsPerAxis guarantees a minimum grid resolution even for degenerate
// viewports.
const MinCellsPerAxis = 5

// Score clamp range. The extremes are never reported to avoid signaling
// false certainty.
const (
	MinCellScore = 20.0
	MaxCellScore = 95.0
)

// colorBand maps a score floor to a render class and overlay opacity.
type colorBand struct {
	MinScore   float64
	ColorClass string
	Opacity    float64
}

// colorBands are ordered from safest to most dangerous. More dangerous cells
// get a louder overlay.
var colorBands = []colorBand{
	{90, "very-safe", 0.15},
	{80, "safe", 0.20},
	{70, "mostly-safe", 0.28},
	{60, "moderate", 0.35},
	{50, "caution", 0.45},
	{40, "elevated-risk", 0.55},
	{30, "danger", 0.65},
	{0, "high-danger", 0.75},
}

// Banding returns the color class and opacity for a score. It is a pure
// function of the score.
func Banding(score float64) (string, float64) {
	for _, b := range colorBands {
		if score >= b.MinScore {
			return b.ColorClass, b.Opacity
		}
	}
	last := colorBands[len(colorBands)-1]
	return last.ColorClass, last.Opacity
}
