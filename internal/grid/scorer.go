package grid

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/guardian-safety/guardian/internal/geo"
)

// Factor weights. They sum to 1.0; weightsSum guards against drift when the
// table is edited.
const (
	weightDensity    = 0.20
	weightHistorical = 0.18
	weightTimeOfDay  = 0.15
	weightLighting   = 0.12
	weightAccess     = 0.10
	weightWeather    = 0.09
	weightCrowd      = 0.08
	weightEmergency  = 0.08
)

const weightsSum = weightDensity + weightHistorical + weightTimeOfDay +
	weightLighting + weightAccess + weightWeather + weightCrowd + weightEmergency

// Neighbor smoothing blend: 70% own score, 30% average of already-scored
// cardinal neighbors.
const (
	selfBlend     = 0.70
	neighborBlend = 0.30
)

// ScorerConfig holds configuration for the cell scorer.
type ScorerConfig struct {
	// Factors supplies the per-cell sub-scores. Defaults to the synthetic
	// provider.
	Factors FactorProvider

	// Logger for scoring operations.
	Logger zerolog.Logger
}

// Scorer computes safety scores for tessellated cells.
type Scorer struct {
	factors FactorProvider
	logger  zerolog.Logger
}

// NewScorer creates a cell scorer.
func NewScorer(cfg ScorerConfig) *Scorer {
	factors := cfg.Factors
	if factors == nil {
		factors = NewSyntheticFactorProvider()
	}
	return &Scorer{factors: factors, logger: cfg.Logger}
}

// ScoreGrid scores every cell of the grid in row-major order, applying
// one-pass neighbor smoothing.
//
// Smoothing only sees neighbors scored earlier in the same pass (the cells
// above and to the left in a row-major scan), so the result is an
// order-dependent approximation rather than a converged relaxation. That is
// the intended behavior; tests pin it down.
func (s *Scorer) ScoreGrid(g *Grid, at time.Time) {
	scored := make([]bool, len(g.Cells))

	for i := range g.Cells {
		cell := &g.Cells[i]
		raw := s.rawScore(cell.Center, at)

		if avg, ok := neighborAverage(g, scored, cell.Row, cell.Col); ok {
			raw = selfBlend*raw + neighborBlend*avg
		}

		cell.Score = clampScore(raw)
		cell.ColorClass, cell.Opacity = Banding(cell.Score)
		cell.LastUpdate = at
		scored[i] = true
	}

	s.logger.Debug().
		Int("rows", g.Rows).
		Int("cols", g.Cols).
		Int("zoom", g.Zoom).
		Msg("grid scored")
}

// ScoreCell refreshes a single cell in place without smoothing against
// unscored neighbors. Used for periodic individual refresh between full
// tessellation passes.
func (s *Scorer) ScoreCell(g *Grid, row, col int, at time.Time) error {
	cell := g.At(row, col)
	if cell == nil {
		return geo.ErrInvalidBounds
	}

	raw := s.rawScore(cell.Center, at)
	if avg, ok := allNeighborAverage(g, row, col); ok {
		raw = selfBlend*raw + neighborBlend*avg
	}

	cell.Score = clampScore(raw)
	cell.ColorClass, cell.Opacity = Banding(cell.Score)
	cell.LastUpdate = at
	return nil
}

// rawScore is the weighted factor sum before smoothing.
func (s *Scorer) rawScore(loc geo.LatLng, at time.Time) float64 {
	f := s.factors.Factors(loc, at)

	sum := f.LocationDensity*weightDensity +
		f.HistoricalIncidents*weightHistorical +
		f.TimeOfDay*weightTimeOfDay +
		f.Lighting*weightLighting +
		f.Accessibility*weightAccess +
		f.Weather*weightWeather +
		f.CrowdLevel*weightCrowd +
		f.EmergencyProximity*weightEmergency

	return sum / weightsSum
}

// neighborAverage averages the cardinal neighbors already scored in the
// current pass.
func neighborAverage(g *Grid, scored []bool, row, col int) (float64, bool) {
	var sum float64
	var n int
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		r, c := row+d[0], col+d[1]
		cell := g.At(r, c)
		if cell == nil || !scored[r*g.Cols+c] {
			continue
		}
		sum += cell.Score
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// allNeighborAverage averages every materialized cardinal neighbor,
// regardless of scan position. Used for single-cell refresh where the rest
// of the grid already carries scores.
func allNeighborAverage(g *Grid, row, col int) (float64, bool) {
	var sum float64
	var n int
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		cell := g.At(row+d[0], col+d[1])
		if cell == nil || cell.Score == 0 {
			continue
		}
		sum += cell.Score
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func clampScore(v float64) float64 {
	return math.Max(MinCellScore, math.Min(MaxCellScore, v))
}
