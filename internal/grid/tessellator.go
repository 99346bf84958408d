package grid

import (
	"fmt"
	"math"
	"time"

	"github.com/guardian-safety/guardian/internal/geo"
)

// Tessellate partitions a viewport into a regular grid of unscored cell
// shells sized by the zoom tier.
//
// Cell spans are derived by dividing the viewport extent evenly by the
// computed dimensions, so the cells tile the bounds exactly with no gaps or
// overlaps even after the per-axis clamp.
func Tessellate(bounds geo.Bounds, zoom int) (*Grid, error) {
	if bounds.North < bounds.South || bounds.East < bounds.West {
		return nil, fmt.Errorf("%w: unnormalized viewport", geo.ErrInvalidBounds)
	}
	for _, v := range []float64{bounds.North, bounds.South, bounds.East, bounds.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite viewport edge", geo.ErrInvalidBounds)
		}
	}

	tier := TierForZoom(zoom)
	center := bounds.Center()
	cellLatDeg, cellLngDeg := geo.DestinationOffset(center.Lat, tier.CellSizeMeters)

	rows := axisCells(bounds.LatSpan(), cellLatDeg, tier.MaxCellsPerAxis)
	cols := axisCells(bounds.LngSpan(), cellLngDeg, tier.MaxCellsPerAxis)

	latStep := bounds.LatSpan() / float64(rows)
	lngStep := bounds.LngSpan() / float64(cols)

	now := time.Now()
	cells := make([]Cell, 0, rows*cols)
	for row := 0; row < rows; row++ {
		// Row 0 is the northernmost band.
		north := bounds.North - float64(row)*latStep
		south := north - latStep
		for col := 0; col < cols; col++ {
			west := bounds.West + float64(col)*lngStep
			east := west + lngStep
			cellBounds := geo.Bounds{North: north, South: south, East: east, West: west}
			cells = append(cells, Cell{
				ID:         fmt.Sprintf("%d-%d", row, col),
				Bounds:     cellBounds,
				Center:     cellBounds.Center(),
				Row:        row,
				Col:        col,
				LastUpdate: now,
			})
		}
	}

	return &Grid{
		Bounds: bounds,
		Zoom:   zoom,
		Rows:   rows,
		Cols:   cols,
		Cells:  cells,
	}, nil
}

// axisCells computes the cell count for one axis: ceil(span/cellSize) clamped
// to [MinCellsPerAxis, maxCells]. A zero-degree span degrades to the minimum
// grid rather than failing.
func axisCells(spanDeg, cellSizeDeg float64, maxCells int) int {
	if spanDeg <= 0 || cellSizeDeg <= 0 {
		return MinCellsPerAxis
	}
	n := int(math.Ceil(spanDeg / cellSizeDeg))
	if n < MinCellsPerAxis {
		n = MinCellsPerAxis
	}
	if n > maxCells {
		n = maxCells
	}
	return n
}
