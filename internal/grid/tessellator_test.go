package grid_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardian-safety/guardian/internal/geo"
	"github.com/guardian-safety/guardian/internal/grid"
)

func manhattanBounds(t *testing.T) geo.Bounds {
	t.Helper()
	b, err := geo.NewBounds(40.80, 40.70, -73.93, -74.02)
	require.NoError(t, err)
	return b
}

func TestTessellate_Dimensions(t *testing.T) {
	bounds := manhattanBounds(t)

	for _, zoom := range []int{8, 10, 12, 14, 16, 18, 22} {
		tier := grid.TierForZoom(zoom)

		g, err := grid.Tessellate(bounds, zoom)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, g.Rows, grid.MinCellsPerAxis, "zoom %d", zoom)
		assert.GreaterOrEqual(t, g.Cols, grid.MinCellsPerAxis, "zoom %d", zoom)
		assert.LessOrEqual(t, g.Rows, tier.MaxCellsPerAxis, "zoom %d", zoom)
		assert.LessOrEqual(t, g.Cols, tier.MaxCellsPerAxis, "zoom %d", zoom)
		assert.Len(t, g.Cells, g.Rows*g.Cols)
	}
}

func TestTessellate_TilesWithoutGapsOrOverlaps(t *testing.T) {
	bounds := manhattanBounds(t)

	g, err := grid.Tessellate(bounds, 14)
	require.NoError(t, err)

	latStep := bounds.LatSpan() / float64(g.Rows)
	lngStep := bounds.LngSpan() / float64(g.Cols)

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			cell := g.At(row, col)
			require.NotNil(t, cell)
			assert.Equal(t, fmt.Sprintf("%d-%d", row, col), cell.ID)

			// Each cell's edges line up exactly with its grid slot.
			assert.InDelta(t, bounds.North-float64(row)*latStep, cell.Bounds.North, 1e-9)
			assert.InDelta(t, bounds.North-float64(row+1)*latStep, cell.Bounds.South, 1e-9)
			assert.InDelta(t, bounds.West+float64(col)*lngStep, cell.Bounds.West, 1e-9)
			assert.InDelta(t, bounds.West+float64(col+1)*lngStep, cell.Bounds.East, 1e-9)
		}
	}

	// Outer cells reach the viewport edges.
	first := g.At(0, 0)
	last := g.At(g.Rows-1, g.Cols-1)
	assert.InDelta(t, bounds.North, first.Bounds.North, 1e-9)
	assert.InDelta(t, bounds.West, first.Bounds.West, 1e-9)
	assert.InDelta(t, bounds.South, last.Bounds.South, 1e-9)
	assert.InDelta(t, bounds.East, last.Bounds.East, 1e-9)
}

func TestTessellate_DegenerateViewport(t *testing.T) {
	// Zero-degree span collapses to the minimum grid instead of failing.
	b, err := geo.NewBounds(52.37, 52.37, 4.89, 4.89)
	require.NoError(t, err)

	g, err := grid.Tessellate(b, 14)
	require.NoError(t, err)
	assert.Equal(t, grid.MinCellsPerAxis, g.Rows)
	assert.Equal(t, grid.MinCellsPerAxis, g.Cols)
}

func TestTessellate_InvalidBounds(t *testing.T) {
	_, err := grid.Tessellate(geo.Bounds{North: 10, South: 20, East: 5, West: 4}, 14)
	require.ErrorIs(t, err, geo.ErrInvalidBounds)
}

func TestTierForZoom(t *testing.T) {
	tests := []struct {
		zoom     int
		wantSize float64
	}{
		{5, 2000},  // below the table: lowest tier
		{10, 2000},
		{11, 2000}, // nearest defined zoom at or below
		{13, 1000},
		{14, 500},
		{17, 250},
		{18, 100},
		{21, 100}, // beyond the table: highest tier
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantSize, grid.TierForZoom(tt.zoom).CellSizeMeters, "zoom %d", tt.zoom)
	}
}

func TestTierChanged(t *testing.T) {
	assert.False(t, grid.TierChanged(14, 15), "zoom jitter within a tier must not re-tessellate")
	assert.True(t, grid.TierChanged(14, 16))
	assert.False(t, grid.TierChanged(19, 22), "both clamp to the highest tier")
}
