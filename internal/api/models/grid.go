package models

import "github.com/guardian-safety/guardian/internal/grid"

// GridResponse is the scored tessellation for a viewport.
type GridResponse struct {
	Bounds GeoBox `json:"bounds"`
	Zoom   int    `json:"zoom"`
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`

	// Generation tags the tessellation pass; clients drop responses from a
	// superseded generation.
	Generation uint64 `json:"generation"`

	Cells []grid.Cell `json:"cells"`
}

// NewGridResponse converts a scored grid to its API shape.
func NewGridResponse(g *grid.Grid) GridResponse {
	return GridResponse{
		Bounds: GeoBox{
			North: g.Bounds.North,
			South: g.Bounds.South,
			East:  g.Bounds.East,
			West:  g.Bounds.West,
		},
		Zoom:       g.Zoom,
		Rows:       g.Rows,
		Cols:       g.Cols,
		Generation: g.Generation,
		Cells:      g.Cells,
	}
}
