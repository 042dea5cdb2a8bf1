package geo

import "seaguard/internal/model"

// gridIndex is a uniform grid over the union bounding box of all zones.
// Each cell lists the ordinals of zones whose box overlaps the cell, so a
// lookup returns a candidate superset that still needs the exact test.
type gridIndex struct {
	bounds       Bounds
	cols, rows   int
	cellW, cellH float64
	cells        [][]int
}

// gridDim picks a power-of-two resolution that keeps cells roughly
// proportional to the zone count.
func gridDim(n int) int {
	dim := 8
	for dim < 64 && dim*dim < n*16 {
		dim *= 2
	}
	return dim
}

func buildGrid(bounds []Bounds) *gridIndex {
	if len(bounds) == 0 {
		return nil
	}
	union := bounds[0]
	for _, b := range bounds[1:] {
		union.merge(b)
	}
	dim := gridDim(len(bounds))
	g := &gridIndex{
		bounds: union,
		cols:   dim,
		rows:   dim,
		cells:  make([][]int, dim*dim),
	}
	g.cellW = (union.MaxLon - union.MinLon) / float64(dim)
	g.cellH = (union.MaxLat - union.MinLat) / float64(dim)
	for i, b := range bounds {
		c0, r0 := g.cellOf(b.MinLon, b.MinLat)
		c1, r1 := g.cellOf(b.MaxLon, b.MaxLat)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				idx := r*g.cols + c
				g.cells[idx] = append(g.cells[idx], i)
			}
		}
	}
	return g
}

// cellOf clamps into the grid so edge coordinates land in a real cell.
func (g *gridIndex) cellOf(lon, lat float64) (col, row int) {
	if g.cellW > 0 {
		col = int((lon - g.bounds.MinLon) / g.cellW)
	}
	if g.cellH > 0 {
		row = int((lat - g.bounds.MinLat) / g.cellH)
	}
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// candidates returns the zone ordinals that may contain the point. Points
// outside the union box match nothing.
func (g *gridIndex) candidates(p model.Point) []int {
	if g == nil || !g.bounds.Contains(p) {
		return nil
	}
	col, row := g.cellOf(p.Lon, p.Lat)
	return g.cells[row*g.cols+col]
}
