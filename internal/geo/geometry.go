// Package geo implements point-in-polygon containment and the spatial index
// used to resolve which zones contain a position.
package geo

import (
	"seaguard/internal/model"
)

// eps biases the ray crossing test so vertices and horizontal edges resolve
// deterministically. Points exactly on a boundary classify consistently for
// the lifetime of a snapshot.
const eps = 1e-12

// pointInRing runs a crossing-number test with a ray cast toward +lon.
// Rings may or may not repeat the first vertex; the closing edge is implied.
func pointInRing(p model.Point, ring model.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	in := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := a.Lon + (p.Lat-a.Lat)*(b.Lon-a.Lon)/(b.Lat-a.Lat)
			if p.Lon < x+eps {
				in = !in
			}
		}
		j = i
	}
	return in
}

// windingContains is the winding-number formulation of the same test. It is
// kept as an independent oracle for the containment tests.
func windingContains(p model.Point, ring model.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	wn := 0
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		if a.Lat <= p.Lat {
			if b.Lat > p.Lat && isLeft(a, b, p) > 0 {
				wn++
			}
		} else if b.Lat <= p.Lat && isLeft(a, b, p) < 0 {
			wn--
		}
	}
	return wn != 0
}

func isLeft(a, b, p model.Point) float64 {
	return (b.Lon-a.Lon)*(p.Lat-a.Lat) - (p.Lon-a.Lon)*(b.Lat-a.Lat)
}

// polygonContains applies hole semantics: inside the exterior ring and
// outside every hole.
func polygonContains(p model.Point, poly model.Polygon) bool {
	if !pointInRing(p, poly.Exterior) {
		return false
	}
	for _, h := range poly.Holes {
		if pointInRing(p, h) {
			return false
		}
	}
	return true
}

// GeometryContains reports whether p is inside at least one polygon part.
func GeometryContains(p model.Point, g model.Geometry) bool {
	for _, poly := range g.Polygons {
		if polygonContains(p, poly) {
			return true
		}
	}
	return false
}

// Bounds is an axis-aligned bounding box in degrees.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// Contains reports whether p falls inside the box, edges included.
func (b Bounds) Contains(p model.Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

func (b *Bounds) extend(p model.Point) {
	if p.Lat < b.MinLat {
		b.MinLat = p.Lat
	}
	if p.Lat > b.MaxLat {
		b.MaxLat = p.Lat
	}
	if p.Lon < b.MinLon {
		b.MinLon = p.Lon
	}
	if p.Lon > b.MaxLon {
		b.MaxLon = p.Lon
	}
}

func (b *Bounds) merge(o Bounds) {
	b.extend(model.Point{Lat: o.MinLat, Lon: o.MinLon})
	b.extend(model.Point{Lat: o.MaxLat, Lon: o.MaxLon})
}

// geometryBounds computes the box enclosing every exterior ring. Holes never
// widen the box.
func geometryBounds(g model.Geometry) Bounds {
	b := Bounds{MinLat: 91, MinLon: 181, MaxLat: -91, MaxLon: -181}
	for _, poly := range g.Polygons {
		for _, p := range poly.Exterior {
			b.extend(p)
		}
	}
	return b
}
