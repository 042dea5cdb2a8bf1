package geo

import (
	"math/rand"
	"testing"

	"seaguard/internal/model"
)

func square(minLat, minLon, maxLat, maxLon float64) model.Ring {
	return model.Ring{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
	}
}

func TestPointInRing(t *testing.T) {
	ring := square(0, 0, 10, 10)
	cases := []struct {
		name string
		p    model.Point
		in   bool
	}{
		{"center", model.Point{Lat: 5, Lon: 5}, true},
		{"outside east", model.Point{Lat: 5, Lon: 11}, false},
		{"outside north", model.Point{Lat: 11, Lon: 5}, false},
		{"far away", model.Point{Lat: -40, Lon: 120}, false},
		{"near corner inside", model.Point{Lat: 0.001, Lon: 0.001}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pointInRing(tc.p, ring); got != tc.in {
				t.Fatalf("pointInRing(%+v) = %v, want %v", tc.p, got, tc.in)
			}
		})
	}
}

func TestPointInRingClosedAndOpenAgree(t *testing.T) {
	open := square(0, 0, 10, 10)
	closed := append(append(model.Ring{}, open...), open[0])
	pts := []model.Point{{Lat: 5, Lon: 5}, {Lat: -1, Lon: 5}, {Lat: 9.99, Lon: 0.01}}
	for _, p := range pts {
		if pointInRing(p, open) != pointInRing(p, closed) {
			t.Fatalf("open and closed ring disagree at %+v", p)
		}
	}
}

func TestConcaveRing(t *testing.T) {
	// U shape: the notch between the arms is outside.
	ring := model.Ring{
		{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}, {Lat: 10, Lon: 10},
		{Lat: 10, Lon: 7}, {Lat: 3, Lon: 7}, {Lat: 3, Lon: 3},
		{Lat: 10, Lon: 3}, {Lat: 10, Lon: 0},
	}
	if !pointInRing(model.Point{Lat: 1, Lon: 5}, ring) {
		t.Fatal("base of the U should be inside")
	}
	if pointInRing(model.Point{Lat: 6, Lon: 5}, ring) {
		t.Fatal("notch should be outside")
	}
	if !pointInRing(model.Point{Lat: 6, Lon: 1}, ring) {
		t.Fatal("left arm should be inside")
	}
}

func TestHoleSemantics(t *testing.T) {
	poly := model.Polygon{
		Exterior: square(0, 0, 10, 10),
		Holes:    []model.Ring{square(4, 4, 6, 6)},
	}
	if !polygonContains(model.Point{Lat: 2, Lon: 2}, poly) {
		t.Fatal("annulus should contain points outside the hole")
	}
	if polygonContains(model.Point{Lat: 5, Lon: 5}, poly) {
		t.Fatal("point inside the hole is outside the polygon")
	}
}

func TestMultiPolygonContains(t *testing.T) {
	g := model.Geometry{Polygons: []model.Polygon{
		{Exterior: square(0, 0, 2, 2)},
		{Exterior: square(10, 10, 12, 12)},
	}}
	if !GeometryContains(model.Point{Lat: 1, Lon: 1}, g) {
		t.Fatal("first part should contain the point")
	}
	if !GeometryContains(model.Point{Lat: 11, Lon: 11}, g) {
		t.Fatal("second part should contain the point")
	}
	if GeometryContains(model.Point{Lat: 5, Lon: 5}, g) {
		t.Fatal("gap between parts should be outside")
	}
}

// The crossing-number test and the winding-number oracle must agree for
// simple rings everywhere except exactly on the boundary.
func TestRayCastMatchesWinding(t *testing.T) {
	rings := []model.Ring{
		square(0, 0, 10, 10),
		{
			{Lat: 0, Lon: 0}, {Lat: 0, Lon: 10}, {Lat: 10, Lon: 10},
			{Lat: 10, Lon: 7}, {Lat: 3, Lon: 7}, {Lat: 3, Lon: 3},
			{Lat: 10, Lon: 3}, {Lat: 10, Lon: 0},
		},
		{
			{Lat: -5, Lon: -5}, {Lat: -2, Lon: 8}, {Lat: 6, Lon: 11},
			{Lat: 12, Lon: 2}, {Lat: 4, Lon: -6},
		},
	}
	rng := rand.New(rand.NewSource(42))
	for ri, ring := range rings {
		for i := 0; i < 2000; i++ {
			p := model.Point{Lat: rng.Float64()*30 - 10, Lon: rng.Float64()*30 - 10}
			if pointInRing(p, ring) != windingContains(p, ring) {
				t.Fatalf("ring %d: methods disagree at %+v", ri, p)
			}
		}
	}
}

func TestBoundaryDeterminism(t *testing.T) {
	ring := square(0, 0, 10, 10)
	edge := []model.Point{
		{Lat: 0, Lon: 5}, {Lat: 10, Lon: 5}, {Lat: 5, Lon: 0},
		{Lat: 5, Lon: 10}, {Lat: 0, Lon: 0}, {Lat: 10, Lon: 10},
	}
	for _, p := range edge {
		first := pointInRing(p, ring)
		for i := 0; i < 10; i++ {
			if pointInRing(p, ring) != first {
				t.Fatalf("boundary point %+v classified inconsistently", p)
			}
		}
	}
}

func TestGeometryBounds(t *testing.T) {
	g := model.Geometry{Polygons: []model.Polygon{
		{Exterior: square(-3, -4, 5, 6), Holes: []model.Ring{square(-50, -50, 50, 50)}},
		{Exterior: square(7, 1, 9, 2)},
	}}
	b := geometryBounds(g)
	want := Bounds{MinLat: -3, MinLon: -4, MaxLat: 9, MaxLon: 6}
	if b != want {
		t.Fatalf("bounds = %+v, want %+v (holes must not widen the box)", b, want)
	}
}
