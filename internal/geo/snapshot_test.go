package geo

import (
	"errors"
	"math/rand"
	"testing"

	"seaguard/internal/model"
)

func zone(id string, ring model.Ring) model.Zone {
	return model.Zone{
		ID:       id,
		Name:     id,
		Type:     model.ZoneMonitoring,
		Geometry: model.Geometry{Polygons: []model.Polygon{{Exterior: ring}}},
	}
}

func TestBuildSnapshotRejectsDegenerateRing(t *testing.T) {
	z := zone("Z1", model.Ring{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}})
	_, err := BuildSnapshot([]model.Zone{z})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.ZoneID != "Z1" {
		t.Fatalf("error should name the zone, got %q", verr.ZoneID)
	}
}

func TestBuildSnapshotRejectsClosedTwoPointRing(t *testing.T) {
	// Explicitly closed ring with only two distinct vertices.
	r := model.Ring{{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 0}}
	if _, err := BuildSnapshot([]model.Zone{zone("Z1", r)}); err == nil {
		t.Fatal("two distinct vertices should not validate")
	}
}

func TestBuildSnapshotRejectsSelfIntersection(t *testing.T) {
	bowtie := model.Ring{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 2}, {Lat: 0, Lon: 2}, {Lat: 2, Lon: 0}}
	if _, err := BuildSnapshot([]model.Zone{zone("Z1", bowtie)}); err == nil {
		t.Fatal("bowtie ring should not validate")
	}
}

func TestBuildSnapshotRejectsDuplicateIDs(t *testing.T) {
	a := zone("Z1", square(0, 0, 1, 1))
	b := zone("Z1", square(5, 5, 6, 6))
	if _, err := BuildSnapshot([]model.Zone{a, b}); err == nil {
		t.Fatal("duplicate ids should not validate")
	}
}

func TestBuildSnapshotAllOrNothing(t *testing.T) {
	good := zone("GOOD", square(0, 0, 1, 1))
	bad := zone("BAD", model.Ring{{Lat: 0, Lon: 0}})
	if _, err := BuildSnapshot([]model.Zone{good, bad}); err == nil {
		t.Fatal("one bad zone must fail the whole set")
	}
}

func TestBuildSnapshotReportsEveryBadZone(t *testing.T) {
	zones := []model.Zone{
		zone("OK", square(0, 0, 1, 1)),
		zone("BAD1", model.Ring{{Lat: 0, Lon: 0}}),
		zone("BAD2", model.Ring{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 2}, {Lat: 0, Lon: 2}, {Lat: 2, Lon: 0}}),
	}
	_, err := BuildSnapshot(zones)
	var lerr *LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if len(lerr.Zones) != 2 {
		t.Fatalf("expected 2 failures, got %d: %v", len(lerr.Zones), err)
	}
	got := map[string]bool{}
	for _, ze := range lerr.Zones {
		got[ze.ZoneID] = true
	}
	if !got["BAD1"] || !got["BAD2"] {
		t.Fatalf("wrong zones reported: %v", got)
	}
}

func TestEmptySnapshot(t *testing.T) {
	s, err := BuildSnapshot(nil)
	if err != nil {
		t.Fatalf("empty set should validate: %v", err)
	}
	if got := s.Containing(model.Point{Lat: 5, Lon: 5}); got != nil {
		t.Fatalf("empty snapshot matched %d zones", len(got))
	}
}

func TestSnapshotContaining(t *testing.T) {
	zones := []model.Zone{
		zone("A", square(0, 0, 10, 10)),
		zone("B", square(5, 5, 15, 15)),
		zone("C", square(40, 40, 50, 50)),
	}
	s := MustSnapshot(zones)

	hits := s.Containing(model.Point{Lat: 7, Lon: 7})
	if len(hits) != 2 {
		t.Fatalf("overlap point should match 2 zones, got %d", len(hits))
	}
	ids := map[string]bool{}
	for _, z := range hits {
		ids[z.ID] = true
	}
	if !ids["A"] || !ids["B"] {
		t.Fatalf("wrong zones matched: %v", ids)
	}
	if got := s.Containing(model.Point{Lat: 30, Lon: 30}); got != nil {
		t.Fatalf("gap point matched %d zones", len(got))
	}
}

// The grid may only narrow the search, never change the answer: snapshot
// lookup must equal a brute-force scan over every zone.
func TestSnapshotMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	zones := make([]model.Zone, 0, 40)
	for i := 0; i < 40; i++ {
		minLat := rng.Float64()*160 - 80
		minLon := rng.Float64()*340 - 170
		zones = append(zones, zone(
			string(rune('A'+i%26))+string(rune('0'+i/26)),
			square(minLat, minLon, minLat+rng.Float64()*20, minLon+rng.Float64()*20),
		))
	}
	s := MustSnapshot(zones)
	for i := 0; i < 5000; i++ {
		p := model.Point{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
		want := map[string]bool{}
		for _, z := range zones {
			if GeometryContains(p, z.Geometry) {
				want[z.ID] = true
			}
		}
		got := map[string]bool{}
		for _, z := range s.Containing(p) {
			got[z.ID] = true
		}
		if len(got) != len(want) {
			t.Fatalf("point %+v: snapshot found %v, brute force found %v", p, got, want)
		}
		for id := range want {
			if !got[id] {
				t.Fatalf("point %+v: snapshot missed zone %s", p, id)
			}
		}
	}
}

func TestZoneByID(t *testing.T) {
	s := MustSnapshot([]model.Zone{zone("A", square(0, 0, 1, 1))})
	if _, ok := s.ZoneByID("A"); !ok {
		t.Fatal("known id not found")
	}
	if _, ok := s.ZoneByID("missing"); ok {
		t.Fatal("unknown id found")
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d", s.Len())
	}
}
