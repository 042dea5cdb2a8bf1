package engine

import (
	"strings"
	"testing"

	"seaguard/internal/model"
)

// 60 minute budget: warning lands at 48 (80%), violation at 60, each once.
func TestBudgetThresholds(t *testing.T) {
	e := testEngine(t, squareZone("RZ", model.ZoneRestricted, 60, 0, 0, 10, 10))

	mustProcess(t, e, fix("AUV-1", 5, 5, at(0)))

	evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(47)))
	if len(evs) != 0 {
		t.Fatalf("47 min is under the warning line, got %v", eventTypes(evs))
	}

	evs = mustProcess(t, e, fix("AUV-1", 5, 5, at(48)))
	if len(evs) != 1 || evs[0].Type != model.EventWarning {
		t.Fatalf("expected warning at 48 min, got %v", eventTypes(evs))
	}
	if evs[0].DurationMinutes != 48 {
		t.Fatalf("warning dwell should be 48, got %v", evs[0].DurationMinutes)
	}

	// warning does not repeat
	for _, m := range []float64{50, 55, 59} {
		if evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(m))); len(evs) != 0 {
			t.Fatalf("no event expected at %v min, got %v", m, eventTypes(evs))
		}
	}

	evs = mustProcess(t, e, fix("AUV-1", 5, 5, at(60)))
	if len(evs) != 1 || evs[0].Type != model.EventViolation {
		t.Fatalf("expected violation at 60 min, got %v", eventTypes(evs))
	}
	if !strings.Contains(evs[0].Detail, "budget") {
		t.Fatalf("violation detail should name the budget: %q", evs[0].Detail)
	}

	// violation does not repeat either
	for _, m := range []float64{61, 90, 200} {
		if evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(m))); len(evs) != 0 {
			t.Fatalf("no event expected at %v min, got %v", m, eventTypes(evs))
		}
	}

	st, _ := e.Status("AUV-1")
	if st.OverallStatus != model.StatusViolation {
		t.Fatalf("overall = %s", st.OverallStatus)
	}
}

// 30 minute budget, fixes at t=0, 25, 31, 32: warning at 25, violation at
// 31, silence at 32.
func TestBudgetScenarioSparseTrack(t *testing.T) {
	e := testEngine(t, squareZone("RZ", model.ZoneRestricted, 30, 0, 0, 10, 10))

	evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(0)))
	if len(evs) != 1 || evs[0].Type != model.EventEntry {
		t.Fatalf("t=0: %v", eventTypes(evs))
	}
	evs = mustProcess(t, e, fix("AUV-1", 5, 5, at(25)))
	if len(evs) != 1 || evs[0].Type != model.EventWarning {
		t.Fatalf("t=25: %v", eventTypes(evs))
	}
	evs = mustProcess(t, e, fix("AUV-1", 5, 5, at(31)))
	if len(evs) != 1 || evs[0].Type != model.EventViolation {
		t.Fatalf("t=31: %v", eventTypes(evs))
	}
	evs = mustProcess(t, e, fix("AUV-1", 5, 5, at(32)))
	if len(evs) != 0 {
		t.Fatalf("t=32: %v", eventTypes(evs))
	}
}

// A sparse track can jump the warning line entirely.
func TestBudgetJumpStraightToViolation(t *testing.T) {
	e := testEngine(t, squareZone("RZ", model.ZoneRestricted, 30, 0, 0, 10, 10))
	mustProcess(t, e, fix("AUV-1", 5, 5, at(0)))
	evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(45)))
	if len(evs) != 1 || evs[0].Type != model.EventViolation {
		t.Fatalf("expected a single violation, got %v", eventTypes(evs))
	}
}

func TestExemptZonesNeverViolate(t *testing.T) {
	for _, zt := range []model.ZoneType{model.ZoneSafe, model.ZoneProtected} {
		e := testEngine(t, squareZone("Z", zt, 10, 0, 0, 10, 10))
		mustProcess(t, e, fix("AUV-1", 5, 5, at(0)))
		evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(500)))
		if len(evs) != 0 {
			t.Fatalf("%s zone produced %v", zt, eventTypes(evs))
		}
		st, _ := e.Status("AUV-1")
		if st.OverallStatus != model.StatusCompliant {
			t.Fatalf("%s zone standing = %s", zt, st.OverallStatus)
		}
	}
}

func TestZeroBudgetMeansUnlimited(t *testing.T) {
	e := testEngine(t, squareZone("M", model.ZoneMonitoring, 0, 0, 0, 10, 10))
	mustProcess(t, e, fix("AUV-1", 5, 5, at(0)))
	if evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(100000))); len(evs) != 0 {
		t.Fatalf("unbudgeted zone produced %v", eventTypes(evs))
	}
}

func TestWarningRatioConfigurable(t *testing.T) {
	e := New(Config{WarningRatio: 0.5})
	if err := e.LoadZones([]model.Zone{squareZone("RZ", model.ZoneRestricted, 60, 0, 0, 10, 10)}); err != nil {
		t.Fatalf("load: %v", err)
	}
	mustProcess(t, e, fix("AUV-1", 5, 5, at(0)))
	evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(30)))
	if len(evs) != 1 || evs[0].Type != model.EventWarning {
		t.Fatalf("expected warning at 50%% of budget, got %v", eventTypes(evs))
	}
}

// Budgets are read live from the snapshot, so a reload can tighten them
// mid-crossing.
func TestBudgetTightenedByReload(t *testing.T) {
	e := testEngine(t, squareZone("RZ", model.ZoneRestricted, 120, 0, 0, 10, 10))
	mustProcess(t, e, fix("AUV-1", 5, 5, at(0)))
	if evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(40))); len(evs) != 0 {
		t.Fatalf("40/120 should be quiet, got %v", eventTypes(evs))
	}
	if err := e.LoadZones([]model.Zone{squareZone("RZ", model.ZoneRestricted, 30, 0, 0, 10, 10)}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	evs := mustProcess(t, e, fix("AUV-1", 5, 5, at(41)))
	if countType(evs, model.EventViolation) != 1 {
		t.Fatalf("41/30 should violate after reload, got %v", eventTypes(evs))
	}
}
