package schedule

import (
	"testing"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
)

func TestResolveWindow_SnapsAndShrinks(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 8, 10, 0, 0, time.UTC)
	w, err := ResolveWindow(t0, 12, 6, 24) // 6 >= 12/2, so the shrink is allowed
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Start.Equal(time.Date(2026, 1, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("start not snapped up correctly: %v", w.Start)
	}
	if len(w.Slots) != 12 { // 6 hours = 12 slots
		t.Errorf("expected 12 slots for a 6h horizon, got %d", len(w.Slots))
	}
}

func TestResolveWindow_ErrorsBelowHalfTarget(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	_, err := ResolveWindow(t0, 18, 6, 24) // 6 < 18/2=9
	if err == nil {
		t.Fatalf("expected horizon-too-short error")
	}
}

func TestResolve_DropsSubThresholdSlots(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	w := Window{Start: start, Slots: domain.BuildSlots(start, 2)}
	vehicles := []VehicleInput{{Vehicle: domain.Vehicle{ID: "v1", BatteryKWh: 50}}}
	sol := solverengine.ScheduleSolution{
		PowerKW: map[string][]float64{"v1": {0.001, 7.0}},
	}

	out := Resolve(w, vehicles, sol, domain.StatusOptimal, []float64{0.1, 0.1}, nil, 0)
	if len(out.Schedules) != 1 {
		t.Fatalf("expected 1 schedule")
	}
	if len(out.Schedules[0].Slots) != 1 {
		t.Fatalf("expected only the >=0.01kW slot to survive, got %d", len(out.Schedules[0].Slots))
	}
	if out.Schedules[0].Slots[0].SlotIndex != 1 {
		t.Errorf("expected surviving slot index 1, got %d", out.Schedules[0].Slots[0].SlotIndex)
	}
}
