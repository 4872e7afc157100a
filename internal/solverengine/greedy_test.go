package solverengine

import (
	"context"
	"testing"
)

func TestGreedyEngine_SolveAllocation_PrefersHigherScore(t *testing.T) {
	e := NewGreedyEngine()
	p := AllocationProblem{
		RouteIDs: []string{"r1", "r2"},
		WRoute:   100,
		Candidates: []CandidateSequence{
			{VehicleID: "v1", RouteIDs: []string{"r1"}, Cost: -1},
			{VehicleID: "v2", RouteIDs: []string{"r2"}, Cost: -1},
			{VehicleID: "v1", RouteIDs: []string{"r1", "r2"}, Cost: -5}, // higher raw score, conflicts with both above
		},
	}

	sol, status, err := e.SolveAllocation(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "greedy_fallback" {
		t.Errorf("status = %v", status)
	}
	if len(sol.SelectedCandidates) == 0 {
		t.Fatalf("expected at least one selected candidate")
	}
}

func TestGreedyEngine_SolveSchedule_AvoidsTriadSlots(t *testing.T) {
	e := NewGreedyEngine()
	p := ScheduleProblem{
		SlotCount: 2,
		SiteCapKW: []float64{50, 50},
		PriceKW:   []float64{0.10, 0.10},
		IsTriad:   []bool{true, false},
		Vehicles: []ScheduleVehicle{
			{VehicleID: "v1", RateKW: 10, BatteryKWh: 50, SOCKWh: 0, TargetSOCKWh: 5},
		},
	}

	sol, _, err := e.SolveSchedule(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	power := sol.PowerKW["v1"]
	if power[0] != 0 {
		t.Errorf("expected no charging in TRIAD slot 0, got %v", power[0])
	}
	if power[1] <= 0 {
		t.Errorf("expected charging in non-TRIAD slot 1, got %v", power[1])
	}
}

func TestGreedyEngine_SolveSchedule_UsesConfiguredTriadPenalty(t *testing.T) {
	e := NewGreedyEngine()
	// A steep configured penalty should push all charging off the TRIAD
	// slot even though it is individually cheaper and capacity is tight
	// enough that the fallback can't use both slots.
	p := ScheduleProblem{
		SlotCount:    2,
		SiteCapKW:    []float64{10, 10},
		PriceKW:      []float64{0.01, 0.50},
		IsTriad:      []bool{true, false},
		TriadPenalty: 1000,
		Vehicles: []ScheduleVehicle{
			{VehicleID: "v1", RateKW: 10, BatteryKWh: 50, SOCKWh: 0, TargetSOCKWh: 2.5},
		},
	}

	sol, _, err := e.SolveSchedule(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	power := sol.PowerKW["v1"]
	if power[0] != 0 {
		t.Errorf("expected the configured TRIAD penalty to steer charging away from slot 0, got %v", power[0])
	}
	if power[1] <= 0 {
		t.Errorf("expected charging in slot 1, got %v", power[1])
	}
}

func TestGreedyEngine_SolveSchedule_ReportsShortfall(t *testing.T) {
	e := NewGreedyEngine()
	p := ScheduleProblem{
		SlotCount: 1,
		SiteCapKW: []float64{5},
		PriceKW:   []float64{0.10},
		Vehicles: []ScheduleVehicle{
			{VehicleID: "v1", RateKW: 10, BatteryKWh: 50, SOCKWh: 0, TargetSOCKWh: 20},
		},
	}

	sol, _, err := e.SolveSchedule(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.ShortfallKWh["v1"] <= 0 {
		t.Errorf("expected a reported shortfall, got %v", sol.ShortfallKWh["v1"])
	}
}
