package allocation

import (
	"testing"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/sequence"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
)

func TestResolve_ComputesCoverageAndArrivalSOC(t *testing.T) {
	start := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	route := domain.Route{ID: "r1", SiteID: "site-a", PlanStart: start, PlanEnd: end, PlanMileage: 50}
	candidates := []sequence.Candidate{
		{VehicleID: "v1", Sequence: domain.RouteSequence{VehicleID: "v1", Routes: []domain.Route{route}}, Cost: 0},
	}
	vehicles := map[string]domain.Vehicle{
		"v1": {ID: "v1", BatteryKWh: 100, EfficiencyKWhPerMile: 0.35, ACRateKW: 11},
	}
	states := map[string]domain.VehicleChargeState{
		"v1": {VehicleID: "v1", SOCKWh: 80},
	}
	sol := solverengine.AllocationSolution{SelectedCandidates: []int{0}, TotalScore: 100}

	out := Resolve(candidates, []string{"r1"}, sol, domain.StatusOptimal, vehicles, states, start.Add(-2*time.Hour), DefaultMinScore)

	if !out.Acceptable {
		t.Fatalf("expected acceptable outcome")
	}
	if len(out.Unallocated) != 0 {
		t.Errorf("expected no unallocated routes, got %v", out.Unallocated)
	}
	if len(out.Allocations) != 1 {
		t.Fatalf("expected 1 allocation row, got %d", len(out.Allocations))
	}
	// 80 kWh plus the 2h gap at 11 kW would be 102 kWh; it caps at the
	// 100 kWh battery before the route's energy is taken off.
	wantSOC := 100.0 - domain.RouteEnergyNeeded(50, 0.35)
	if out.Allocations[0].ArrivalSOCKWh != wantSOC {
		t.Errorf("arrival soc = %v, want %v", out.Allocations[0].ArrivalSOCKWh, wantSOC)
	}
}

func TestResolve_BelowMinScoreIsUnacceptable(t *testing.T) {
	sol := solverengine.AllocationSolution{TotalScore: -10}
	out := Resolve(nil, []string{"r1"}, sol, domain.StatusFeasible, nil, nil, time.Now().Add(-time.Hour), DefaultMinScore)
	if out.Acceptable {
		t.Fatalf("expected unacceptable outcome below min score")
	}
	if len(out.Unallocated) != 1 {
		t.Errorf("expected r1 to remain unallocated")
	}
}
