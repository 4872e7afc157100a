package sequence

import (
	"testing"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/constraint"
	"github.com/depotfleet/sigec-fleet/internal/domain"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func TestEnumerate_SingletonsAndSubsets(t *testing.T) {
	v := domain.Vehicle{ID: "v1", BatteryKWh: 200, EfficiencyKWhPerMile: 0.2, ACRateKW: 20}
	routes := []domain.Route{
		{ID: "r1", PlanStart: mustParse(t, "2026-01-01T08:00"), PlanEnd: mustParse(t, "2026-01-01T09:00"), PlanMileage: 10},
		{ID: "r2", PlanStart: mustParse(t, "2026-01-01T10:00"), PlanEnd: mustParse(t, "2026-01-01T11:00"), PlanMileage: 10},
	}
	mgr := constraint.NewManager(nil, constraint.NewRouteOverlap(), constraint.NewTurnaroundStrict())

	candidates := Enumerate(
		mustParse(t, "2026-01-01T07:00"),
		[]VehicleInput{{Vehicle: v, State: domain.VehicleChargeState{SOCKWh: 100}}},
		routes,
		5,
		mgr,
		nil,
	)

	// expect 2 singletons + 1 pair = 3 feasible candidates
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.VehicleID != "v1" {
			t.Errorf("unexpected vehicle id %s", c.VehicleID)
		}
	}
}

func TestEnumerate_RejectsOverlapping(t *testing.T) {
	v := domain.Vehicle{ID: "v1", BatteryKWh: 200, EfficiencyKWhPerMile: 0.2, ACRateKW: 20}
	routes := []domain.Route{
		{ID: "r1", PlanStart: mustParse(t, "2026-01-01T08:00"), PlanEnd: mustParse(t, "2026-01-01T09:30"), PlanMileage: 10},
		{ID: "r2", PlanStart: mustParse(t, "2026-01-01T09:00"), PlanEnd: mustParse(t, "2026-01-01T10:00"), PlanMileage: 10},
	}
	mgr := constraint.NewManager(nil, constraint.NewRouteOverlap())

	candidates := Enumerate(
		mustParse(t, "2026-01-01T07:00"),
		[]VehicleInput{{Vehicle: v, State: domain.VehicleChargeState{SOCKWh: 100}}},
		routes,
		5,
		mgr,
		nil,
	)

	// only the two singletons should survive; the overlapping pair is rejected
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates (singletons only), got %d", len(candidates))
	}
	for _, c := range candidates {
		if len(c.Sequence.Routes) != 1 {
			t.Errorf("expected singleton sequence, got %d routes", len(c.Sequence.Routes))
		}
	}
}

func TestForEachSubset_Count(t *testing.T) {
	routes := make([]domain.Route, 5)
	for i := range routes {
		routes[i] = domain.Route{ID: string(rune('a' + i))}
	}
	count := 0
	forEachSubset(routes, 3, func(subset []domain.Route) { count++ })
	if count != 10 { // C(5,3)
		t.Errorf("expected 10 subsets, got %d", count)
	}
}
