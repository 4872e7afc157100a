package constraint

import (
	"testing"
	"time"

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

func route(t *testing.T, id, start, end string, mileage float64) domain.Route {
	return domain.Route{
		ID:          id,
		PlanStart:   mustParse(t, start),
		PlanEnd:     mustParse(t, end),
		PlanMileage: mileage,
	}
}

func TestManager_ShortCircuitsOnFirstHardFailure(t *testing.T) {
	v := domain.Vehicle{ID: "v1", BatteryKWh: 100, EfficiencyKWhPerMile: 0.3, ACRateKW: 7}
	seq := domain.RouteSequence{
		VehicleID: "v1",
		Routes: []domain.Route{
			route(t, "r1", "2026-01-01T08:00", "2026-01-01T09:00", 20),
			route(t, "r2", "2026-01-01T08:30", "2026-01-01T10:00", 20), // overlaps r1
		},
	}
	ctx := Context{T: mustParse(t, "2026-01-01T07:00")}

	m := NewManager(nil, NewRouteOverlap(), NewEnergyFeasibility())
	res := m.Evaluate(v, seq, ctx)

	if res.Feasible {
		t.Fatalf("expected infeasible result")
	}
	if len(res.Breakdown) != 1 {
		t.Fatalf("expected short-circuit after first constraint, got %d verdicts", len(res.Breakdown))
	}
	if res.Breakdown[0].Name != "route_overlap" {
		t.Fatalf("expected route_overlap to fail first, got %s", res.Breakdown[0].Name)
	}
}

func TestRouteOverlap(t *testing.T) {
	cases := []struct {
		name     string
		routes   []domain.Route
		wantHard bool
		feasible bool
	}{
		{
			name: "non-overlapping",
			routes: []domain.Route{
				route(t, "r1", "2026-01-01T08:00", "2026-01-01T09:00", 10),
				route(t, "r2", "2026-01-01T09:30", "2026-01-01T10:30", 10),
			},
			feasible: true,
		},
		{
			name: "overlapping",
			routes: []domain.Route{
				route(t, "r1", "2026-01-01T08:00", "2026-01-01T09:30", 10),
				route(t, "r2", "2026-01-01T09:00", "2026-01-01T10:00", 10),
			},
			feasible: false,
		},
	}

	c := NewRouteOverlap()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq := domain.RouteSequence{VehicleID: "v1", Routes: tc.routes}
			cost, hard := c.Evaluate(domain.Vehicle{}, seq, Context{})
			if !hard {
				t.Fatalf("expected hard=true")
			}
			feasible := cost >= 0
			if feasible != tc.feasible {
				t.Errorf("feasible = %v, want %v (cost=%v)", feasible, tc.feasible, cost)
			}
		})
	}
}

func TestTurnaroundStrict(t *testing.T) {
	c := NewTurnaroundStrict()
	seq := domain.RouteSequence{
		Routes: []domain.Route{
			route(t, "r1", "2026-01-01T08:00", "2026-01-01T09:00", 10),
			route(t, "r2", "2026-01-01T09:20", "2026-01-01T10:00", 10), // 20 min gap < 45 default
		},
	}
	cost, hard := c.Evaluate(domain.Vehicle{}, seq, Context{})
	if !hard {
		t.Fatalf("expected hard=true")
	}
	if cost >= 0 {
		t.Fatalf("expected rejection for sub-minimum gap, got cost=%v", cost)
	}
}

func TestTurnaroundPreferred_StepsPenalty(t *testing.T) {
	c := NewTurnaroundPreferred()
	seq := domain.RouteSequence{
		Routes: []domain.Route{
			route(t, "r1", "2026-01-01T08:00", "2026-01-01T09:00", 10),
			route(t, "r2", "2026-01-01T09:50", "2026-01-01T10:30", 10), // 50 min: < standard(75) and < optimal(90)
		},
	}
	cost, hard := c.Evaluate(domain.Vehicle{}, seq, Context{})
	if hard {
		t.Fatalf("expected hard=false")
	}
	if cost != -2*TurnaroundPreferredStepPenalty {
		t.Errorf("cost = %v, want %v", cost, -2*TurnaroundPreferredStepPenalty)
	}
}

func TestEnergyFeasibility(t *testing.T) {
	v := domain.Vehicle{BatteryKWh: 100, EfficiencyKWhPerMile: 1.0, ACRateKW: 10}
	seq := domain.RouteSequence{
		Routes: []domain.Route{
			route(t, "r1", "2026-01-01T08:00", "2026-01-01T09:00", 50), // needs 50*1.0*1.15 = 57.5kWh
		},
	}
	ctx := Context{
		T:     mustParse(t, "2026-01-01T08:00"),
		State: domain.VehicleChargeState{SOCKWh: 40},
	}
	c := NewEnergyFeasibility()
	cost, hard := c.Evaluate(v, seq, ctx)
	if !hard {
		t.Fatalf("expected hard=true")
	}
	if cost >= 0 {
		t.Fatalf("expected rejection: 40kWh start, no charge gap, route needs 57.5kWh")
	}
}

func TestShiftHoursStrict_SpanModeRejectsOverMax(t *testing.T) {
	seq := domain.RouteSequence{
		Routes: []domain.Route{
			route(t, "r1", "2026-01-01T06:00", "2026-01-01T14:00", 10), // 8h
			route(t, "r2", "2026-01-01T14:10", "2026-01-01T22:10", 10), // 8h, span-mode would be 16h10m (rejected)
		},
	}
	c := NewShiftHoursStrict()

	cost, hard := c.Evaluate(domain.Vehicle{}, seq, Context{})
	if !hard {
		t.Fatalf("expected hard=true")
	}
	if cost >= 0 {
		t.Errorf("expected span mode (16h10m > 16h max) to reject")
	}
}
