// Package sequence enumerates candidate route sequences per vehicle and
// filters them through the constraint engine (§4.3).
package sequence

import (
	"sort"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/constraint"
	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
)

// Candidate is one feasible (vehicle, sequence) pair with its pipeline
// cost, the enumerator's output tuple (§4.3).
type Candidate struct {
	VehicleID string
	Sequence  domain.RouteSequence
	Cost      float64
	Breakdown []constraint.Verdict
}

// VehicleInput bundles a vehicle with the as-of context the constraint
// manager needs to evaluate sequences for it.
type VehicleInput struct {
	Vehicle domain.Vehicle
	State   domain.VehicleChargeState
	Charger domain.Charger
}

// Enumerate generates, for every vehicle, every singleton and k-subset
// (2 <= k <= maxRoutesPerVehicle) of routes sorted by plan_start, evaluates
// each against the constraint manager, and returns the feasible ones
// (§4.3).
//
// Complexity is O(|vehicles| * sum_{k<=K} C(n,k)); callers must keep n and
// K small — MAF caps K at 5 by default.
func Enumerate(
	t time.Time,
	vehicles []VehicleInput,
	routes []domain.Route,
	maxRoutesPerVehicle int,
	mgr *constraint.Manager,
	siteCfg *maf.SiteConfig,
) []Candidate {
	sorted := make([]domain.Route, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PlanStart.Before(sorted[j].PlanStart)
	})

	k := maxRoutesPerVehicle
	if k > len(sorted) {
		k = len(sorted)
	}
	if k < 1 {
		k = 1
	}

	var candidates []Candidate
	for _, vi := range vehicles {
		ctx := constraint.Context{
			T:         t,
			State:     vi.State,
			Charger:   vi.Charger,
			SiteCfg:   siteCfg,
			AllRoutes: sorted,
		}
		for size := 1; size <= k; size++ {
			forEachSubset(sorted, size, func(subset []domain.Route) {
				seq := domain.RouteSequence{VehicleID: vi.Vehicle.ID, Routes: subset}
				res := mgr.Evaluate(vi.Vehicle, seq, ctx)
				if !res.Feasible {
					return
				}
				candidates = append(candidates, Candidate{
					VehicleID: vi.Vehicle.ID,
					Sequence:  cloneSeq(seq),
					Cost:      res.TotalCost,
					Breakdown: res.Breakdown,
				})
			})
		}
	}
	return candidates
}

func cloneSeq(seq domain.RouteSequence) domain.RouteSequence {
	routes := make([]domain.Route, len(seq.Routes))
	copy(routes, seq.Routes)
	return domain.RouteSequence{VehicleID: seq.VehicleID, Routes: routes}
}

// forEachSubset calls fn once for every size-length subset of routes, in
// the routes' existing (plan_start) order, via standard combinatorial
// index generation.
func forEachSubset(routes []domain.Route, size int, fn func(subset []domain.Route)) {
	n := len(routes)
	if size > n {
		return
	}
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}

	for {
		subset := make([]domain.Route, size)
		for i, p := range idx {
			subset[i] = routes[p]
		}
		fn(subset)

		// advance to the next combination
		i := size - 1
		for i >= 0 && idx[i] == n-size+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < size; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
