// Package allocation builds the set-partition allocation problem from
// enumerated candidate sequences and turns an engine solution into
// persistable RouteAllocation rows (§4.4).
package allocation

import (
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/sequence"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
)

// DefaultWRoute dominates every per-sequence cost so route count always
// wins over soft-cost tiebreaks (§4.4).
const DefaultWRoute = 1e2

// DefaultMinScore is the acceptance-gate threshold (§4.4).
const DefaultMinScore = -4.0

// BuildProblem converts enumerated candidates into the engine's wire
// shape.
func BuildProblem(siteID string, candidates []sequence.Candidate, routeIDs []string, wRoute float64, timeLimit time.Duration) solverengine.AllocationProblem {
	wired := make([]solverengine.CandidateSequence, len(candidates))
	for i, c := range candidates {
		wired[i] = solverengine.CandidateSequence{
			VehicleID: c.VehicleID,
			RouteIDs:  c.Sequence.RouteIDs(),
			Cost:      c.Cost,
		}
	}
	return solverengine.AllocationProblem{
		SiteID:      siteID,
		Candidates:  wired,
		RouteIDs:    routeIDs,
		WRoute:      wRoute,
		TimeLimitMS: int(timeLimit.Milliseconds()),
	}
}

// Outcome is the solved, acceptance-gated allocation for one run.
type Outcome struct {
	Acceptable  bool
	Allocations []domain.RouteAllocation
	Unallocated []string
	TotalScore  float64
	Status      domain.SolveStatus
}

// Resolve turns an engine solution (selected candidate indices) into
// RouteAllocation rows, computing estimated arrival and arrival SOC by
// re-simulating each selected sequence, and applies the acceptance gate
// (§4.4 "An allocation is acceptable if total_score >= min_score").
func Resolve(
	candidates []sequence.Candidate,
	allRouteIDs []string,
	sol solverengine.AllocationSolution,
	status domain.SolveStatus,
	vehicleByID map[string]domain.Vehicle,
	stateByVehicle map[string]domain.VehicleChargeState,
	t time.Time,
	minScore float64,
) Outcome {
	covered := make(map[string]bool)
	var rows []domain.RouteAllocation

	for _, idx := range sol.SelectedCandidates {
		c := candidates[idx]
		v := vehicleByID[c.VehicleID]
		soc := stateByVehicle[c.VehicleID].AvailableEnergyKWh()
		prevEnd := t

		for pos, r := range c.Sequence.Routes {
			gapHours := r.PlanStart.Sub(prevEnd).Hours()
			if gapHours > 0 {
				soc += gapHours * v.ACRateKW
				if soc > v.BatteryKWh {
					soc = v.BatteryKWh
				}
			}
			soc -= domain.RouteEnergyNeeded(r.PlanMileage, v.EfficiencyKWhPerMile)

			rows = append(rows, domain.RouteAllocation{
				RouteID:          r.ID,
				VehicleID:        c.VehicleID,
				SiteID:           r.SiteID,
				SequencePosition: pos,
				EstimatedArrival: r.PlanEnd,
				ArrivalSOCKWh:    soc,
				Cost:             c.Cost,
			})
			covered[r.ID] = true
			prevEnd = r.PlanEnd
		}
	}

	var unallocated []string
	for _, rid := range allRouteIDs {
		if !covered[rid] {
			unallocated = append(unallocated, rid)
		}
	}

	return Outcome{
		Acceptable:  sol.TotalScore >= minScore,
		Allocations: rows,
		Unallocated: unallocated,
		TotalScore:  sol.TotalScore,
		Status:      status,
	}
}
