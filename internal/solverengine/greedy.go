package solverengine

import (
	"context"
	"sort"

	"github.com/depotfleet/sigec-fleet/internal/domain"
)

// TRIADEffectivePricePenalty is the fallback TRIAD penalty used only when a
// caller hands the greedy engine a ScheduleProblem with no penalty
// configured (TriadPenalty == 0), steering the fallback away from TRIAD
// windows even without an optimizer (§4.5).
const TRIADEffectivePricePenalty = 100.0

// GreedyEngine is the always-available fallback solver. It never depends
// on an external service and is what every run falls back to when the
// remote engine is unreachable or its license is unavailable (§9
// "process-wide solver license").
type GreedyEngine struct{}

func NewGreedyEngine() *GreedyEngine { return &GreedyEngine{} }

func (e *GreedyEngine) Name() string { return "greedy" }

// SolveAllocation implements §4.4's fallback: sort candidates by cost
// descending, greedily accept any whose vehicle and routes are still free.
func (e *GreedyEngine) SolveAllocation(_ context.Context, p AllocationProblem) (AllocationSolution, domain.SolveStatus, error) {
	order := make([]int, len(p.Candidates))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return p.Candidates[order[i]].Cost > p.Candidates[order[j]].Cost
	})

	usedVehicle := make(map[string]bool)
	coveredRoute := make(map[string]bool)
	var selected []int
	score := 0.0

	for _, idx := range order {
		c := p.Candidates[idx]
		if usedVehicle[c.VehicleID] {
			continue
		}
		conflict := false
		for _, rid := range c.RouteIDs {
			if coveredRoute[rid] {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		usedVehicle[c.VehicleID] = true
		for _, rid := range c.RouteIDs {
			coveredRoute[rid] = true
		}
		selected = append(selected, idx)
		score += float64(len(c.RouteIDs))*p.WRoute + c.Cost

		if len(coveredRoute) == len(p.RouteIDs) {
			break
		}
	}

	return AllocationSolution{SelectedCandidates: selected, TotalScore: score}, domain.StatusGreedyFallback, nil
}

// SolveSchedule implements §4.5's fallback: per vehicle, sort slots by
// effective price (TRIAD-penalized) and greedily fill at the vehicle's
// rate until energy need is met or slots run out.
func (e *GreedyEngine) SolveSchedule(_ context.Context, p ScheduleProblem) (ScheduleSolution, domain.SolveStatus, error) {
	power := make(map[string][]float64, len(p.Vehicles))
	shortfall := make(map[string]float64, len(p.Vehicles))
	objective := 0.0

	triadPenalty := p.TriadPenalty
	if triadPenalty == 0 {
		triadPenalty = TRIADEffectivePricePenalty
	}

	// effectivePrice mirrors the engine's (price(t)+synth(t)+triad_penalty·
	// [is_triad(t)]) objective term (§4.5): synth(t) is a tiny earlier-slot
	// tiebreaker, so among equal-price slots the fallback still prefers the
	// earliest one.
	effectivePrice := make([]float64, p.SlotCount)
	for t := 0; t < p.SlotCount; t++ {
		ep := 0.0
		if t < len(p.PriceKW) {
			ep = p.PriceKW[t]
		}
		ep += p.SynthAlpha * float64(t)
		if t < len(p.IsTriad) && p.IsTriad[t] {
			ep += triadPenalty
		}
		effectivePrice[t] = ep
	}

	remainingCap := make([]float64, p.SlotCount)
	copy(remainingCap, p.SiteCapKW)
	if len(remainingCap) < p.SlotCount {
		padded := make([]float64, p.SlotCount)
		copy(padded, remainingCap)
		remainingCap = padded
	}

	for _, v := range p.Vehicles {
		slots := make([]int, 0, p.SlotCount)
		for t := 0; t < p.SlotCount; t++ {
			if t < len(v.Unavailable) && v.Unavailable[t] {
				continue
			}
			slots = append(slots, t)
		}
		sort.Slice(slots, func(i, j int) bool { return effectivePrice[slots[i]] < effectivePrice[slots[j]] })

		needed := requiredEnergy(v)
		vPower := make([]float64, p.SlotCount)
		delivered := 0.0

		for _, t := range slots {
			if delivered >= needed {
				break
			}
			cap := remainingCap[t]
			if cap <= 0 {
				continue
			}
			rate := v.RateKW
			if rate > cap {
				rate = cap
			}
			energyThisSlot := 0.5 * rate
			if delivered+energyThisSlot > needed {
				rate = 2 * (needed - delivered)
				energyThisSlot = needed - delivered
			}
			if rate <= 0 {
				continue
			}
			vPower[t] = rate
			remainingCap[t] -= rate
			delivered += energyThisSlot
			objective += effectivePrice[t] * energyThisSlot
		}

		if delivered < needed {
			shortfall[v.VehicleID] = needed - delivered
		}
		power[v.VehicleID] = vPower
	}

	status := domain.StatusGreedyFallback
	return ScheduleSolution{PowerKW: power, ShortfallKWh: shortfall, ObjectiveValue: objective}, status, nil
}

func requiredEnergy(v ScheduleVehicle) float64 {
	target := v.TargetSOCKWh - v.SOCKWh
	if target < 0 {
		target = 0
	}
	for _, cp := range v.Checkpoints {
		if need := cp.RequiredEnergy; need > target {
			target = need
		}
	}
	return target
}

// SolveUnified runs the allocation and schedule fallbacks independently —
// the greedy path does not attempt the joint weighted objective, it simply
// composes the two standalone fallbacks (§4.6).
func (e *GreedyEngine) SolveUnified(ctx context.Context, p UnifiedProblem) (UnifiedSolution, domain.SolveStatus, error) {
	alloc, _, err := e.SolveAllocation(ctx, p.Allocation)
	if err != nil {
		return UnifiedSolution{}, domain.StatusInfeasible, err
	}
	sched, _, err := e.SolveSchedule(ctx, p.Schedule)
	if err != nil {
		return UnifiedSolution{}, domain.StatusInfeasible, err
	}
	return UnifiedSolution{Allocation: alloc, Schedule: sched}, domain.StatusGreedyFallback, nil
}
