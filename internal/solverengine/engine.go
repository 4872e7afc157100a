// Package solverengine abstracts the "commercial constraint engine" a run
// targets: a pluggable optimization backend reached over HTTP when
// licensed and reachable, with a fully-functional greedy fallback that
// keeps every run able to complete (§9 "heterogeneous solver invocation").
package solverengine

import (
	"context"

	"github.com/depotfleet/sigec-fleet/internal/domain"
)

// AllocationProblem is the set-partition problem handed to the engine
// (§4.4).
type AllocationProblem struct {
	SiteID      string
	Candidates  []CandidateSequence
	RouteIDs    []string
	WRoute      float64
	TimeLimitMS int
}

// CandidateSequence is one feasible (vehicle, sequence, cost) tuple from
// the enumerator, in the shape the engine needs.
type CandidateSequence struct {
	VehicleID string
	RouteIDs  []string
	Cost      float64
}

// AllocationSolution is the engine's answer to an AllocationProblem.
type AllocationSolution struct {
	SelectedCandidates []int // indices into AllocationProblem.Candidates
	TotalScore         float64
}

// ScheduleProblem is the time-slotted charge-scheduling problem (§4.5).
type ScheduleProblem struct {
	SiteID        string
	WindowStart   WindowTime
	SlotCount     int
	Vehicles      []ScheduleVehicle
	SiteCapKW     []float64 // per-slot headroom, len == SlotCount
	PriceKW       []float64 // per-slot price, len == SlotCount
	IsTriad       []bool    // per-slot TRIAD flag, len == SlotCount
	TimeLimitMS   int
	ShortfallLambda float64
	// TriadPenalty is added to a slot's effective price when it falls in a
	// TRIAD window, shaping the objective away from those slots (§4.5).
	TriadPenalty float64
	// SynthAlpha weights the earlier-is-better synth(t) tiebreaker added to
	// every slot's effective price (§4.5).
	SynthAlpha float64
}

// WindowTime avoids importing time into the wire-ish problem shape while
// still letting the engine reason about slot offsets; callers populate it
// from domain.TimeSlot.
type WindowTime struct {
	UnixSeconds int64
}

// ScheduleVehicle is one vehicle's scheduling inputs.
type ScheduleVehicle struct {
	VehicleID      string
	RateKW         float64
	BatteryKWh     float64
	SOCKWh         float64
	TargetSOCKWh   float64
	Unavailable    []bool // len == SlotCount, true when vehicle cannot charge in that slot
	Checkpoints    []Checkpoint
	HasRoute       bool
}

// Checkpoint is a (slot, required cumulative energy) pair a vehicle's
// schedule must satisfy by the given slot (§4.5).
type Checkpoint struct {
	SlotIndex       int
	RequiredEnergy  float64
}

// ScheduleSolution is the engine's answer to a ScheduleProblem.
type ScheduleSolution struct {
	PowerKW    map[string][]float64 // vehicle id -> per-slot power, len == SlotCount
	ShortfallKWh map[string]float64
	ObjectiveValue float64
}

// UnifiedProblem fuses both problems for joint solving (§4.6).
type UnifiedProblem struct {
	Allocation AllocationProblem
	Schedule   ScheduleProblem
	Alpha      float64
	Beta       float64
}

// UnifiedSolution fuses both solutions.
type UnifiedSolution struct {
	Allocation AllocationSolution
	Schedule   ScheduleSolution
}

// Engine is the pluggable solver backend every controller targets.
type Engine interface {
	Name() string
	SolveAllocation(ctx context.Context, p AllocationProblem) (AllocationSolution, domain.SolveStatus, error)
	SolveSchedule(ctx context.Context, p ScheduleProblem) (ScheduleSolution, domain.SolveStatus, error)
	SolveUnified(ctx context.Context, p UnifiedProblem) (UnifiedSolution, domain.SolveStatus, error)
}
