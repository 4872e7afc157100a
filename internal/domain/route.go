package domain

import (
	"fmt"
	"time"
)

// RouteStatus tracks the lifecycle of a planned route.
type RouteStatus string

const (
	RouteStatusNew        RouteStatus = "New"
	RouteStatusAllocated  RouteStatus = "Allocated"
	RouteStatusUnallocated RouteStatus = "Unallocated"
)

// Route is a fixed-time, fixed-mileage delivery trip (§3). Inputs only —
// route planning itself is out of scope.
type Route struct {
	ID          string      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SiteID      string      `json:"site_id" gorm:"index;not null"`
	PlanStart   time.Time   `json:"plan_start"`
	PlanEnd     time.Time   `json:"plan_end"`
	PlanMileage float64     `json:"plan_mileage"`
	VehicleID   *string     `json:"vehicle_id,omitempty"`
	Status      RouteStatus `json:"status"`
}

// Validate enforces the route invariant: plan_start < plan_end, mileage >= 0.
func (r Route) Validate() error {
	if !r.PlanStart.Before(r.PlanEnd) {
		return fmt.Errorf("route %s: plan_start %s must be before plan_end %s", r.ID, r.PlanStart, r.PlanEnd)
	}
	if r.PlanMileage < 0 {
		return fmt.Errorf("route %s: plan_mileage %f must be non-negative", r.ID, r.PlanMileage)
	}
	return nil
}

// Duration is the route's planned time on task.
func (r Route) Duration() time.Duration {
	return r.PlanEnd.Sub(r.PlanStart)
}

// RouteSequence is an ordered, non-overlapping (after turnaround) list of
// routes assigned to one vehicle (§3, derived).
type RouteSequence struct {
	VehicleID string
	Routes    []Route
}

// Sorted reports whether the sequence is ordered by PlanStart, the sequence
// invariant required before any constraint evaluates it.
func (s RouteSequence) Sorted() bool {
	for i := 1; i < len(s.Routes); i++ {
		if s.Routes[i].PlanStart.Before(s.Routes[i-1].PlanStart) {
			return false
		}
	}
	return true
}

// RouteIDs returns the ordered list of route identifiers in the sequence.
func (s RouteSequence) RouteIDs() []string {
	ids := make([]string, len(s.Routes))
	for i, r := range s.Routes {
		ids[i] = r.ID
	}
	return ids
}

// FirstStart returns the departure time of the first route in the sequence.
func (s RouteSequence) FirstStart() time.Time {
	return s.Routes[0].PlanStart
}

// LastEnd returns the arrival time of the last route in the sequence.
func (s RouteSequence) LastEnd() time.Time {
	return s.Routes[len(s.Routes)-1].PlanEnd
}

// RouteEnergyRequirement is the per-route energy checkpoint derived for a
// vehicle within an allocated sequence (§3).
type RouteEnergyRequirement struct {
	RouteID          string
	VehicleID        string
	EnergyNeededKWh  float64
	CumulativeKWh    float64
	CheckpointTime   time.Time
}

// SafetyFactor is the multiplier applied to route mileage·efficiency to
// derive the energy a route is required to reserve (§3).
const SafetyFactor = 1.15

// RouteEnergyNeeded computes energy_needed = mileage * efficiency * safety_factor.
func RouteEnergyNeeded(mileage, efficiencyKWhPerMile float64) float64 {
	return mileage * efficiencyKWhPerMile * SafetyFactor
}

// BuildRouteEnergyRequirements derives the prefix-sum energy checkpoints for
// a sequence, in sequence order (§3: cumulative_energy non-decreasing).
func BuildRouteEnergyRequirements(seq RouteSequence, efficiencyKWhPerMile float64) []RouteEnergyRequirement {
	reqs := make([]RouteEnergyRequirement, len(seq.Routes))
	cumulative := 0.0
	for i, r := range seq.Routes {
		needed := RouteEnergyNeeded(r.PlanMileage, efficiencyKWhPerMile)
		cumulative += needed
		reqs[i] = RouteEnergyRequirement{
			RouteID:         r.ID,
			VehicleID:       seq.VehicleID,
			EnergyNeededKWh: needed,
			CumulativeKWh:   cumulative,
			CheckpointTime:  r.PlanStart,
		}
	}
	return reqs
}
