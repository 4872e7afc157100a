package domain

import "time"

// VehicleChargeSchedule is the per-vehicle bundle produced by the scheduling
// solver (§3).
type VehicleChargeSchedule struct {
	VehicleID       string                   `json:"vehicle_id"`
	InitialSOCKWh   float64                  `json:"initial_soc_kwh"`
	TargetSOCKWh    float64                  `json:"target_soc_kwh"`
	EnergyScheduled float64                  `json:"energy_scheduled_kwh"`
	Slots           []ChargeSlot             `json:"slots"`
	Checkpoints     []RouteEnergyRequirement `json:"checkpoints,omitempty"`
	ChargerID       string                   `json:"charger_id,omitempty"`
	DCBound         bool                     `json:"dc_bound"`
	ShortfallKWh    float64                  `json:"shortfall_kwh,omitempty"`
}

// FinalSOCKWh returns the SOC the vehicle ends the window with, given the
// schedule's scheduled energy.
func (s VehicleChargeSchedule) FinalSOCKWh() float64 {
	return s.InitialSOCKWh + s.EnergyScheduled
}

// RunStatus is the lifecycle status shared by monitor header records (§3).
type RunStatus string

const (
	RunStatusNew             RunStatus = "N"
	RunStatusRunning         RunStatus = "R"
	RunStatusAccepted        RunStatus = "A"
	RunStatusFailed          RunStatus = "F"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusValidationError RunStatus = "validation_failed"
)

// SolveMode selects which stage(s) of the pipeline a run exercises.
type SolveMode string

const (
	ModeAllocationOnly SolveMode = "allocation_only"
	ModeSchedulingOnly SolveMode = "scheduling_only"
	ModeIntegrated     SolveMode = "integrated"
)

// SolveStatus communicates how a solution was produced (§7).
type SolveStatus string

const (
	StatusOptimal        SolveStatus = "optimal"
	StatusFeasible       SolveStatus = "feasible"
	StatusGreedyFallback SolveStatus = "greedy_fallback"
	StatusInfeasible     SolveStatus = "infeasible"
)

// RouteAllocation is a covered route's assignment, as derived by the
// allocation solver (§4.4).
type RouteAllocation struct {
	RouteID           string    `json:"route_id" gorm:"index"`
	VehicleID         string    `json:"vehicle_id" gorm:"index"`
	SiteID            string    `json:"site_id" gorm:"index"`
	SequencePosition  int       `json:"sequence_position"`
	EstimatedArrival  time.Time `json:"estimated_arrival"`
	ArrivalSOCKWh     float64   `json:"arrival_soc_kwh"`
	Cost              float64   `json:"cost"`
}

// AllocationMonitor is the header record for one allocation run (§3).
type AllocationMonitor struct {
	ID                     string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SiteID                 string    `json:"site_id" gorm:"index"`
	Status                 RunStatus `json:"status"`
	TotalScore             float64   `json:"total_score"`
	RoutesInWindow         int       `json:"routes_in_window"`
	RoutesAllocated        int       `json:"routes_allocated"`
	RoutesOverlappingCount int       `json:"routes_overlapping_count"`
	SolveStatus            SolveStatus `json:"solve_status"`
	CreatedAt              time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// AllocationResult is the fleet-wide output of one allocation run (§3).
type AllocationResult struct {
	Monitor     AllocationMonitor
	Allocations []RouteAllocation
	Unallocated []string
}

// Scheduler is the header record for one scheduling run (§3).
type Scheduler struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SiteID           string    `json:"site_id" gorm:"index"`
	Status           RunStatus `json:"status"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
	ObjectiveValue   float64   `json:"objective_value"`
	ReportedTotalCost float64  `json:"reported_total_cost"`
	TotalEnergyKWh   float64   `json:"total_energy_kwh"`
	SolveStatus      SolveStatus `json:"solve_status"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ScheduleResult is the fleet-wide output of one scheduling run (§3).
//
// ObjectiveValue and ReportedTotalCost are kept separate: TRIAD penalty is
// always part of the optimizer's objective, but whether it belongs in the
// "total cost" reported to callers varies by deployment, so both are
// computed and exposed.
type ScheduleResult struct {
	Scheduler Scheduler
	Schedules []VehicleChargeSchedule
	Shortfalls map[string]float64
}
