// Package schedule builds the time-slotted charge-scheduling problem and
// turns an engine solution into persistable VehicleChargeSchedule rows
// (§4.5).
package schedule

import (
	"fmt"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
)

// DefaultMinWindowHours is the shortest horizon a run will attempt; below
// target/2 the run errors before solving (§4.5, §4.7).
const DefaultMinWindowHours = 4

// DefaultSynthAlpha is the tiny earlier-is-better tiebreaker weight
// (§4.5).
const DefaultSynthAlpha = 0.01

// DefaultShortfallLambda is the soft-target slack weight (§4.5, §4.6).
const DefaultShortfallLambda = 0.2

// DefaultPowerFactor and DefaultUsageFactor derive the usable site power
// cap in kW from the agreed site capacity in kVA (§8 "Site capacity").
const (
	DefaultPowerFactor = 0.85
	DefaultUsageFactor = 0.90
)

// SiteCapKW converts an agreed site capacity (kVA) into the kW cap the
// scheduler enforces.
func SiteCapKW(ascKVA float64) float64 {
	return ascKVA * DefaultPowerFactor * DefaultUsageFactor
}

// Window is the resolved, slot-snapped planning horizon for one run.
type Window struct {
	Start time.Time
	End   time.Time
	Slots []domain.TimeSlot
}

// ResolveWindow snaps the start up to the next slot boundary and shrinks
// the horizon to the earliest of target, forecast and price horizons
// (§4.5 "horizon shrink"). Returns an error when the result is under half
// of the requested target window.
func ResolveWindow(t time.Time, targetHours, forecastHours, priceHours float64) (Window, error) {
	start := domain.SnapUpToSlotBoundary(t)

	actual := targetHours
	if forecastHours < actual {
		actual = forecastHours
	}
	if priceHours < actual {
		actual = priceHours
	}

	if actual < targetHours/2 {
		return Window{}, &HorizonTooShortError{Target: targetHours, Actual: actual}
	}
	if actual < DefaultMinWindowHours {
		return Window{}, &HorizonTooShortError{Target: targetHours, Actual: actual}
	}

	n := int(actual * 2) // 30-minute slots per hour
	return Window{
		Start: start,
		End:   start.Add(time.Duration(n) * domain.SlotDuration),
		Slots: domain.BuildSlots(start, n),
	}, nil
}

// HorizonTooShortError reports that the intersected data horizon fell
// below half the caller's requested window (§4.7 step 3, §8 "window cap").
type HorizonTooShortError struct {
	Target float64
	Actual float64
}

func (e *HorizonTooShortError) Error() string {
	return fmt.Sprintf("schedule: resolved horizon too short: target=%.2fh actual=%.2fh", e.Target, e.Actual)
}

// VehicleInput bundles one vehicle's scheduling inputs for BuildProblem.
type VehicleInput struct {
	Vehicle      domain.Vehicle
	State        domain.VehicleChargeState
	TargetSOCPct float64
	MinSOCPct    float64
	Checkpoints  []domain.RouteEnergyRequirement
	HasRoute     bool
	UnavailableBefore []time.Time // one entry per route start, minus min_departure_buffer
	ReturnETA    *time.Time
}

// BuildProblem derives the engine's ScheduleProblem wire shape from the
// resolved window, vehicle inputs, and site forecast/price/capacity series
// (§4.5).
func BuildProblem(
	siteID string,
	w Window,
	vehicles []VehicleInput,
	siteCapKW float64,
	forecastKW []float64,
	priceKW []float64,
	isTriad []bool,
	minDepartureBuffer time.Duration,
	timeLimit time.Duration,
	triadPenalty float64,
) solverengine.ScheduleProblem {
	n := len(w.Slots)
	headroomPerSlot := make([]float64, n)
	for i := 0; i < n; i++ {
		demand := 0.0
		if i < len(forecastKW) {
			demand = forecastKW[i]
		}
		headroom := siteCapKW - demand
		if headroom < 0 {
			headroom = 0
		}
		headroomPerSlot[i] = headroom
	}

	wiredVehicles := make([]solverengine.ScheduleVehicle, len(vehicles))
	for i, vi := range vehicles {
		unavailable := make([]bool, n)
		for slot := 0; slot < n; slot++ {
			slotStart := w.Slots[slot].Start
			if vi.ReturnETA != nil && slotStart.Before(*vi.ReturnETA) {
				unavailable[slot] = true
			}
			for _, cutoff := range vi.UnavailableBefore {
				if !slotStart.Before(cutoff.Add(-minDepartureBuffer)) && slotStart.Before(cutoff) {
					unavailable[slot] = true
				}
			}
		}

		checkpoints := make([]solverengine.Checkpoint, len(vi.Checkpoints))
		for j, cp := range vi.Checkpoints {
			checkpoints[j] = solverengine.Checkpoint{
				SlotIndex:      domain.SlotIndex(w.Start, cp.CheckpointTime),
				RequiredEnergy: cp.CumulativeKWh,
			}
		}

		targetKWh := (maxFloat(vi.TargetSOCPct, vi.MinSOCPct) / 100) * vi.Vehicle.BatteryKWh

		wiredVehicles[i] = solverengine.ScheduleVehicle{
			VehicleID:    vi.Vehicle.ID,
			RateKW:       vi.Vehicle.ACRateKW,
			BatteryKWh:   vi.Vehicle.BatteryKWh,
			SOCKWh:       vi.State.AvailableEnergyKWh(),
			TargetSOCKWh: targetKWh,
			Unavailable:  unavailable,
			Checkpoints:  checkpoints,
			HasRoute:     vi.HasRoute,
		}
	}

	return solverengine.ScheduleProblem{
		SiteID:          siteID,
		SlotCount:       n,
		Vehicles:        wiredVehicles,
		SiteCapKW:       headroomPerSlot,
		PriceKW:         priceKW,
		IsTriad:         isTriad,
		TimeLimitMS:     int(timeLimit.Milliseconds()),
		ShortfallLambda: DefaultShortfallLambda,
		TriadPenalty:    triadPenalty,
		SynthAlpha:      DefaultSynthAlpha,
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Outcome is the solved schedule for one run, including per-vehicle
// shortfall diagnostics (§8 "otherwise the validator must report
// shortfall").
type Outcome struct {
	Schedules  []domain.VehicleChargeSchedule
	Shortfalls map[string]float64
	ObjectiveValue   float64
	ReportedTotalCost float64
	Status     domain.SolveStatus
}

// Resolve converts an engine ScheduleSolution into per-vehicle
// VehicleChargeSchedule rows, dropping slots below the minimum chargeable
// power threshold (§4.5 "Output").
func Resolve(
	w Window,
	vehicles []VehicleInput,
	sol solverengine.ScheduleSolution,
	status domain.SolveStatus,
	priceKW []float64,
	isTriad []bool,
	triadPenalty float64,
) Outcome {
	schedules := make([]domain.VehicleChargeSchedule, 0, len(vehicles))
	reportedCost := 0.0

	for _, vi := range vehicles {
		power := sol.PowerKW[vi.Vehicle.ID]
		var slots []domain.ChargeSlot
		energy := 0.0
		for i, p := range power {
			if p < domain.MinChargeableSlotPowerKW {
				continue
			}
			cs := domain.ChargeSlot{SlotIndex: i, Start: w.Slots[i].Start, PowerKW: p}
			slots = append(slots, cs)
			energy += cs.EnergyKWh()
			if i < len(priceKW) {
				reportedCost += priceKW[i] * cs.EnergyKWh()
			}
			if i < len(isTriad) && isTriad[i] {
				reportedCost += triadPenalty * cs.EnergyKWh()
			}
		}

		schedules = append(schedules, domain.VehicleChargeSchedule{
			VehicleID:       vi.Vehicle.ID,
			InitialSOCKWh:   vi.State.AvailableEnergyKWh(),
			TargetSOCKWh:    (maxFloat(vi.TargetSOCPct, vi.MinSOCPct) / 100) * vi.Vehicle.BatteryKWh,
			EnergyScheduled: energy,
			Slots:           slots,
			Checkpoints:     vi.Checkpoints,
			DCBound:         false,
			ShortfallKWh:    sol.ShortfallKWh[vi.Vehicle.ID],
		})
	}

	return Outcome{
		Schedules:         schedules,
		Shortfalls:        sol.ShortfallKWh,
		ObjectiveValue:    sol.ObjectiveValue,
		ReportedTotalCost: reportedCost,
		Status:            status,
	}
}
