package controller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/observability/telemetry"
	"github.com/depotfleet/sigec-fleet/internal/ports"
	"github.com/depotfleet/sigec-fleet/internal/schedule"
)

// ScheduleOptions customizes one scheduling run.
type ScheduleOptions struct {
	WindowHours float64
	TimeLimit   time.Duration
	TriadPenalty float64
	Persist     bool
}

// DefaultScheduleOptions matches §4.5's defaults.
func DefaultScheduleOptions() ScheduleOptions {
	return ScheduleOptions{
		TimeLimit:    300 * time.Second,
		TriadPenalty: 100.0,
		Persist:      true,
	}
}

// RunSchedule executes the charge-scheduling entry point end-to-end
// (§4.7): create monitor, resolve the slot window, load vehicles/forecast/
// price, solve, validate, and persist transactionally.
func (c *Controller) RunSchedule(ctx context.Context, siteID string, t time.Time, opts ScheduleOptions) (domain.ScheduleResult, error) {
	start := time.Now()
	if opts.TimeLimit == 0 {
		opts = DefaultScheduleOptions()
	}

	scheduleID, err := c.Store.CreateScheduler(ctx, siteID)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("controller: create scheduler: %w", err)
	}

	result, err := c.runScheduleInner(ctx, siteID, t, opts, scheduleID)
	if err != nil {
		_ = c.Store.UpdateSchedulerStatus(ctx, scheduleID, domain.RunStatusFailed)
		c.notifyFailure(siteID, "schedule", err)
		telemetry.RecordRunCompleted("schedule", string(domain.RunStatusFailed), time.Since(start).Seconds())
		return domain.ScheduleResult{}, err
	}

	telemetry.RecordRunCompleted("schedule", string(result.Scheduler.Status), time.Since(start).Seconds())
	for vehicleID, shortfall := range result.Shortfalls {
		_ = vehicleID
		telemetry.RecordScheduleShortfall(siteID, shortfall)
	}
	return result, nil
}

func (c *Controller) runScheduleInner(ctx context.Context, siteID string, t time.Time, opts ScheduleOptions, scheduleID string) (domain.ScheduleResult, error) {
	site, err := c.loadSiteContext(ctx, siteID, t)
	if err != nil {
		return domain.ScheduleResult{}, err
	}

	forecastMax, err := c.Store.ForecastMaxTime(ctx, siteID)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("controller: forecast max time: %w", err)
	}
	priceMax, err := c.Store.PriceMaxTime(ctx, siteID)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("controller: price max time: %w", err)
	}

	target := windowHours(site.cfg, opts.WindowHours)
	forecastHours := forecastMax.Sub(t).Hours()
	priceHours := priceMax.Sub(t).Hours()

	w, err := schedule.ResolveWindow(t, target, forecastHours, priceHours)
	if err != nil {
		return domain.ScheduleResult{}, err
	}

	forecast, err := c.Store.Forecast(ctx, siteID, w.Start, w.End)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("controller: load forecast: %w", err)
	}
	price, err := c.Store.Price(ctx, siteID, w.Start, w.End)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("controller: load price: %w", err)
	}
	ascKVA, err := c.Store.SiteAgreedCapacityKVA(ctx, siteID)
	if err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("controller: load site capacity: %w", err)
	}

	forecastKW := alignForecastToSlots(forecast.Points, w)
	priceKW, isTriad := alignPriceToSlots(price.Points, w)

	targetSOCPct := site.cfg.NumberOr("target_soc_pct", 100)
	minSOCPct := site.cfg.NumberOr("min_soc_pct", 20)
	minDepartureBuffer := time.Duration(site.cfg.NumberOr("min_departure_buffer_minutes", 15)) * time.Minute

	vehicleInputs := make([]schedule.VehicleInput, 0, len(site.vehicles))
	for _, v := range site.vehicles {
		planned, err := c.Store.RoutesForVehiclePlanned(ctx, v.ID, w.Start, w.End)
		if err != nil {
			return domain.ScheduleResult{}, fmt.Errorf("controller: load planned routes for %s: %w", v.ID, err)
		}

		var checkpoints []domain.RouteEnergyRequirement
		var unavailableBefore []time.Time
		if len(planned) > 0 {
			seq := domain.RouteSequence{VehicleID: v.ID, Routes: planned}
			checkpoints = domain.BuildRouteEnergyRequirements(seq, v.EfficiencyKWhPerMile)
			for _, r := range planned {
				unavailableBefore = append(unavailableBefore, r.PlanStart)
			}
		}

		vehicleInputs = append(vehicleInputs, schedule.VehicleInput{
			Vehicle:           v,
			State:             site.states[v.ID],
			TargetSOCPct:      targetSOCPct,
			MinSOCPct:         minSOCPct,
			Checkpoints:       checkpoints,
			HasRoute:          len(planned) > 0,
			UnavailableBefore: unavailableBefore,
			ReturnETA:         v.ReturnETA,
		})
	}

	problem := schedule.BuildProblem(siteID, w, vehicleInputs, schedule.SiteCapKW(ascKVA), forecastKW, priceKW, isTriad, minDepartureBuffer, opts.TimeLimit, opts.TriadPenalty)

	engine := c.Capability.Select()
	solveStart := time.Now()
	sol, status, err := engine.SolveSchedule(ctx, problem)
	telemetry.RecordSolverEngineCall(engine.Name(), err, time.Since(solveStart).Seconds())
	if err != nil {
		c.Log.Warn("remote schedule solve failed, falling back to greedy", zap.Error(err))
		sol, status, err = c.Capability.Greedy().SolveSchedule(ctx, problem)
		if err != nil {
			return domain.ScheduleResult{}, fmt.Errorf("controller: greedy schedule solve: %w", err)
		}
	}

	outcome := schedule.Resolve(w, vehicleInputs, sol, status, priceKW, isTriad, opts.TriadPenalty)

	runStatus := domain.RunStatusCompleted
	if hasShortfall(outcome.Shortfalls) {
		runStatus = domain.RunStatusValidationError
	}
	if err := c.Store.UpdateSchedulerStatus(ctx, scheduleID, runStatus); err != nil {
		return domain.ScheduleResult{}, fmt.Errorf("controller: update scheduler status: %w", err)
	}

	if opts.Persist {
		rows := densifyScheduleRows(scheduleID, w, outcome.Schedules)
		if err := c.Store.ReplaceSchedule(ctx, scheduleID, rows); err != nil {
			return domain.ScheduleResult{}, fmt.Errorf("controller: replace schedule: %w", err)
		}
		c.publish(ports.SubjectScheduleReplaced, []byte(scheduleID))
	}

	totalEnergy := 0.0
	for _, s := range outcome.Schedules {
		totalEnergy += s.EnergyScheduled
	}

	return domain.ScheduleResult{
		Scheduler: domain.Scheduler{
			ID:                scheduleID,
			SiteID:            siteID,
			Status:            runStatus,
			WindowStart:       w.Start,
			WindowEnd:         w.End,
			ObjectiveValue:    outcome.ObjectiveValue,
			ReportedTotalCost: outcome.ReportedTotalCost,
			TotalEnergyKWh:    totalEnergy,
			SolveStatus:       outcome.Status,
		},
		Schedules:  outcome.Schedules,
		Shortfalls: outcome.Shortfalls,
	}, nil
}

func hasShortfall(shortfalls map[string]float64) bool {
	for _, v := range shortfalls {
		if v > 0 {
			return true
		}
	}
	return false
}

// alignForecastToSlots maps the sparse forecast series onto the dense
// per-slot grid, forward-filling the last reading at or before each slot's
// start.
func alignForecastToSlots(points []domain.ForecastPoint, w schedule.Window) []float64 {
	out := make([]float64, len(w.Slots))
	if len(points) == 0 {
		return out
	}
	j := 0
	last := points[0].DemandKW
	for i, slot := range w.Slots {
		for j < len(points) && !points[j].Timestamp.After(slot.Start) {
			last = points[j].DemandKW
			j++
		}
		out[i] = last
	}
	return out
}

// alignPriceToSlots does the same for price and its TRIAD flag.
func alignPriceToSlots(points []domain.PricePoint, w schedule.Window) ([]float64, []bool) {
	price := make([]float64, len(w.Slots))
	triad := make([]bool, len(w.Slots))
	if len(points) == 0 {
		return price, triad
	}
	j := 0
	lastPrice := points[0].Price
	lastTriad := points[0].IsTRIAD
	for i, slot := range w.Slots {
		for j < len(points) && !points[j].Timestamp.After(slot.Start) {
			lastPrice = points[j].Price
			lastTriad = points[j].IsTRIAD
			j++
		}
		price[i] = lastPrice
		triad[i] = lastTriad
	}
	return price, triad
}

// densifyScheduleRows writes one row per (vehicle, slot) across the full
// window, zero-filled for slots the solver didn't schedule power in, so
// downstream consumers always see a dense grid (§4.5 "Output").
func densifyScheduleRows(scheduleID string, w schedule.Window, schedules []domain.VehicleChargeSchedule) []ports.ScheduleRow {
	var rows []ports.ScheduleRow
	for _, s := range schedules {
		powerBySlot := make(map[int]float64, len(s.Slots))
		for _, cs := range s.Slots {
			powerBySlot[cs.SlotIndex] = cs.PowerKW
		}
		for i, slot := range w.Slots {
			rows = append(rows, ports.ScheduleRow{
				ScheduleID: scheduleID,
				VehicleID:  s.VehicleID,
				SlotIndex:  i,
				SlotStart:  slot.Start,
				PowerKW:    powerBySlot[i],
			})
		}
	}
	return rows
}
