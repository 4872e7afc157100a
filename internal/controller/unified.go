package controller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/allocation"
	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/observability/telemetry"
	"github.com/depotfleet/sigec-fleet/internal/ports"
	"github.com/depotfleet/sigec-fleet/internal/schedule"
	"github.com/depotfleet/sigec-fleet/internal/sequence"
	"github.com/depotfleet/sigec-fleet/internal/unified"
)

// UnifiedOptions customizes one fused allocation+schedule run (§4.6).
type UnifiedOptions struct {
	Allocation AllocationOptions
	Schedule   ScheduleOptions
	Alpha      float64
	Beta       float64
}

// DefaultUnifiedOptions matches §4.6's defaults.
func DefaultUnifiedOptions() UnifiedOptions {
	return UnifiedOptions{
		Allocation: DefaultAllocationOptions(),
		Schedule:   DefaultScheduleOptions(),
		Alpha:      unified.DefaultAlpha,
		Beta:       unified.DefaultBeta,
	}
}

// UnifiedRunResult is the combined output of a fused run, mirroring the
// standalone allocation and schedule results so callers (HTTP façade, CLI)
// can report on either half uniformly.
type UnifiedRunResult struct {
	Allocation domain.AllocationResult
	Schedule   domain.ScheduleResult
}

// RunUnified executes the fused allocation+scheduling entry point (§4.6,
// §4.7): one site-context load, one candidate enumeration, a single solve
// against the weighted joint objective, then both halves resolved and
// persisted through the same per-subsystem transactional paths as the
// standalone runs.
func (c *Controller) RunUnified(ctx context.Context, siteID string, t time.Time, opts UnifiedOptions) (UnifiedRunResult, error) {
	start := time.Now()
	if opts.Alpha == 0 && opts.Beta == 0 {
		opts = DefaultUnifiedOptions()
	}

	allocMonitorID, err := c.Store.CreateAllocationMonitor(ctx, siteID)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: create allocation monitor: %w", err)
	}
	scheduleID, err := c.Store.CreateScheduler(ctx, siteID)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: create scheduler: %w", err)
	}

	result, err := c.runUnifiedInner(ctx, siteID, t, opts, allocMonitorID, scheduleID)
	if err != nil {
		_ = c.Store.UpdateAllocationMonitor(ctx, allocMonitorID, domain.RunStatusFailed, 0, 0, 0, 0)
		_ = c.Store.UpdateSchedulerStatus(ctx, scheduleID, domain.RunStatusFailed)
		c.notifyFailure(siteID, "unified", err)
		telemetry.RecordRunCompleted("unified", string(domain.RunStatusFailed), time.Since(start).Seconds())
		return UnifiedRunResult{}, err
	}

	telemetry.RecordRunCompleted("unified", string(result.Allocation.Monitor.Status), time.Since(start).Seconds())
	telemetry.RecordAllocationOutcome(siteID, len(result.Allocation.Unallocated))
	for _, shortfall := range result.Schedule.Shortfalls {
		telemetry.RecordScheduleShortfall(siteID, shortfall)
	}
	return result, nil
}

func (c *Controller) runUnifiedInner(ctx context.Context, siteID string, t time.Time, opts UnifiedOptions, allocMonitorID, scheduleID string) (UnifiedRunResult, error) {
	site, err := c.loadSiteContext(ctx, siteID, t)
	if err != nil {
		return UnifiedRunResult{}, err
	}

	allocHours := windowHours(site.cfg, opts.Allocation.WindowHours)
	allocWindowEnd := t.Add(time.Duration(allocHours * float64(time.Hour)))
	routes, err := c.Store.RoutesInWindow(ctx, siteID, t, allocWindowEnd)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: load routes in window: %w", err)
	}
	routeIDs := make([]string, len(routes))
	for i, r := range routes {
		routeIDs[i] = r.ID
	}

	mgr := c.buildConstraintManager()
	candidates := enumerateCandidates(t, site, routes, mgr)

	forecastMax, err := c.Store.ForecastMaxTime(ctx, siteID)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: forecast max time: %w", err)
	}
	priceMax, err := c.Store.PriceMaxTime(ctx, siteID)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: price max time: %w", err)
	}
	schedHours := windowHours(site.cfg, opts.Schedule.WindowHours)
	w, err := schedule.ResolveWindow(t, schedHours, forecastMax.Sub(t).Hours(), priceMax.Sub(t).Hours())
	if err != nil {
		return UnifiedRunResult{}, err
	}

	forecast, err := c.Store.Forecast(ctx, siteID, w.Start, w.End)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: load forecast: %w", err)
	}
	price, err := c.Store.Price(ctx, siteID, w.Start, w.End)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: load price: %w", err)
	}
	ascKVA, err := c.Store.SiteAgreedCapacityKVA(ctx, siteID)
	if err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: load site capacity: %w", err)
	}
	forecastKW := alignForecastToSlots(forecast.Points, w)
	priceKW, isTriad := alignPriceToSlots(price.Points, w)

	targetSOCPct := site.cfg.NumberOr("target_soc_pct", 100)
	minSOCPct := site.cfg.NumberOr("min_soc_pct", 20)
	minDepartureBuffer := time.Duration(site.cfg.NumberOr("min_departure_buffer_minutes", 15)) * time.Minute

	// Unified mode schedules around routes the allocation half is still
	// deciding, not routes already assigned — so checkpoints come from each
	// vehicle's strongest candidate sequence (the auxiliary allocated
	// indicator's linearized stand-in, §9 Open Question (b)), falling back
	// to already-planned routes only when a vehicle has no candidate at all.
	bestCandidate := bestCandidatePerVehicle(candidates)

	vehicleInputs := make([]schedule.VehicleInput, 0, len(site.vehicles))
	for _, v := range site.vehicles {
		impliedRoutes := bestCandidate[v.ID]
		if impliedRoutes == nil {
			planned, err := c.Store.RoutesForVehiclePlanned(ctx, v.ID, w.Start, w.End)
			if err != nil {
				return UnifiedRunResult{}, fmt.Errorf("controller: load planned routes for %s: %w", v.ID, err)
			}
			impliedRoutes = planned
		}
		var checkpoints []domain.RouteEnergyRequirement
		var unavailableBefore []time.Time
		if len(impliedRoutes) > 0 {
			seq := domain.RouteSequence{VehicleID: v.ID, Routes: impliedRoutes}
			checkpoints = domain.BuildRouteEnergyRequirements(seq, v.EfficiencyKWhPerMile)
			for _, r := range impliedRoutes {
				unavailableBefore = append(unavailableBefore, r.PlanStart)
			}
		}
		vehicleInputs = append(vehicleInputs, schedule.VehicleInput{
			Vehicle:           v,
			State:             site.states[v.ID],
			TargetSOCPct:      targetSOCPct,
			MinSOCPct:         minSOCPct,
			Checkpoints:       checkpoints,
			HasRoute:          len(impliedRoutes) > 0,
			UnavailableBefore: unavailableBefore,
			ReturnETA:         v.ReturnETA,
		})
	}

	allocProblem := allocation.BuildProblem(siteID, candidates, routeIDs, opts.Allocation.WRoute, opts.Allocation.TimeLimit)
	schedProblem := schedule.BuildProblem(siteID, w, vehicleInputs, schedule.SiteCapKW(ascKVA), forecastKW, priceKW, isTriad, minDepartureBuffer, opts.Schedule.TimeLimit, opts.Schedule.TriadPenalty)
	problem := unified.BuildProblem(allocProblem, schedProblem, opts.Alpha, opts.Beta)

	engine := c.Capability.Select()
	solveStart := time.Now()
	sol, status, err := engine.SolveUnified(ctx, problem)
	telemetry.RecordSolverEngineCall(engine.Name(), err, time.Since(solveStart).Seconds())
	if err != nil {
		c.Log.Warn("remote unified solve failed, falling back to greedy", zap.Error(err))
		sol, status, err = c.Capability.Greedy().SolveUnified(ctx, problem)
		if err != nil {
			return UnifiedRunResult{}, fmt.Errorf("controller: greedy unified solve: %w", err)
		}
	}

	allocOutcome := allocation.Resolve(candidates, routeIDs, sol.Allocation, status, vehicleByID(site.vehicles), site.states, t, opts.Allocation.MinScore)
	schedOutcome := schedule.Resolve(w, vehicleInputs, sol.Schedule, status, priceKW, isTriad, opts.Schedule.TriadPenalty)

	allocRunStatus := domain.RunStatusAccepted
	if !allocOutcome.Acceptable {
		allocRunStatus = domain.RunStatusFailed
	}
	overlapping := len(routes) - len(allocOutcome.Allocations) - len(allocOutcome.Unallocated)
	if overlapping < 0 {
		overlapping = 0
	}
	if err := c.Store.UpdateAllocationMonitor(ctx, allocMonitorID, allocRunStatus, allocOutcome.TotalScore, len(routes), len(allocOutcome.Allocations), overlapping); err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: update allocation monitor: %w", err)
	}

	schedRunStatus := domain.RunStatusCompleted
	if hasShortfall(schedOutcome.Shortfalls) {
		schedRunStatus = domain.RunStatusValidationError
	}
	if err := c.Store.UpdateSchedulerStatus(ctx, scheduleID, schedRunStatus); err != nil {
		return UnifiedRunResult{}, fmt.Errorf("controller: update scheduler status: %w", err)
	}

	if opts.Allocation.Persist && allocOutcome.Acceptable {
		for i := range allocOutcome.Allocations {
			allocOutcome.Allocations[i].SiteID = siteID
		}
		if err := c.Store.ReplaceAllocations(ctx, siteID, allocOutcome.Allocations); err != nil {
			return UnifiedRunResult{}, fmt.Errorf("controller: replace allocations: %w", err)
		}
		c.publish(ports.SubjectAllocationReplaced, []byte(siteID))
	}
	if opts.Schedule.Persist {
		rows := densifyScheduleRows(scheduleID, w, schedOutcome.Schedules)
		if err := c.Store.ReplaceSchedule(ctx, scheduleID, rows); err != nil {
			return UnifiedRunResult{}, fmt.Errorf("controller: replace schedule: %w", err)
		}
		c.publish(ports.SubjectScheduleReplaced, []byte(scheduleID))
	}

	totalEnergy := 0.0
	for _, s := range schedOutcome.Schedules {
		totalEnergy += s.EnergyScheduled
	}

	return UnifiedRunResult{
		Allocation: domain.AllocationResult{
			Monitor: domain.AllocationMonitor{
				ID:                     allocMonitorID,
				SiteID:                 siteID,
				Status:                 allocRunStatus,
				TotalScore:             allocOutcome.TotalScore,
				RoutesInWindow:         len(routes),
				RoutesAllocated:        len(allocOutcome.Allocations),
				RoutesOverlappingCount: overlapping,
				SolveStatus:            allocOutcome.Status,
			},
			Allocations: allocOutcome.Allocations,
			Unallocated: allocOutcome.Unallocated,
		},
		Schedule: domain.ScheduleResult{
			Scheduler: domain.Scheduler{
				ID:                scheduleID,
				SiteID:            siteID,
				Status:            schedRunStatus,
				WindowStart:       w.Start,
				WindowEnd:         w.End,
				ObjectiveValue:    schedOutcome.ObjectiveValue,
				ReportedTotalCost: schedOutcome.ReportedTotalCost,
				TotalEnergyKWh:    totalEnergy,
				SolveStatus:       schedOutcome.Status,
			},
			Schedules:  schedOutcome.Schedules,
			Shortfalls: schedOutcome.Shortfalls,
		},
	}, nil
}

// bestCandidatePerVehicle picks, per vehicle, the route set of its
// highest-cost (most attractive) candidate sequence — the set allocation is
// most likely to select — so the schedule half's energy checkpoints track
// the same routes the allocation half is weighing rather than routes
// already committed in the store (§4.6, §9 Open Question (b)). Vehicles
// with no feasible candidate are omitted; callers fall back for those.
func bestCandidatePerVehicle(candidates []sequence.Candidate) map[string][]domain.Route {
	best := make(map[string]sequence.Candidate, len(candidates))
	for _, cand := range candidates {
		cur, ok := best[cand.VehicleID]
		if !ok || cand.Cost > cur.Cost {
			best[cand.VehicleID] = cand
		}
	}
	out := make(map[string][]domain.Route, len(best))
	for vehicleID, cand := range best {
		out[vehicleID] = cand.Sequence.Routes
	}
	return out
}
