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
)

// AllocationOptions customizes one allocation run.
type AllocationOptions struct {
	WindowHours float64 // 0 = use site config default
	WRoute      float64
	MinScore    float64
	TimeLimit   time.Duration
	Persist     bool
}

// DefaultAllocationOptions matches §4.4's defaults.
func DefaultAllocationOptions() AllocationOptions {
	return AllocationOptions{
		WRoute:    allocation.DefaultWRoute,
		MinScore:  allocation.DefaultMinScore,
		TimeLimit: 30 * time.Second,
		Persist:   true,
	}
}

// RunAllocation executes the vehicle-to-route allocation entry point
// end-to-end (§4.7): create monitor, load config/vehicles/routes, enumerate
// and solve, validate, and persist transactionally.
func (c *Controller) RunAllocation(ctx context.Context, siteID string, t time.Time, opts AllocationOptions) (domain.AllocationResult, error) {
	start := time.Now()
	if opts.TimeLimit == 0 {
		opts = DefaultAllocationOptions()
	}

	monitorID, err := c.Store.CreateAllocationMonitor(ctx, siteID)
	if err != nil {
		return domain.AllocationResult{}, fmt.Errorf("controller: create allocation monitor: %w", err)
	}

	result, err := c.runAllocationInner(ctx, siteID, t, opts, monitorID)
	if err != nil {
		_ = c.Store.UpdateAllocationMonitor(ctx, monitorID, domain.RunStatusFailed, 0, 0, 0, 0)
		c.notifyFailure(siteID, "allocation", err)
		telemetry.RecordRunCompleted("allocation", string(domain.RunStatusFailed), time.Since(start).Seconds())
		return domain.AllocationResult{}, err
	}

	telemetry.RecordRunCompleted("allocation", string(result.Monitor.Status), time.Since(start).Seconds())
	telemetry.RecordAllocationOutcome(siteID, len(result.Unallocated))
	return result, nil
}

func (c *Controller) runAllocationInner(ctx context.Context, siteID string, t time.Time, opts AllocationOptions, monitorID string) (domain.AllocationResult, error) {
	site, err := c.loadSiteContext(ctx, siteID, t)
	if err != nil {
		return domain.AllocationResult{}, err
	}

	hours := windowHours(site.cfg, opts.WindowHours)
	windowEnd := t.Add(time.Duration(hours * float64(time.Hour)))

	routes, err := c.Store.RoutesInWindow(ctx, siteID, t, windowEnd)
	if err != nil {
		return domain.AllocationResult{}, fmt.Errorf("controller: load routes in window: %w", err)
	}
	routeIDs := make([]string, len(routes))
	for i, r := range routes {
		routeIDs[i] = r.ID
	}

	mgr := c.buildConstraintManager()
	candidates := enumerateCandidates(t, site, routes, mgr)
	for _, cand := range candidates {
		for _, v := range cand.Breakdown {
			if v.Failed && v.Hard {
				telemetry.RecordConstraintRejection(v.Name)
			}
		}
	}

	engine := c.Capability.Select()
	problem := allocation.BuildProblem(siteID, candidates, routeIDs, opts.WRoute, opts.TimeLimit)
	solveStart := time.Now()
	sol, status, err := engine.SolveAllocation(ctx, problem)
	telemetry.RecordSolverEngineCall(engine.Name(), err, time.Since(solveStart).Seconds())
	if err != nil {
		c.Log.Warn("remote allocation solve failed, falling back to greedy", zap.Error(err))
		sol, status, err = c.Capability.Greedy().SolveAllocation(ctx, problem)
		if err != nil {
			return domain.AllocationResult{}, fmt.Errorf("controller: greedy allocation solve: %w", err)
		}
	}

	outcome := allocation.Resolve(candidates, routeIDs, sol, status, vehicleByID(site.vehicles), site.states, t, opts.MinScore)

	runStatus := domain.RunStatusAccepted
	if !outcome.Acceptable {
		runStatus = domain.RunStatusFailed
	}
	overlapping := len(routes) - len(outcome.Allocations) - len(outcome.Unallocated)
	if overlapping < 0 {
		overlapping = 0
	}
	if err := c.Store.UpdateAllocationMonitor(ctx, monitorID, runStatus, outcome.TotalScore, len(routes), len(outcome.Allocations), overlapping); err != nil {
		return domain.AllocationResult{}, fmt.Errorf("controller: update allocation monitor: %w", err)
	}

	if opts.Persist && outcome.Acceptable {
		for i := range outcome.Allocations {
			outcome.Allocations[i].SiteID = siteID
		}
		if err := c.Store.ReplaceAllocations(ctx, siteID, outcome.Allocations); err != nil {
			return domain.AllocationResult{}, fmt.Errorf("controller: replace allocations: %w", err)
		}
		c.publish(ports.SubjectAllocationReplaced, []byte(siteID))
	}

	return domain.AllocationResult{
		Monitor: domain.AllocationMonitor{
			ID:                     monitorID,
			SiteID:                 siteID,
			Status:                 runStatus,
			TotalScore:             outcome.TotalScore,
			RoutesInWindow:         len(routes),
			RoutesAllocated:        len(outcome.Allocations),
			RoutesOverlappingCount: overlapping,
			SolveStatus:            outcome.Status,
		},
		Allocations: outcome.Allocations,
		Unallocated: outcome.Unallocated,
	}, nil
}
