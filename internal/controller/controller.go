// Package controller implements the three orchestration entry points —
// allocation, scheduling, and unified — that share the common load/solve/
// persist template (§4.7).
package controller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/constraint"
	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
	"github.com/depotfleet/sigec-fleet/internal/observability/telemetry"
	"github.com/depotfleet/sigec-fleet/internal/ports"
	"github.com/depotfleet/sigec-fleet/internal/sequence"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
)

// Controller bundles every dependency the three run entry points share.
type Controller struct {
	Store      ports.Store
	Queue      ports.Queue
	Notifier   ports.Notifier
	MAFLoader  maf.Loader
	Capability *solverengine.Capability
	AppName    string
	Log        *zap.Logger
}

// New builds a Controller.
func New(store ports.Store, queue ports.Queue, notifier ports.Notifier, mafLoader maf.Loader, cap *solverengine.Capability, appName string, log *zap.Logger) *Controller {
	return &Controller{
		Store:      store,
		Queue:      queue,
		Notifier:   notifier,
		MAFLoader:  mafLoader,
		Capability: cap,
		AppName:    appName,
		Log:        log,
	}
}

// siteContext is what step 2 and step 4 of the orchestration template
// (§4.7) load before a solver can run.
type siteContext struct {
	cfg        *maf.SiteConfig
	efficiency domain.FleetEfficiency
	vehicles   []domain.Vehicle
	states     map[string]domain.VehicleChargeState
	chargers   map[string]domain.Charger
}

// loadSiteContext performs orchestration steps 2 and the vehicle/state/
// charger portion of step 4: site config, fleet efficiency, active
// vehicles restricted by the MAF enabled_vehicles list, as-of vehicle
// state, and currently-bound chargers.
func (c *Controller) loadSiteContext(ctx context.Context, siteID string, t time.Time) (siteContext, error) {
	doc, err := c.MAFLoader.Load(ctx, c.AppName)
	if err != nil {
		return siteContext{}, fmt.Errorf("controller: load config: %w", err)
	}
	cfg := maf.FindSite(doc, siteID)
	if cfg == nil {
		return siteContext{}, fmt.Errorf("controller: no site config for %q", siteID)
	}

	efficiency, err := c.Store.FleetEfficiency(ctx, siteID)
	if err != nil {
		return siteContext{}, fmt.Errorf("controller: load fleet efficiency: %w", err)
	}
	if efficiency.VehicleCount == 0 {
		efficiency.MeanEfficiencyKWhMi = domain.DefaultFleetEfficiencyKWhPerMile
	}

	allVehicles, err := c.Store.ActiveVehicles(ctx, siteID)
	if err != nil {
		return siteContext{}, fmt.Errorf("controller: load active vehicles: %w", err)
	}
	var vehicles []domain.Vehicle
	for _, v := range allVehicles {
		if cfg.VehicleEnabled(v.ID) {
			if v.EfficiencyKWhPerMile <= 0 {
				v.EfficiencyKWhPerMile = efficiency.MeanEfficiencyKWhMi
			}
			vehicles = append(vehicles, v)
		}
	}

	states := make(map[string]domain.VehicleChargeState, len(vehicles))
	ids := make([]string, 0, len(vehicles))
	var inScope []domain.Vehicle
	for _, v := range vehicles {
		st, ok, err := c.Store.VehicleStateAt(ctx, v.ID, t)
		if err != nil {
			return siteContext{}, fmt.Errorf("controller: load vehicle state for %s: %w", v.ID, err)
		}
		if ok {
			if st.Excluded() {
				continue // SOC sentinel -111 drops the vehicle from scope (§4.5)
			}
			states[v.ID] = st
		}
		ids = append(ids, v.ID)
		inScope = append(inScope, v)
	}

	chargers, err := c.Store.VehicleChargersInWindow(ctx, ids, t, 18*time.Hour)
	if err != nil {
		return siteContext{}, fmt.Errorf("controller: load chargers: %w", err)
	}

	return siteContext{
		cfg:        cfg,
		efficiency: efficiency,
		vehicles:   inScope,
		states:     states,
		chargers:   chargers,
	}, nil
}

// windowHours reads allocation_window_hours, defaulting per §4.1.
func windowHours(cfg *maf.SiteConfig, override float64) float64 {
	if override > 0 {
		return override
	}
	return cfg.NumberOr("allocation_window_hours", maf.DefaultAllocationWindowHours)
}

// maxRoutesPerVehicle reads max_routes_per_vehicle_in_window, defaulting
// per §4.1.
func maxRoutesPerVehicle(cfg *maf.SiteConfig) int {
	return int(cfg.NumberOr("max_routes_per_vehicle_in_window", maf.DefaultMaxRoutesPerVehicleInWindow))
}

// buildConstraintManager wires the default constraint pipeline (§4.2);
// per-site enable/disable of individual constraints beyond route_overlap
// is read by each constraint itself via its MAF parameters.
func (c *Controller) buildConstraintManager() *constraint.Manager {
	return constraint.DefaultManager(c.Log)
}

// enumerateCandidates runs step 5's sequence enumeration sub-step, shared
// by both the allocation and unified paths.
func enumerateCandidates(t time.Time, ctx siteContext, routes []domain.Route, mgr *constraint.Manager) []sequence.Candidate {
	inputs := make([]sequence.VehicleInput, len(ctx.vehicles))
	for i, v := range ctx.vehicles {
		inputs[i] = sequence.VehicleInput{
			Vehicle: v,
			State:   ctx.states[v.ID],
			Charger: ctx.chargers[v.ID],
		}
	}
	candidates := sequence.Enumerate(t, inputs, routes, maxRoutesPerVehicle(ctx.cfg), mgr, ctx.cfg)
	telemetry.CandidatesEvaluated.WithLabelValues(ctx.cfg.SiteID).Observe(float64(len(candidates)))
	return candidates
}

// vehicleByID indexes a vehicle slice for map-style lookups downstream.
func vehicleByID(vehicles []domain.Vehicle) map[string]domain.Vehicle {
	out := make(map[string]domain.Vehicle, len(vehicles))
	for _, v := range vehicles {
		out[v.ID] = v
	}
	return out
}

// notifyFailure implements step 7 of the orchestration template: on
// exception, alert the operator (best-effort) and let the caller's error
// propagate unchanged (§7 "Pipeline-level failures ... propagate upward
// unchanged").
func (c *Controller) notifyFailure(siteID, runKind string, err error) {
	c.Log.Error("run failed", zap.String("site_id", siteID), zap.String("run_kind", runKind), zap.Error(err))
	if c.Notifier == nil {
		return
	}
	if notifyErr := c.Notifier.NotifyRunFailure(siteID, runKind, err.Error()); notifyErr != nil {
		c.Log.Warn("failed to send run-failure notification", zap.Error(notifyErr))
	}
}

// publish is a best-effort queue publish; publish failures are logged,
// never propagated, since the run itself already committed (§5 ordering
// guarantees cover the database, not the notification side channel).
func (c *Controller) publish(subject string, payload []byte) {
	if c.Queue == nil {
		return
	}
	if err := c.Queue.Publish(subject, payload); err != nil {
		c.Log.Warn("failed to publish run event", zap.String("subject", subject), zap.Error(err))
		telemetry.MessageQueueMessagesTotal.WithLabelValues(subject, "failed").Inc()
		return
	}
	telemetry.MessageQueueMessagesTotal.WithLabelValues(subject, "published").Inc()
}
