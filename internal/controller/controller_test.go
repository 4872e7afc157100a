package controller

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
	"github.com/depotfleet/sigec-fleet/internal/ports"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func newTestController(t *testing.T, store *fakeStore, siteID string) (*Controller, *fakeQueue, *fakeNotifier) {
	t.Helper()
	doc := &maf.Document{
		ClientName: "test-client",
		Sites: []maf.Site{
			{SiteID: siteID},
		},
	}
	queue := &fakeQueue{}
	notifier := &fakeNotifier{}
	c := New(store, queue, notifier, &maf.StaticLoader{Doc: doc}, solverengine.NewCapability(nil), "test-app", zap.NewNop())
	return c, queue, notifier
}

func baseFakeStore(siteID string, now time.Time) *fakeStore {
	s := newFakeStore()
	s.vehicles = []domain.Vehicle{
		{ID: "v1", SiteID: siteID, Active: true, BatteryKWh: 100, EfficiencyKWhPerMile: 0.35, ACRateKW: 11},
	}
	s.states["v1"] = domain.VehicleChargeState{VehicleID: "v1", SOCKWh: 80, AvailableAtT: now}
	s.routes = []domain.Route{
		{ID: "r1", SiteID: siteID, PlanStart: now.Add(1 * time.Hour), PlanEnd: now.Add(2 * time.Hour), PlanMileage: 20},
	}
	s.forecast = ports.ForecastSeries{MaxTime: now.Add(48 * time.Hour)}
	s.price = ports.PriceSeries{MaxTime: now.Add(48 * time.Hour)}
	s.ascKVA = 100
	return s
}

func TestRunAllocation_AllocatesFeasibleRoute(t *testing.T) {
	siteID := "site-a"
	now := mustParse(t, "2026-01-01T06:00")
	store := baseFakeStore(siteID, now)
	c, queue, _ := newTestController(t, store, siteID)

	result, err := c.RunAllocation(context.Background(), siteID, now, DefaultAllocationOptions())
	if err != nil {
		t.Fatalf("RunAllocation: %v", err)
	}
	if result.Monitor.Status != domain.RunStatusAccepted {
		t.Fatalf("expected accepted run, got status %q", result.Monitor.Status)
	}
	if len(result.Allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d", len(result.Allocations))
	}
	if result.Allocations[0].RouteID != "r1" {
		t.Errorf("expected route r1 allocated, got %s", result.Allocations[0].RouteID)
	}
	if len(store.allocations[siteID]) != 1 {
		t.Errorf("expected persisted allocation row")
	}
	if len(queue.published) != 1 || queue.published[0] != ports.SubjectAllocationReplaced {
		t.Errorf("expected allocation-replaced event published, got %v", queue.published)
	}
}

func TestRunAllocation_DropsSOCExcludedVehicle(t *testing.T) {
	siteID := "site-a"
	now := mustParse(t, "2026-01-01T06:00")
	store := baseFakeStore(siteID, now)
	store.states["v1"] = domain.VehicleChargeState{VehicleID: "v1", SOCKWh: domain.ExcludedSOC, AvailableAtT: now}
	c, _, _ := newTestController(t, store, siteID)

	result, err := c.RunAllocation(context.Background(), siteID, now, DefaultAllocationOptions())
	if err != nil {
		t.Fatalf("RunAllocation: %v", err)
	}
	if len(result.Allocations) != 0 {
		t.Fatalf("expected no allocations once the only vehicle is SOC-excluded, got %d", len(result.Allocations))
	}
	if len(result.Unallocated) != 1 {
		t.Errorf("expected r1 to remain unallocated, got %v", result.Unallocated)
	}
}

func TestRunAllocation_PropagatesLoadErrorAndNotifies(t *testing.T) {
	siteID := "missing-site"
	now := mustParse(t, "2026-01-01T06:00")
	store := baseFakeStore("site-a", now)
	c, _, notifier := newTestController(t, store, "site-a")

	_, err := c.RunAllocation(context.Background(), siteID, now, DefaultAllocationOptions())
	if err == nil {
		t.Fatalf("expected error for unknown site")
	}
	if len(notifier.alerts) != 1 {
		t.Errorf("expected one failure notification, got %d", len(notifier.alerts))
	}
}

func TestRunSchedule_ChargesVehicleTowardTarget(t *testing.T) {
	siteID := "site-a"
	now := mustParse(t, "2026-01-01T06:00")
	store := baseFakeStore(siteID, now)
	store.routes = nil // no planned routes; schedule run only
	c, queue, _ := newTestController(t, store, siteID)

	result, err := c.RunSchedule(context.Background(), siteID, now, DefaultScheduleOptions())
	if err != nil {
		t.Fatalf("RunSchedule: %v", err)
	}
	if result.Scheduler.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed run, got status %q", result.Scheduler.Status)
	}
	if len(result.Schedules) != 1 {
		t.Fatalf("expected a schedule for v1, got %d", len(result.Schedules))
	}
	if len(store.scheduleRows[result.Scheduler.ID]) == 0 {
		t.Errorf("expected densified schedule rows to be persisted")
	}
	if len(queue.published) != 1 || queue.published[0] != ports.SubjectScheduleReplaced {
		t.Errorf("expected schedule-replaced event published, got %v", queue.published)
	}
}

func TestRunUnified_PersistsBothHalves(t *testing.T) {
	siteID := "site-a"
	now := mustParse(t, "2026-01-01T06:00")
	store := baseFakeStore(siteID, now)
	c, queue, _ := newTestController(t, store, siteID)

	result, err := c.RunUnified(context.Background(), siteID, now, DefaultUnifiedOptions())
	if err != nil {
		t.Fatalf("RunUnified: %v", err)
	}
	if result.Allocation.Monitor.Status != domain.RunStatusAccepted {
		t.Errorf("expected accepted allocation half, got %q", result.Allocation.Monitor.Status)
	}
	if result.Schedule.Scheduler.Status != domain.RunStatusCompleted {
		t.Errorf("expected completed schedule half, got %q", result.Schedule.Scheduler.Status)
	}
	if len(store.allocations[siteID]) != 1 {
		t.Errorf("expected allocation rows persisted")
	}
	if len(store.scheduleRows[result.Schedule.Scheduler.ID]) == 0 {
		t.Errorf("expected schedule rows persisted")
	}
	wantSubjects := map[string]bool{ports.SubjectAllocationReplaced: false, ports.SubjectScheduleReplaced: false}
	for _, subj := range queue.published {
		wantSubjects[subj] = true
	}
	for subj, seen := range wantSubjects {
		if !seen {
			t.Errorf("expected %s to be published", subj)
		}
	}
}

func TestRunUnified_ChecksAgainstCandidateRouteEnergyNotJustPlannedRoutes(t *testing.T) {
	siteID := "site-a"
	now := mustParse(t, "2026-01-01T06:00")
	store := baseFakeStore(siteID, now)
	// Battery already full relative to its own target, so nothing forces
	// charging on SOC-vs-target alone; any charging below must come from a
	// route-energy checkpoint. r1 is not in store.plannedByVehicle (unified
	// mode routes are unassigned), only in candidates, so this only passes
	// if checkpoints are derived from the allocation candidate set.
	store.states["v1"] = domain.VehicleChargeState{VehicleID: "v1", SOCKWh: 100, AvailableAtT: now}
	c, _, _ := newTestController(t, store, siteID)

	result, err := c.RunUnified(context.Background(), siteID, now, DefaultUnifiedOptions())
	if err != nil {
		t.Fatalf("RunUnified: %v", err)
	}
	if len(result.Schedule.Schedules) != 1 {
		t.Fatalf("expected a schedule for v1, got %d", len(result.Schedule.Schedules))
	}
	sched := result.Schedule.Schedules[0]
	if len(sched.Checkpoints) == 0 {
		t.Fatalf("expected the schedule half to carry r1's energy checkpoint from the candidate set")
	}
	if sched.EnergyScheduled <= 0 {
		t.Errorf("expected charging toward the candidate route's energy requirement, got %v", sched.EnergyScheduled)
	}
}
