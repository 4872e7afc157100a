package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/ports"
)

// fakeStore is an in-memory ports.Store for exercising the orchestration
// template without a database.
type fakeStore struct {
	mu sync.Mutex

	routes           []domain.Route
	plannedByVehicle map[string][]domain.Route
	vehicles         []domain.Vehicle
	states           map[string]domain.VehicleChargeState
	chargers         map[string]domain.Charger
	efficiency       domain.FleetEfficiency
	forecast         ports.ForecastSeries
	price            ports.PriceSeries
	ascKVA           float64

	monitors    map[string]*domain.AllocationMonitor
	schedulers  map[string]*domain.Scheduler
	allocations map[string][]domain.RouteAllocation
	scheduleRows map[string][]ports.ScheduleRow
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		plannedByVehicle: make(map[string][]domain.Route),
		states:           make(map[string]domain.VehicleChargeState),
		chargers:         make(map[string]domain.Charger),
		monitors:         make(map[string]*domain.AllocationMonitor),
		schedulers:       make(map[string]*domain.Scheduler),
		allocations:      make(map[string][]domain.RouteAllocation),
		scheduleRows:     make(map[string][]ports.ScheduleRow),
	}
}

func (s *fakeStore) newID() string {
	s.nextID++
	return fmt.Sprintf("id-%d", s.nextID)
}

func (s *fakeStore) RoutesInWindow(_ context.Context, siteID string, t0, t1 time.Time) ([]domain.Route, error) {
	var out []domain.Route
	for _, r := range s.routes {
		if r.SiteID == siteID && !r.PlanStart.Before(t0) && r.PlanStart.Before(t1) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) ActiveVehicles(_ context.Context, siteID string) ([]domain.Vehicle, error) {
	var out []domain.Vehicle
	for _, v := range s.vehicles {
		if v.SiteID == siteID && v.Active && !v.VOR {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeStore) VehicleStateAt(_ context.Context, vehicleID string, _ time.Time) (domain.VehicleChargeState, bool, error) {
	st, ok := s.states[vehicleID]
	return st, ok, nil
}

func (s *fakeStore) RoutesForVehiclePlanned(_ context.Context, vehicleID string, t0, t1 time.Time) ([]domain.Route, error) {
	var out []domain.Route
	for _, r := range s.plannedByVehicle[vehicleID] {
		if !r.PlanStart.Before(t0) && r.PlanStart.Before(t1) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) RoutesForVehicleAllocated(_ context.Context, _ string, _, _ time.Time) ([]domain.RouteAllocation, error) {
	return nil, nil
}

func (s *fakeStore) ForecastMaxTime(_ context.Context, _ string) (time.Time, error) {
	return s.forecast.MaxTime, nil
}

func (s *fakeStore) PriceMaxTime(_ context.Context, _ string) (time.Time, error) {
	return s.price.MaxTime, nil
}

func (s *fakeStore) Forecast(_ context.Context, _ string, _, _ time.Time) (ports.ForecastSeries, error) {
	return s.forecast, nil
}

func (s *fakeStore) Price(_ context.Context, _ string, _, _ time.Time) (ports.PriceSeries, error) {
	return s.price, nil
}

func (s *fakeStore) SiteAgreedCapacityKVA(_ context.Context, _ string) (float64, error) {
	return s.ascKVA, nil
}

func (s *fakeStore) FleetEfficiency(_ context.Context, _ string) (domain.FleetEfficiency, error) {
	return s.efficiency, nil
}

func (s *fakeStore) VehicleChargersInWindow(_ context.Context, _ []string, _ time.Time, _ time.Duration) (map[string]domain.Charger, error) {
	return s.chargers, nil
}

func (s *fakeStore) CreateAllocationMonitor(_ context.Context, siteID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.monitors[id] = &domain.AllocationMonitor{ID: id, SiteID: siteID, Status: domain.RunStatusNew}
	return id, nil
}

func (s *fakeStore) UpdateAllocationMonitor(_ context.Context, id string, status domain.RunStatus, score float64, inWindow, allocated, overlapping int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monitors[id]
	if !ok {
		return fmt.Errorf("fake store: no monitor %s", id)
	}
	m.Status = status
	m.TotalScore = score
	m.RoutesInWindow = inWindow
	m.RoutesAllocated = allocated
	m.RoutesOverlappingCount = overlapping
	return nil
}

func (s *fakeStore) ReplaceAllocations(_ context.Context, siteID string, rows []domain.RouteAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocations[siteID] = rows
	return nil
}

func (s *fakeStore) CreateScheduler(_ context.Context, siteID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.schedulers[id] = &domain.Scheduler{ID: id, SiteID: siteID, Status: domain.RunStatusNew}
	return id, nil
}

func (s *fakeStore) UpdateSchedulerStatus(_ context.Context, scheduleID string, status domain.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedulers[scheduleID]
	if !ok {
		return fmt.Errorf("fake store: no scheduler %s", scheduleID)
	}
	sch.Status = status
	return nil
}

func (s *fakeStore) ReplaceSchedule(_ context.Context, scheduleID string, rows []ports.ScheduleRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleRows[scheduleID] = rows
	return nil
}

func (s *fakeStore) ScheduleByID(_ context.Context, scheduleID string) (domain.Scheduler, []ports.ScheduleRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedulers[scheduleID]
	if !ok {
		return domain.Scheduler{}, nil, fmt.Errorf("fake store: no scheduler %s", scheduleID)
	}
	return *sch, s.scheduleRows[scheduleID], nil
}

// fakeQueue records every published subject.
type fakeQueue struct {
	mu        sync.Mutex
	published []string
}

func (q *fakeQueue) Publish(subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, subject)
	return nil
}

// fakeNotifier records every failure notification sent.
type fakeNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *fakeNotifier) NotifyRunFailure(siteID, runKind, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, fmt.Sprintf("%s/%s: %s", siteID, runKind, reason))
	return nil
}
