// Package ports declares the interfaces the orchestration layer programs
// against, so controllers never import an adapter package directly (§6.1).
package ports

import (
	"context"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
)

// ForecastSeries is a (t, kW) demand forecast range.
type ForecastSeries struct {
	Points  []domain.ForecastPoint
	MaxTime time.Time
}

// PriceSeries is a (t, price, is_triad) range.
type PriceSeries struct {
	Points  []domain.PricePoint
	MaxTime time.Time
}

// Store is the abstract persistent store every controller reads from and
// writes to (§6.1). Implementations must make every write operation listed
// here transactional with the delete/update it is paired with.
type Store interface {
	RoutesInWindow(ctx context.Context, siteID string, t0, t1 time.Time) ([]domain.Route, error)
	ActiveVehicles(ctx context.Context, siteID string) ([]domain.Vehicle, error)
	VehicleStateAt(ctx context.Context, vehicleID string, t time.Time) (domain.VehicleChargeState, bool, error)
	RoutesForVehiclePlanned(ctx context.Context, vehicleID string, t0, t1 time.Time) ([]domain.Route, error)
	RoutesForVehicleAllocated(ctx context.Context, vehicleID string, t0, t1 time.Time) ([]domain.RouteAllocation, error)
	ForecastMaxTime(ctx context.Context, siteID string) (time.Time, error)
	PriceMaxTime(ctx context.Context, siteID string) (time.Time, error)
	Forecast(ctx context.Context, siteID string, t0, t1 time.Time) (ForecastSeries, error)
	Price(ctx context.Context, siteID string, t0, t1 time.Time) (PriceSeries, error)
	SiteAgreedCapacityKVA(ctx context.Context, siteID string) (float64, error)
	FleetEfficiency(ctx context.Context, siteID string) (domain.FleetEfficiency, error)
	VehicleChargersInWindow(ctx context.Context, vehicleIDs []string, t time.Time, lookback time.Duration) (map[string]domain.Charger, error)

	CreateAllocationMonitor(ctx context.Context, siteID string) (string, error)
	UpdateAllocationMonitor(ctx context.Context, id string, status domain.RunStatus, score float64, inWindow, allocated, overlapping int) error
	ReplaceAllocations(ctx context.Context, siteID string, rows []domain.RouteAllocation) error

	CreateScheduler(ctx context.Context, siteID string) (string, error)
	UpdateSchedulerStatus(ctx context.Context, scheduleID string, status domain.RunStatus) error
	ReplaceSchedule(ctx context.Context, scheduleID string, rows []ScheduleRow) error

	ScheduleByID(ctx context.Context, scheduleID string) (domain.Scheduler, []ScheduleRow, error)
}

// ScheduleRow is one persisted (vehicle, slot) charge row — the densified
// grid form described in §4.5's Output.
type ScheduleRow struct {
	ScheduleID string
	VehicleID  string
	SlotIndex  int
	SlotStart  time.Time
	PowerKW    float64
}
