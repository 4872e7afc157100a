//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/ports"
)

// setupTestDB connects to DATABASE_URL when set (CI), otherwise starts a
// disposable postgres container for the duration of the test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger := zap.NewNop()

	if url := os.Getenv("DATABASE_URL"); url != "" {
		db, err := NewConnection(url, logger)
		if err != nil {
			t.Fatalf("connect to external database: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("run migrations: %v", err)
		}
		return db
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fleet_test"),
		tcpostgres.WithUsername("fleet"),
		tcpostgres.WithPassword("fleet_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://fleet:fleet_test@%s:%s/fleet_test?sslmode=disable", host, port.Port())
	db, err := NewConnection(dsn, logger)
	if err != nil {
		t.Fatalf("connect to container database: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func TestStore_AllocationRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db, zap.NewNop())
	ctx := context.Background()

	siteID := "site-round-trip"
	monitorID, err := store.CreateAllocationMonitor(ctx, siteID)
	if err != nil {
		t.Fatalf("create allocation monitor: %v", err)
	}
	if monitorID == "" {
		t.Fatal("expected a non-empty monitor id")
	}

	arrival := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	rows := []domain.RouteAllocation{
		{RouteID: "route-1", VehicleID: "vehicle-1", SiteID: siteID, SequencePosition: 0, EstimatedArrival: arrival, ArrivalSOCKWh: 42.5, Cost: 1.0},
		{RouteID: "route-2", VehicleID: "vehicle-1", SiteID: siteID, SequencePosition: 1, EstimatedArrival: arrival.Add(3 * time.Hour), ArrivalSOCKWh: 30.0, Cost: 2.0},
	}
	if err := store.ReplaceAllocations(ctx, siteID, rows); err != nil {
		t.Fatalf("replace allocations: %v", err)
	}

	got, err := store.RoutesForVehicleAllocated(ctx, "vehicle-1", arrival.Add(-time.Hour), arrival.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("routes for vehicle allocated: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 allocated routes, got %d", len(got))
	}

	// Re-running with a smaller row set must leave only the new rows behind.
	if err := store.ReplaceAllocations(ctx, siteID, rows[:1]); err != nil {
		t.Fatalf("replace allocations (second run): %v", err)
	}
	got, err = store.RoutesForVehicleAllocated(ctx, "vehicle-1", arrival.Add(-time.Hour), arrival.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("routes for vehicle allocated (second run): %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected replace to leave exactly 1 row, got %d", len(got))
	}

	if err := store.UpdateAllocationMonitor(ctx, monitorID, domain.RunStatusAccepted, 0.9, 2, 1, 0); err != nil {
		t.Fatalf("update allocation monitor: %v", err)
	}
}

func TestStore_ScheduleRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db, zap.NewNop())
	ctx := context.Background()

	siteID := "site-schedule-round-trip"
	scheduleID, err := store.CreateScheduler(ctx, siteID)
	if err != nil {
		t.Fatalf("create scheduler: %v", err)
	}

	windowStart := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	rows := []ports.ScheduleRow{
		{ScheduleID: scheduleID, VehicleID: "vehicle-1", SlotIndex: 0, SlotStart: windowStart, PowerKW: 11},
		{ScheduleID: scheduleID, VehicleID: "vehicle-1", SlotIndex: 1, SlotStart: windowStart.Add(30 * time.Minute), PowerKW: 11},
	}
	if err := store.ReplaceSchedule(ctx, scheduleID, rows); err != nil {
		t.Fatalf("replace schedule: %v", err)
	}
	if err := store.UpdateSchedulerStatus(ctx, scheduleID, domain.RunStatusCompleted); err != nil {
		t.Fatalf("update scheduler status: %v", err)
	}

	scheduler, gotRows, err := store.ScheduleByID(ctx, scheduleID)
	if err != nil {
		t.Fatalf("schedule by id: %v", err)
	}
	if scheduler.ID != scheduleID {
		t.Fatalf("expected scheduler id %q, got %q", scheduleID, scheduler.ID)
	}
	if scheduler.Status != domain.RunStatusCompleted {
		t.Fatalf("expected status %q, got %q", domain.RunStatusCompleted, scheduler.Status)
	}
	if len(gotRows) != 2 {
		t.Fatalf("expected 2 schedule rows, got %d", len(gotRows))
	}

	unknown, unknownRows, err := store.ScheduleByID(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("schedule by id (unknown): %v", err)
	}
	if unknown.ID != "" || unknownRows != nil {
		t.Fatalf("expected zero-value result for unknown schedule, got %+v / %v", unknown, unknownRows)
	}
}
