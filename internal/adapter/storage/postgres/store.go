package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/ports"
)

// vehicleTelemetryRow is one as-of charge-state reading, the time series
// VehicleStateAt reads the latest entry at-or-before T from.
type vehicleTelemetryRow struct {
	VehicleID string    `gorm:"primaryKey;index:idx_vehicle_telemetry_vt,priority:1"`
	Timestamp time.Time `gorm:"primaryKey;index:idx_vehicle_telemetry_vt,priority:2"`
	SOCKWh    float64
	ChargerID string
	Status    domain.VehicleStatus
}

func (vehicleTelemetryRow) TableName() string { return "vehicle_telemetry" }

// forecastRow and priceRow back the site-level demand forecast and price
// series respectively.
type forecastRow struct {
	SiteID    string    `gorm:"primaryKey;index:idx_forecast_st,priority:1"`
	Timestamp time.Time `gorm:"primaryKey;index:idx_forecast_st,priority:2"`
	DemandKW  float64
}

func (forecastRow) TableName() string { return "site_forecast" }

type priceRow struct {
	SiteID    string    `gorm:"primaryKey;index:idx_price_st,priority:1"`
	Timestamp time.Time `gorm:"primaryKey;index:idx_price_st,priority:2"`
	Price     float64
	IsTRIAD   bool
}

func (priceRow) TableName() string { return "site_price" }

// siteCapacityRow carries each site's agreed supply capacity.
type siteCapacityRow struct {
	SiteID        string `gorm:"primaryKey"`
	AgreedKVA     float64
}

func (siteCapacityRow) TableName() string { return "site_capacity" }

// scheduleRowModel is the gorm-backed form of ports.ScheduleRow.
type scheduleRowModel struct {
	ScheduleID string    `gorm:"primaryKey;index:idx_schedule_rows_sv,priority:1"`
	VehicleID  string    `gorm:"primaryKey;index:idx_schedule_rows_sv,priority:2"`
	SlotIndex  int       `gorm:"primaryKey"`
	SlotStart  time.Time
	PowerKW    float64
}

func (scheduleRowModel) TableName() string { return "schedule_rows" }

// Store implements ports.Store against PostgreSQL via GORM.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewStore builds a Store over an already-connected *gorm.DB.
func NewStore(db *gorm.DB, log *zap.Logger) ports.Store {
	return &Store{db: db, log: log}
}

func (s *Store) RoutesInWindow(ctx context.Context, siteID string, t0, t1 time.Time) ([]domain.Route, error) {
	var routes []domain.Route
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND plan_start >= ? AND plan_start < ?", siteID, t0, t1).
		Order("plan_start asc").
		Find(&routes).Error
	return routes, err
}

func (s *Store) ActiveVehicles(ctx context.Context, siteID string) ([]domain.Vehicle, error) {
	var vehicles []domain.Vehicle
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND active = ? AND vor = ?", siteID, true, false).
		Find(&vehicles).Error
	return vehicles, err
}

func (s *Store) VehicleStateAt(ctx context.Context, vehicleID string, t time.Time) (domain.VehicleChargeState, bool, error) {
	var row vehicleTelemetryRow
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND timestamp <= ?", vehicleID, t).
		Order("timestamp desc").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.VehicleChargeState{}, false, nil
		}
		return domain.VehicleChargeState{}, false, err
	}
	return domain.VehicleChargeState{
		VehicleID:    row.VehicleID,
		SOCKWh:       row.SOCKWh,
		AvailableAtT: row.Timestamp,
		ChargerID:    row.ChargerID,
		Status:       row.Status,
	}, true, nil
}

func (s *Store) RoutesForVehiclePlanned(ctx context.Context, vehicleID string, t0, t1 time.Time) ([]domain.Route, error) {
	var routes []domain.Route
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND plan_start >= ? AND plan_start < ?", vehicleID, t0, t1).
		Order("plan_start asc").
		Find(&routes).Error
	return routes, err
}

func (s *Store) RoutesForVehicleAllocated(ctx context.Context, vehicleID string, t0, t1 time.Time) ([]domain.RouteAllocation, error) {
	var rows []domain.RouteAllocation
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND estimated_arrival >= ? AND estimated_arrival < ?", vehicleID, t0, t1).
		Order("sequence_position asc").
		Find(&rows).Error
	return rows, err
}

func (s *Store) ForecastMaxTime(ctx context.Context, siteID string) (time.Time, error) {
	var row forecastRow
	err := s.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("timestamp desc").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return row.Timestamp, nil
}

func (s *Store) PriceMaxTime(ctx context.Context, siteID string) (time.Time, error) {
	var row priceRow
	err := s.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("timestamp desc").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return row.Timestamp, nil
}

func (s *Store) Forecast(ctx context.Context, siteID string, t0, t1 time.Time) (ports.ForecastSeries, error) {
	var rows []forecastRow
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND timestamp >= ? AND timestamp < ?", siteID, t0, t1).
		Order("timestamp asc").
		Find(&rows).Error
	if err != nil {
		return ports.ForecastSeries{}, err
	}
	points := make([]domain.ForecastPoint, len(rows))
	for i, r := range rows {
		points[i] = domain.ForecastPoint{Timestamp: r.Timestamp, DemandKW: r.DemandKW}
	}
	maxTime, err := s.ForecastMaxTime(ctx, siteID)
	if err != nil {
		return ports.ForecastSeries{}, err
	}
	return ports.ForecastSeries{Points: points, MaxTime: maxTime}, nil
}

func (s *Store) Price(ctx context.Context, siteID string, t0, t1 time.Time) (ports.PriceSeries, error) {
	var rows []priceRow
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND timestamp >= ? AND timestamp < ?", siteID, t0, t1).
		Order("timestamp asc").
		Find(&rows).Error
	if err != nil {
		return ports.PriceSeries{}, err
	}
	points := make([]domain.PricePoint, len(rows))
	for i, r := range rows {
		points[i] = domain.PricePoint{Timestamp: r.Timestamp, Price: r.Price, IsTRIAD: r.IsTRIAD}
	}
	maxTime, err := s.PriceMaxTime(ctx, siteID)
	if err != nil {
		return ports.PriceSeries{}, err
	}
	return ports.PriceSeries{Points: points, MaxTime: maxTime}, nil
}

func (s *Store) SiteAgreedCapacityKVA(ctx context.Context, siteID string) (float64, error) {
	var row siteCapacityRow
	err := s.db.WithContext(ctx).Where("site_id = ?", siteID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.AgreedKVA, nil
}

func (s *Store) FleetEfficiency(ctx context.Context, siteID string) (domain.FleetEfficiency, error) {
	var result struct {
		VehicleCount int
		MeanKWhMi    float64
	}
	err := s.db.WithContext(ctx).
		Model(&domain.Vehicle{}).
		Select("count(*) as vehicle_count, coalesce(avg(efficiency_kwh_per_mile), 0) as mean_kwh_mi").
		Where("site_id = ? AND active = ?", siteID, true).
		Scan(&result).Error
	if err != nil {
		return domain.FleetEfficiency{}, err
	}
	return domain.FleetEfficiency{VehicleCount: result.VehicleCount, MeanEfficiencyKWhMi: result.MeanKWhMi}, nil
}

func (s *Store) VehicleChargersInWindow(ctx context.Context, vehicleIDs []string, t time.Time, lookback time.Duration) (map[string]domain.Charger, error) {
	out := make(map[string]domain.Charger, len(vehicleIDs))
	if len(vehicleIDs) == 0 {
		return out, nil
	}
	var rows []domain.Charger
	err := s.db.WithContext(ctx).
		Where("vehicle_id IN ? AND started_at >= ? AND started_at <= ?", vehicleIDs, t.Add(-lookback), t).
		Order("started_at desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	// rows are newest-first; keep only the first (most recent) per vehicle
	for _, c := range rows {
		if _, seen := out[c.VehicleID]; !seen {
			out[c.VehicleID] = c
		}
	}
	resolveSharedChargers(out)
	return out, nil
}

// resolveSharedChargers enforces the "one physical charger, one vehicle"
// invariant: when two different vehicles are bound to the same charger id,
// only the vehicle whose binding started most recently keeps it; the other
// vehicle's entry is dropped entirely, resolving it to disconnected.
func resolveSharedChargers(out map[string]domain.Charger) {
	byCharger := make(map[string]string, len(out)) // charger id -> winning vehicle id
	for vehicleID, c := range out {
		winner, seen := byCharger[c.ID]
		switch {
		case !seen:
			byCharger[c.ID] = vehicleID
		case c.StartedAt.After(out[winner].StartedAt):
			byCharger[c.ID] = vehicleID
		case c.StartedAt.Equal(out[winner].StartedAt) && vehicleID < winner:
			// deterministic tie-break independent of map iteration order
			byCharger[c.ID] = vehicleID
		}
	}
	for vehicleID, c := range out {
		if byCharger[c.ID] != vehicleID {
			delete(out, vehicleID)
		}
	}
}

func (s *Store) CreateAllocationMonitor(ctx context.Context, siteID string) (string, error) {
	m := domain.AllocationMonitor{SiteID: siteID, Status: domain.RunStatusNew}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *Store) UpdateAllocationMonitor(ctx context.Context, id string, status domain.RunStatus, score float64, inWindow, allocated, overlapping int) error {
	return s.db.WithContext(ctx).Model(&domain.AllocationMonitor{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                   status,
			"total_score":              score,
			"routes_in_window":         inWindow,
			"routes_allocated":         allocated,
			"routes_overlapping_count": overlapping,
		}).Error
}

// ReplaceAllocations deletes every prior allocation row for siteID and
// inserts rows in a single transaction, the delete-then-insert pattern
// required per run (§5).
func (s *Store) ReplaceAllocations(ctx context.Context, siteID string, rows []domain.RouteAllocation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", siteID).Delete(&domain.RouteAllocation{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (s *Store) CreateScheduler(ctx context.Context, siteID string) (string, error) {
	sch := domain.Scheduler{SiteID: siteID, Status: domain.RunStatusNew}
	if err := s.db.WithContext(ctx).Create(&sch).Error; err != nil {
		return "", err
	}
	return sch.ID, nil
}

func (s *Store) UpdateSchedulerStatus(ctx context.Context, scheduleID string, status domain.RunStatus) error {
	return s.db.WithContext(ctx).Model(&domain.Scheduler{}).
		Where("id = ?", scheduleID).
		Update("status", status).Error
}

// ReplaceSchedule deletes every prior row for scheduleID and inserts the
// densified grid in one transaction (§5).
func (s *Store) ReplaceSchedule(ctx context.Context, scheduleID string, rows []ports.ScheduleRow) error {
	wired := make([]scheduleRowModel, len(rows))
	for i, r := range rows {
		wired[i] = scheduleRowModel{
			ScheduleID: r.ScheduleID,
			VehicleID:  r.VehicleID,
			SlotIndex:  r.SlotIndex,
			SlotStart:  r.SlotStart,
			PowerKW:    r.PowerKW,
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", scheduleID).Delete(&scheduleRowModel{}).Error; err != nil {
			return err
		}
		if len(wired) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&wired).Error
	})
}

func (s *Store) ScheduleByID(ctx context.Context, scheduleID string) (domain.Scheduler, []ports.ScheduleRow, error) {
	var sch domain.Scheduler
	if err := s.db.WithContext(ctx).First(&sch, "id = ?", scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Scheduler{}, nil, nil
		}
		return domain.Scheduler{}, nil, err
	}
	var wired []scheduleRowModel
	if err := s.db.WithContext(ctx).Where("schedule_id = ?", scheduleID).Order("vehicle_id, slot_index").Find(&wired).Error; err != nil {
		return domain.Scheduler{}, nil, err
	}
	rows := make([]ports.ScheduleRow, len(wired))
	for i, w := range wired {
		rows[i] = ports.ScheduleRow{
			ScheduleID: w.ScheduleID,
			VehicleID:  w.VehicleID,
			SlotIndex:  w.SlotIndex,
			SlotStart:  w.SlotStart,
			PowerKW:    w.PowerKW,
		}
	}
	return sch, rows, nil
}
