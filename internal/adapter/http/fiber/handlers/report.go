package handlers

import (
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/ports"
)

// ReportHandler serves read-only reporting over a persisted schedule
// (§6.3); it never solves or writes, only assembles what the store already
// holds.
type ReportHandler struct {
	store ports.Store
	log   *zap.Logger
}

func NewReportHandler(store ports.Store, log *zap.Logger) *ReportHandler {
	return &ReportHandler{store: store, log: log}
}

// Schedule handles GET /report/schedule?schedule_id=&timestamp=.
func (h *ReportHandler) Schedule(c *fiber.Ctx) error {
	scheduleID := c.Query("schedule_id")
	if scheduleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "schedule_id is required"})
	}

	scheduler, rows, err := h.store.ScheduleByID(c.Context(), scheduleID)
	if err != nil {
		h.log.Error("report lookup failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if scheduler.ID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "schedule not found"})
	}

	byVehicle := make(map[string][]ports.ScheduleRow)
	for _, r := range rows {
		byVehicle[r.VehicleID] = append(byVehicle[r.VehicleID], r)
	}

	vehicleReports := make([]fiber.Map, 0, len(byVehicle))
	for vehicleID, vRows := range byVehicle {
		sort.Slice(vRows, func(i, j int) bool { return vRows[i].SlotStart.Before(vRows[j].SlotStart) })

		allocations, err := h.store.RoutesForVehicleAllocated(c.Context(), vehicleID, scheduler.WindowStart, scheduler.WindowEnd)
		if err != nil {
			h.log.Warn("could not load allocated routes for report",
				zap.String("vehicle_id", vehicleID), zap.Error(err))
			allocations = nil
		}
		sort.Slice(allocations, func(i, j int) bool {
			return allocations[i].SequencePosition < allocations[j].SequencePosition
		})

		initialSOC := 0.0
		if state, ok, err := h.store.VehicleStateAt(c.Context(), vehicleID, scheduler.WindowStart); err == nil && ok {
			initialSOC = state.SOCKWh
		}

		totalEnergy := 0.0
		for _, row := range vRows {
			totalEnergy += domain.ChargeSlot{SlotIndex: row.SlotIndex, Start: row.SlotStart, PowerKW: row.PowerKW}.EnergyKWh()
		}

		beforeFirst, between := chargingMinutes(vRows, allocations)

		routeViews := make([]fiber.Map, 0, len(allocations))
		for _, a := range allocations {
			routeViews = append(routeViews, fiber.Map{
				"route_id":          a.RouteID,
				"sequence_position": a.SequencePosition,
				"estimated_arrival": a.EstimatedArrival,
				"arrival_soc_kwh":   a.ArrivalSOCKWh,
			})
		}

		vehicleReports = append(vehicleReports, fiber.Map{
			"vehicle_id":                           vehicleID,
			"initial_soc_kwh":                      initialSOC,
			"final_soc_kwh":                        initialSOC + totalEnergy,
			"total_energy_scheduled_kwh":            totalEnergy,
			"charging_minutes_before_first_route":   beforeFirst,
			"charging_minutes_between_routes":       between,
			"allocated_routes":                      routeViews,
		})
	}

	return c.JSON(fiber.Map{
		"schedule_id":         scheduler.ID,
		"site_id":             scheduler.SiteID,
		"status":              scheduler.Status,
		"window_start":        scheduler.WindowStart,
		"window_end":          scheduler.WindowEnd,
		"total_energy_kwh":    scheduler.TotalEnergyKWh,
		"reported_total_cost": scheduler.ReportedTotalCost,
		"vehicles":            vehicleReports,
	})
}

// chargingMinutes sums the charging-slot minutes that fall before the
// first allocated route's estimated arrival, and in each gap between
// consecutive arrivals.
func chargingMinutes(rows []ports.ScheduleRow, allocations []domain.RouteAllocation) (float64, []float64) {
	if len(allocations) == 0 {
		return sumChargingMinutes(rows, time.Time{}, time.Time{}, false), nil
	}

	before := sumChargingMinutes(rows, time.Time{}, allocations[0].EstimatedArrival, true)

	between := make([]float64, 0, len(allocations)-1)
	for i := 0; i < len(allocations)-1; i++ {
		between = append(between, sumChargingMinutes(rows, allocations[i].EstimatedArrival, allocations[i+1].EstimatedArrival, true))
	}
	return before, between
}

func sumChargingMinutes(rows []ports.ScheduleRow, from, to time.Time, bounded bool) float64 {
	minutes := 0.0
	for _, row := range rows {
		if row.PowerKW < domain.MinChargeableSlotPowerKW {
			continue
		}
		if bounded {
			if !from.IsZero() && row.SlotStart.Before(from) {
				continue
			}
			if !to.IsZero() && !row.SlotStart.Before(to) {
				continue
			}
		}
		minutes += domain.SlotDuration.Minutes()
	}
	return minutes
}
