package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/controller"
	"github.com/depotfleet/sigec-fleet/internal/domain"
)

// OptimizeHandler serves the single planning entry point the HTTP façade
// exposes (§6.3): one body selects which of allocation, scheduling, or the
// fused run to execute for a site.
type OptimizeHandler struct {
	ctrl *controller.Controller
	log  *zap.Logger
}

func NewOptimizeHandler(ctrl *controller.Controller, log *zap.Logger) *OptimizeHandler {
	return &OptimizeHandler{ctrl: ctrl, log: log}
}

type optimizeRequest struct {
	SiteID            string   `json:"site_id"`
	TriggerType       string   `json:"trigger_type,omitempty"`
	ScheduleID        string   `json:"schedule_id,omitempty"`
	Mode              string   `json:"mode,omitempty"`
	TestStartTime     string   `json:"test_start_time,omitempty"`
	WindowHours       float64  `json:"window_hours,omitempty"`
	PersistToDatabase *bool    `json:"persist_to_database,omitempty"`
	WRoute            *float64 `json:"w_route,omitempty"`
	MinScore          *float64 `json:"min_score,omitempty"`
	Alpha             *float64 `json:"alpha,omitempty"`
	Beta              *float64 `json:"beta,omitempty"`
	TriadPenalty      *float64 `json:"triad_penalty,omitempty"`
	TimeLimitSeconds  *float64 `json:"time_limit_seconds,omitempty"`
}

// Unified handles POST /optimize/unified.
func (h *OptimizeHandler) Unified(c *fiber.Ctx) error {
	var req optimizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.SiteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "site_id is required"})
	}
	mode := req.Mode
	if mode == "" {
		mode = string(domain.ModeIntegrated)
	}

	t := time.Now().UTC()
	if req.TestStartTime != "" {
		parsed, err := parseStartTime(req.TestStartTime)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		t = parsed
	}
	persist := true
	if req.PersistToDatabase != nil {
		persist = *req.PersistToDatabase
	}
	timeLimit := time.Duration(0)
	if req.TimeLimitSeconds != nil {
		timeLimit = time.Duration(*req.TimeLimitSeconds * float64(time.Second))
	}

	allocOpts := controller.DefaultAllocationOptions()
	allocOpts.WindowHours = req.WindowHours
	allocOpts.Persist = persist
	if req.WRoute != nil {
		allocOpts.WRoute = *req.WRoute
	}
	if req.MinScore != nil {
		allocOpts.MinScore = *req.MinScore
	}
	if timeLimit > 0 {
		allocOpts.TimeLimit = timeLimit
	}

	schedOpts := controller.DefaultScheduleOptions()
	schedOpts.WindowHours = req.WindowHours
	schedOpts.Persist = persist
	if req.TriadPenalty != nil {
		schedOpts.TriadPenalty = *req.TriadPenalty
	}
	if timeLimit > 0 {
		schedOpts.TimeLimit = timeLimit
	}

	resp := fiber.Map{"success": true}

	switch mode {
	case string(domain.ModeAllocationOnly):
		result, err := h.ctrl.RunAllocation(c.Context(), req.SiteID, t, allocOpts)
		if err != nil {
			h.log.Error("allocation run failed", zap.String("site_id", req.SiteID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		resp["allocation"] = allocationView(result)
		resp["unified_result"] = fiber.Map{"mode": mode, "allocation_status": result.Monitor.Status}
	case string(domain.ModeSchedulingOnly):
		result, err := h.ctrl.RunSchedule(c.Context(), req.SiteID, t, schedOpts)
		if err != nil {
			h.log.Error("schedule run failed", zap.String("site_id", req.SiteID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		resp["schedule"] = scheduleView(result)
		resp["unified_result"] = fiber.Map{"mode": mode, "schedule_status": result.Scheduler.Status}
	case string(domain.ModeIntegrated):
		unifiedOpts := controller.DefaultUnifiedOptions()
		unifiedOpts.Allocation = allocOpts
		unifiedOpts.Schedule = schedOpts
		if req.Alpha != nil {
			unifiedOpts.Alpha = *req.Alpha
		}
		if req.Beta != nil {
			unifiedOpts.Beta = *req.Beta
		}
		result, err := h.ctrl.RunUnified(c.Context(), req.SiteID, t, unifiedOpts)
		if err != nil {
			h.log.Error("unified run failed", zap.String("site_id", req.SiteID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		resp["allocation"] = allocationView(result.Allocation)
		resp["schedule"] = scheduleView(result.Schedule)
		resp["unified_result"] = fiber.Map{
			"mode":              mode,
			"allocation_status": result.Allocation.Monitor.Status,
			"schedule_status":   result.Schedule.Scheduler.Status,
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown mode: " + mode})
	}

	return c.JSON(resp)
}

// parseStartTime accepts either ISO-8601 or the "YYYY-MM-DD HH:MM:SS" form
// used by the CLI surface (§6.2).
func parseStartTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(raw)); err == nil {
		return t, nil
	}
	return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "test_start_time must be ISO-8601 or \"YYYY-MM-DD HH:MM:SS\"")
}

func allocationView(result domain.AllocationResult) fiber.Map {
	allocations := make([]fiber.Map, 0, len(result.Allocations))
	for _, a := range result.Allocations {
		allocations = append(allocations, fiber.Map{
			"route_id":          a.RouteID,
			"vehicle_id":        a.VehicleID,
			"sequence_position": a.SequencePosition,
			"estimated_arrival": a.EstimatedArrival,
			"arrival_soc_kwh":   a.ArrivalSOCKWh,
			"cost":              a.Cost,
		})
	}
	return fiber.Map{
		"monitor_id":       result.Monitor.ID,
		"status":           result.Monitor.Status,
		"total_score":      result.Monitor.TotalScore,
		"routes_in_window": result.Monitor.RoutesInWindow,
		"routes_allocated": result.Monitor.RoutesAllocated,
		"unallocated":      result.Unallocated,
		"allocations":      allocations,
	}
}

func scheduleView(result domain.ScheduleResult) fiber.Map {
	schedules := make([]fiber.Map, 0, len(result.Schedules))
	for _, s := range result.Schedules {
		schedules = append(schedules, fiber.Map{
			"vehicle_id":       s.VehicleID,
			"initial_soc_kwh":  s.InitialSOCKWh,
			"final_soc_kwh":    s.FinalSOCKWh(),
			"energy_scheduled": s.EnergyScheduled,
			"shortfall_kwh":    s.ShortfallKWh,
			"charger_id":       s.ChargerID,
		})
	}
	return fiber.Map{
		"schedule_id":         result.Scheduler.ID,
		"status":              result.Scheduler.Status,
		"objective_value":     result.Scheduler.ObjectiveValue,
		"reported_total_cost": result.Scheduler.ReportedTotalCost,
		"total_energy_kwh":    result.Scheduler.TotalEnergyKWh,
		"shortfalls":          result.Shortfalls,
		"vehicles":            schedules,
	}
}
