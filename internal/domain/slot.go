package domain

import "time"

// SlotDuration is the fixed width of one charge-scheduling slot (§3).
const SlotDuration = 30 * time.Minute

// TimeSlot is a half-open 30-minute interval on the scheduling grid.
type TimeSlot struct {
	Index int
	Start time.Time
	End   time.Time
}

// SlotIndex computes the deterministic slot index of t relative to
// windowStart: idx = (slot_start - window_start) / 30m. windowStart must
// already be snapped to a 30-minute boundary.
func SlotIndex(windowStart, t time.Time) int {
	return int(t.Sub(windowStart) / SlotDuration)
}

// BuildSlots generates the exact grid {windowStart + 30i*min : 0 <= i < n}
// for a window of n slots.
func BuildSlots(windowStart time.Time, n int) []TimeSlot {
	slots := make([]TimeSlot, n)
	for i := 0; i < n; i++ {
		start := windowStart.Add(time.Duration(i) * SlotDuration)
		slots[i] = TimeSlot{Index: i, Start: start, End: start.Add(SlotDuration)}
	}
	return slots
}

// SnapUpToSlotBoundary rounds t up to the nearest 30-minute boundary at or
// after t, the horizon-start snap described in §4.5.
func SnapUpToSlotBoundary(t time.Time) time.Time {
	rounded := t.Truncate(SlotDuration)
	if rounded.Before(t) {
		rounded = rounded.Add(SlotDuration)
	}
	return rounded
}

// ChargeSlot is one vehicle's scheduled power draw in one slot (§3).
type ChargeSlot struct {
	SlotIndex int       `json:"slot_index"`
	Start     time.Time `json:"start"`
	PowerKW   float64   `json:"power_kw"`
}

// EnergyKWh returns the energy delivered in this slot: 0.5 * power_kw.
func (c ChargeSlot) EnergyKWh() float64 {
	return 0.5 * c.PowerKW
}

// MinChargeableSlotPowerKW is the threshold below which a slot is dropped
// from the in-memory schedule's slot list (§4.5) — persistence still
// densifies to one row per (vehicle, slot) with zero power.
const MinChargeableSlotPowerKW = 0.01
