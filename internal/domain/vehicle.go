package domain

import "time"

// VehicleStatus is the scheduling-relevant lifecycle state of a vehicle as of
// a given instant.
type VehicleStatus string

const (
	VehicleStatusIdle     VehicleStatus = "Idle"
	VehicleStatusOnRoute  VehicleStatus = "OnRoute"
	VehicleStatusCharging VehicleStatus = "Charging"
	VehicleStatusVOR      VehicleStatus = "VOR"
)

// ExcludedSOC is the sentinel last-known SOC meaning "exclude this vehicle
// from scheduling" (§3).
const ExcludedSOC = -111

// Vehicle is owned by the store and read by the controller once per run.
type Vehicle struct {
	ID                  string  `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	SiteID              string  `json:"site_id" gorm:"index;not null"`
	Active              bool    `json:"active"`
	VOR                 bool    `json:"vor"`
	BatteryKWh          float64 `json:"battery_kwh"`
	EfficiencyKWhPerMile float64 `json:"efficiency_kwh_per_mile"`
	ACRateKW            float64 `json:"ac_rate_kw"`
	DCRateKW            float64 `json:"dc_rate_kw"`
	LastKnownSOCKWh     *float64   `json:"last_known_soc_kwh,omitempty"`
	ReturnETA           *time.Time `json:"return_eta,omitempty"`
	TelematicLabel      string     `json:"telematic_label,omitempty" gorm:"-"`
}

// MaxRateKW returns the charge rate ceiling this vehicle should be scheduled
// against. The constraint engine's energy simulation passes the bound
// charger's DC capability; the slot scheduler reads ACRateKW directly and
// does not call this (§4.5, §9 Open Question c).
func (v Vehicle) MaxRateKW(dcBound bool) float64 {
	if dcBound && v.DCRateKW > 0 {
		return v.DCRateKW
	}
	return v.ACRateKW
}

// VehicleChargeState is the "as-of T" mutable snapshot of a vehicle used by
// both solvers. It is never constructed from an implicit "now" — the caller
// always supplies T (§9 "as-of vehicle state").
type VehicleChargeState struct {
	VehicleID      string        `json:"vehicle_id"`
	SOCKWh         float64       `json:"soc_kwh"`
	AvailableAtT   time.Time     `json:"t_avail"`
	ChargerID      string        `json:"charger_id,omitempty"`
	Status         VehicleStatus `json:"status"`
}

// Excluded reports whether this state's SOC sentinel marks the vehicle as
// out of scheduling scope for the run (§3).
func (s VehicleChargeState) Excluded() bool {
	return s.SOCKWh == ExcludedSOC
}

// AvailableEnergyKWh is the energy a vehicle can depart with right now,
// clamped to a non-negative value for vehicles with an excluded SOC.
func (s VehicleChargeState) AvailableEnergyKWh() float64 {
	if s.Excluded() {
		return 0
	}
	return s.SOCKWh
}

// Charger is the depot-side binding of a vehicle to a physical charge point,
// derived at load time from raw charge history (§9 "per-vehicle charger
// uniqueness").
type Charger struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	SiteID    string    `json:"site_id" gorm:"index"`
	VehicleID string    `json:"vehicle_id,omitempty"`
	DCCapable bool      `json:"dc_capable"`
	StartedAt time.Time `json:"started_at"`
}

// DisconnectedChargerID is the key used by the charger_preference constraint
// cost table for a vehicle with no current charger binding (§4.2).
const DisconnectedChargerID = "DISC"
