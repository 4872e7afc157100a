package domain

import "time"

// ForecastPoint is one half-hourly site demand forecast reading (kW).
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	DemandKW  float64   `json:"demand_kw"`
}

// PricePoint is one half-hourly electricity price reading, with the TRIAD
// peak flag described in the glossary.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	IsTRIAD   bool       `json:"is_triad"`
}

// FleetEfficiency is the site-wide average efficiency used as a fallback
// when a vehicle's own efficiency is unavailable (§4.7).
type FleetEfficiency struct {
	VehicleCount        int
	MeanEfficiencyKWhMi float64
}

// DefaultFleetEfficiencyKWhPerMile is used when no active vehicles are found.
const DefaultFleetEfficiencyKWhPerMile = 0.35
