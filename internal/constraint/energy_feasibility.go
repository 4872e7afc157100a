package constraint

import (
	"github.com/depotfleet/sigec-fleet/internal/domain"
)

// DefaultEnergyFeasibilitySafetyMarginKWh is the floor the simulated SOC
// must never drop below (§4.2). Sites tune it via MAF.
const DefaultEnergyFeasibilitySafetyMarginKWh = 0.0

// EnergyFeasibilityPenalty is reported when the simulated SOC dips under
// the safety margin at any checkpoint.
const EnergyFeasibilityPenalty = -1.0

// EnergyFeasibility simulates battery SOC across a candidate sequence,
// charging between routes at the vehicle/charger-limited rate and
// discharging by each route's energy requirement, rejecting the sequence
// if SOC ever drops below the configured safety margin (§4.2).
type EnergyFeasibility struct{}

func NewEnergyFeasibility() *EnergyFeasibility { return &EnergyFeasibility{} }

func (c *EnergyFeasibility) Name() string { return "energy_feasibility" }
func (c *EnergyFeasibility) Hard() bool   { return true }

func (c *EnergyFeasibility) Evaluate(v domain.Vehicle, seq domain.RouteSequence, ctx Context) (float64, bool) {
	margin := DefaultEnergyFeasibilitySafetyMarginKWh
	if ctx.SiteCfg != nil {
		margin = ctx.SiteCfg.NumberOr("constraint_energy_feasibility_safety_margin_kwh", DefaultEnergyFeasibilitySafetyMarginKWh)
	}
	chargeRateKW := v.MaxRateKW(ctx.Charger.DCCapable)

	soc := ctx.State.AvailableEnergyKWh()
	prevEnd := ctx.T

	for _, r := range seq.Routes {
		gapHours := r.PlanStart.Sub(prevEnd).Hours()
		if gapHours > 0 {
			soc += gapHours * chargeRateKW
			if soc > v.BatteryKWh {
				soc = v.BatteryKWh
			}
		}
		soc -= domain.RouteEnergyNeeded(r.PlanMileage, v.EfficiencyKWhPerMile)
		if soc < margin {
			return EnergyFeasibilityPenalty, true
		}
		prevEnd = r.PlanEnd
	}
	return 0, true
}
