package constraint

import (
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
)

// Default turnaround minutes (§4.2).
const (
	DefaultTurnaroundMinimumMinutes = 45
	DefaultTurnaroundStandardMinutes = 75
	DefaultTurnaroundOptimalMinutes   = 90
)

// TurnaroundPreferredStepPenalty is the cost added for each preference band
// a gap falls short of (§4.2 "small step penalty").
const TurnaroundPreferredStepPenalty = 1.0

// TurnaroundStrict rejects a sequence when any consecutive gap is shorter
// than the configured minimum (§4.2).
type TurnaroundStrict struct{}

func NewTurnaroundStrict() *TurnaroundStrict { return &TurnaroundStrict{} }

func (c *TurnaroundStrict) Name() string { return "turnaround_time_strict" }
func (c *TurnaroundStrict) Hard() bool   { return true }

func (c *TurnaroundStrict) Evaluate(_ domain.Vehicle, seq domain.RouteSequence, ctx Context) (float64, bool) {
	minimum := minutesParam(ctx, "turnaround_time_strict", "minimum_minutes", DefaultTurnaroundMinimumMinutes)
	routes := seq.Routes
	for i := 1; i < len(routes); i++ {
		gap := routes[i].PlanStart.Sub(routes[i-1].PlanEnd)
		if gap < time.Duration(minimum)*time.Minute {
			return -1, true
		}
	}
	return 0, true
}

// TurnaroundPreferred adds a soft step penalty when a gap falls under the
// standard or optimal bands, without rejecting the sequence (§4.2).
type TurnaroundPreferred struct{}

func NewTurnaroundPreferred() *TurnaroundPreferred { return &TurnaroundPreferred{} }

func (c *TurnaroundPreferred) Name() string { return "turnaround_time_preferred" }
func (c *TurnaroundPreferred) Hard() bool   { return false }

func (c *TurnaroundPreferred) Evaluate(_ domain.Vehicle, seq domain.RouteSequence, ctx Context) (float64, bool) {
	standard := minutesParam(ctx, "turnaround_time_preferred", "standard_minutes", DefaultTurnaroundStandardMinutes)
	optimal := minutesParam(ctx, "turnaround_time_preferred", "optimal_minutes", DefaultTurnaroundOptimalMinutes)

	penalty := 0.0
	routes := seq.Routes
	for i := 1; i < len(routes); i++ {
		gapMin := routes[i].PlanStart.Sub(routes[i-1].PlanEnd).Minutes()
		if gapMin < standard {
			penalty += TurnaroundPreferredStepPenalty
		}
		if gapMin < optimal {
			penalty += TurnaroundPreferredStepPenalty
		}
	}
	return -penalty, false
}

func minutesParam(ctx Context, constraintName, param string, def float64) float64 {
	if ctx.SiteCfg == nil {
		return def
	}
	return ctx.SiteCfg.NumberOr(maf.ConstraintParam(constraintName, param), def)
}
