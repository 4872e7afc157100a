// Package constraint implements the pluggable constraint pipeline that
// decides whether a vehicle can run a candidate route sequence, and at what
// cost (§4.2).
package constraint

import (
	"time"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
)

// Context carries everything a constraint needs beyond the vehicle and
// sequence under evaluation: the as-of instant, the vehicle's live charge
// state, and its charger binding.
type Context struct {
	T         time.Time
	State     domain.VehicleChargeState
	Charger   domain.Charger
	SiteCfg   *maf.SiteConfig
	AllRoutes []domain.Route // window-wide route set, for charger_preference ranking
}

// Verdict is one constraint's evaluation result.
type Verdict struct {
	Name   string
	Cost   float64
	Hard   bool
	Failed bool // true when a hard constraint was violated
}

// Constraint evaluates one vehicle/sequence pair and returns a cost and
// whether it is a hard (feasibility-gating) or soft (cost-only) rule.
//
// By convention a negative cost on a hard constraint means "violated";
// a soft constraint's cost (positive or negative) is only added to the
// sequence's total and never rejects it.
type Constraint interface {
	Name() string
	Hard() bool
	Evaluate(v domain.Vehicle, seq domain.RouteSequence, ctx Context) (cost float64, hard bool)
}

// Result is the manager's pipeline output for one (vehicle, sequence) pair.
type Result struct {
	TotalCost  float64
	Feasible   bool
	Breakdown  []Verdict
}

// Manager runs the enabled constraints in a fixed order, stopping at the
// first hard violation (§4.2: "feasible = false as soon as one hard
// constraint returns a negative cost; remaining constraints need not be
// evaluated").
type Manager struct {
	constraints []Constraint
	log         *zap.Logger
}

// NewManager builds a Manager from an ordered constraint list. Order matters
// only for the short-circuit: route_overlap should run first since it is
// cheapest and most commonly violated.
func NewManager(log *zap.Logger, constraints ...Constraint) *Manager {
	return &Manager{constraints: constraints, log: log}
}

// DefaultManager wires the six recognized constraints (§4.2) in the order
// the enumerator should evaluate them: hard/cheap first, soft last.
func DefaultManager(log *zap.Logger) *Manager {
	return NewManager(log,
		NewRouteOverlap(),
		NewShiftHoursStrict(),
		NewTurnaroundStrict(),
		NewEnergyFeasibility(),
		NewTurnaroundPreferred(),
		NewChargerPreferenceWithLogger(log),
	)
}

// Evaluate runs every enabled constraint against (v, seq) under ctx.
func (m *Manager) Evaluate(v domain.Vehicle, seq domain.RouteSequence, ctx Context) Result {
	res := Result{Feasible: true}
	for _, c := range m.constraints {
		cost, hard := c.Evaluate(v, seq, ctx)
		verdict := Verdict{Name: c.Name(), Cost: cost, Hard: hard}
		if hard && cost < 0 {
			verdict.Failed = true
			res.Feasible = false
			res.Breakdown = append(res.Breakdown, verdict)
			if m.log != nil {
				m.log.Debug("constraint rejected sequence",
					zap.String("constraint", c.Name()),
					zap.String("vehicle_id", v.ID),
					zap.Strings("route_ids", seq.RouteIDs()),
				)
			}
			return res
		}
		res.TotalCost += cost
		res.Breakdown = append(res.Breakdown, verdict)
	}
	return res
}
