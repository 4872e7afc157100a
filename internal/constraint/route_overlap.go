package constraint

import "github.com/depotfleet/sigec-fleet/internal/domain"

// RouteOverlapPenalty is the cost reported when two routes in a sequence
// overlap in time. The manager only inspects the sign, not the magnitude.
const RouteOverlapPenalty = -1.0

// RouteOverlap rejects any sequence where a later route starts before the
// previous one ends (§4.2). It is always enabled and never configurable —
// every other ordering constraint assumes routes never overlap.
type RouteOverlap struct{}

// NewRouteOverlap builds the always-on route_overlap constraint.
func NewRouteOverlap() *RouteOverlap { return &RouteOverlap{} }

func (c *RouteOverlap) Name() string { return "route_overlap" }
func (c *RouteOverlap) Hard() bool   { return true }

func (c *RouteOverlap) Evaluate(_ domain.Vehicle, seq domain.RouteSequence, _ Context) (float64, bool) {
	routes := seq.Routes
	for i := 1; i < len(routes); i++ {
		if routes[i-1].PlanEnd.After(routes[i].PlanStart) {
			return RouteOverlapPenalty, true
		}
	}
	return 0, true
}
