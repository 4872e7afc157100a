// Package unified fuses the allocation and scheduling problems into the
// single weighted-sum solve described in §4.6.
package unified

import (
	"github.com/depotfleet/sigec-fleet/internal/allocation"
	"github.com/depotfleet/sigec-fleet/internal/schedule"
	"github.com/depotfleet/sigec-fleet/internal/solverengine"
)

// DefaultAlpha and DefaultBeta weight the allocation and charge-cost terms
// of the fused objective equally by default (§4.6).
const (
	DefaultAlpha = 1.0
	DefaultBeta  = 1.0
)

// BuildProblem wires an allocation problem and a schedule problem into the
// engine's unified wire shape.
func BuildProblem(allocProblem solverengine.AllocationProblem, schedProblem solverengine.ScheduleProblem, alpha, beta float64) solverengine.UnifiedProblem {
	return solverengine.UnifiedProblem{
		Allocation: allocProblem,
		Schedule:   schedProblem,
		Alpha:      alpha,
		Beta:       beta,
	}
}

// Outcome is the fused allocation + schedule result for one unified run.
// Controllers populate it by calling allocation.Resolve and
// schedule.Resolve directly against sol.Allocation/sol.Schedule, so both
// standalone and unified runs share the same resolution code (§4.7).
type Outcome struct {
	Allocation allocation.Outcome
	Schedule   schedule.Outcome
}
