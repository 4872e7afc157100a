package constraint

import (
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
)

// Default shift-hours parameters (§4.2).
const (
	DefaultShiftMaxHours      = 16
	DefaultShiftPreBufferMin  = 0
	DefaultShiftPostBufferMin = 0
)

// ShiftHoursPenalty is reported when the sequence's span exceeds the shift
// ceiling.
const ShiftHoursPenalty = -1.0

// ShiftHoursStrict bounds the total elapsed time a vehicle may be on task,
// either span-based (last_end - first_start) or cumulative (sum of route
// durations), selected by MAF (§4.2).
type ShiftHoursStrict struct{}

func NewShiftHoursStrict() *ShiftHoursStrict { return &ShiftHoursStrict{} }

func (c *ShiftHoursStrict) Name() string { return "shift_hours_strict" }
func (c *ShiftHoursStrict) Hard() bool   { return true }

func (c *ShiftHoursStrict) Evaluate(_ domain.Vehicle, seq domain.RouteSequence, ctx Context) (float64, bool) {
	maxHours := DefaultShiftMaxHours
	preBufferMin := DefaultShiftPreBufferMin
	postBufferMin := DefaultShiftPostBufferMin
	cumulative := false
	if ctx.SiteCfg != nil {
		maxHours = int(ctx.SiteCfg.NumberOr(maf.ConstraintParam("shift_hours_strict", "max_hours"), DefaultShiftMaxHours))
		preBufferMin = int(ctx.SiteCfg.NumberOr(maf.ConstraintParam("shift_hours_strict", "pre_buffer_minutes"), DefaultShiftPreBufferMin))
		postBufferMin = int(ctx.SiteCfg.NumberOr(maf.ConstraintParam("shift_hours_strict", "post_buffer_minutes"), DefaultShiftPostBufferMin))
		cumulative = ctx.SiteCfg.BoolOr(maf.ConstraintParam("shift_hours_strict", "cumulative_mode"), false)
	}

	buffer := time.Duration(preBufferMin+postBufferMin) * time.Minute
	limit := time.Duration(maxHours) * time.Hour

	var span time.Duration
	if cumulative {
		for _, r := range seq.Routes {
			span += r.Duration()
		}
	} else {
		span = seq.LastEnd().Sub(seq.FirstStart())
	}

	if span+buffer > limit {
		return ShiftHoursPenalty, true
	}
	return 0, true
}
