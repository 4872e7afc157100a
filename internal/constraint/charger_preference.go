package constraint

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
)

// costGroupPattern matches one "[id1,id2]:cost" or "[DISC]:cost" token
// anywhere in the grouped cost-table syntax, independent of how many
// comma-separated ids sit inside the brackets.
var costGroupPattern = regexp.MustCompile(`\[([^\]]*)\]\s*:\s*(-?\d+(?:\.\d+)?)`)

// ChargerPositionTarget selects which route(s) in a sequence are checked
// against a vehicle's charger-preference rank (§4.2).
type ChargerPositionTarget string

const (
	TargetFirst    ChargerPositionTarget = "first"
	TargetAll      ChargerPositionTarget = "all"
	TargetLongest  ChargerPositionTarget = "longest"
)

// ChargerPreference rewards a vehicle, with a soft cost from its bound
// charger's cost-table entry, when it serves a route whose global
// departure rank matches its charger's preference rank (§4.2).
type ChargerPreference struct {
	log *zap.Logger
}

func NewChargerPreference() *ChargerPreference { return &ChargerPreference{} }

// NewChargerPreferenceWithLogger attaches a logger for invalid cost-table
// entries.
func NewChargerPreferenceWithLogger(log *zap.Logger) *ChargerPreference {
	return &ChargerPreference{log: log}
}

func (c *ChargerPreference) Name() string { return "charger_preference" }
func (c *ChargerPreference) Hard() bool   { return false }

func (c *ChargerPreference) Evaluate(v domain.Vehicle, seq domain.RouteSequence, ctx Context) (float64, bool) {
	if ctx.SiteCfg == nil {
		return 0, false
	}
	raw, ok := ctx.SiteCfg.String(maf.ConstraintParam("charger_preference", "cost_table"))
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false
	}
	table := c.parseCostTable(raw)
	if len(table) == 0 {
		return 0, false
	}

	targetStr, _ := ctx.SiteCfg.String(maf.ConstraintParam("charger_preference", "position_target"))
	if targetStr == "" {
		targetStr = string(TargetFirst)
	}

	boundID := ctx.Charger.ID
	if boundID == "" {
		boundID = domain.DisconnectedChargerID
	}
	cost, ok := table[boundID]
	if !ok {
		return 0, false
	}

	vehicleRank := chargerRank(table, boundID)
	routeRanks := departureRanks(ctx.AllRoutes)

	targets := c.selectTargets(seq, ChargerPositionTarget(targetStr))
	penalty := 0.0
	for _, r := range targets {
		if routeRanks[r.ID] == vehicleRank {
			penalty += cost
		}
	}
	return penalty, false
}

func (c *ChargerPreference) selectTargets(seq domain.RouteSequence, target ChargerPositionTarget) []domain.Route {
	if len(seq.Routes) == 0 {
		return nil
	}
	switch target {
	case TargetAll:
		return seq.Routes
	case TargetLongest:
		longest := seq.Routes[0]
		for _, r := range seq.Routes[1:] {
			if r.Duration() > longest.Duration() {
				longest = r
			}
		}
		return []domain.Route{longest}
	default: // first
		return []domain.Route{seq.Routes[0]}
	}
}

// chargerRank returns the 1-based preference rank of chargerID within the
// cost table, ranking cheapest (most negative/lowest cost) first.
func chargerRank(table map[string]float64, chargerID string) int {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if table[ids[i]] != table[ids[j]] {
			return table[ids[i]] < table[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for i, id := range ids {
		if id == chargerID {
			return i + 1
		}
	}
	return 0
}

// departureRanks assigns a 1-based global departure rank to every route,
// ordered by plan_start (§4.2).
func departureRanks(routes []domain.Route) map[string]int {
	sorted := make([]domain.Route, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PlanStart.Before(sorted[j].PlanStart)
	})
	ranks := make(map[string]int, len(sorted))
	for i, r := range sorted {
		ranks[r.ID] = i + 1
	}
	return ranks
}

// parseCostTable accepts either a flat {"id": cost} JSON object or the
// grouped "[id1,id2]:cost,[DISC]:cost" syntax (§4.2). Invalid entries are
// logged and dropped; a wholly invalid table parses to empty.
func (c *ChargerPreference) parseCostTable(raw string) map[string]float64 {
	trimmed := strings.TrimSpace(raw)
	table := make(map[string]float64)

	if strings.HasPrefix(trimmed, "{") {
		var flat map[string]float64
		if err := json.Unmarshal([]byte(trimmed), &flat); err != nil {
			c.warn("invalid flat charger cost table", err)
			return table
		}
		return flat
	}

	matches := costGroupPattern.FindAllStringSubmatch(trimmed, -1)
	if matches == nil {
		c.warn("invalid grouped charger cost table "+trimmed, nil)
		return table
	}
	for _, m := range matches {
		cost, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			c.warn("invalid charger cost value in group "+m[0], err)
			continue
		}
		for _, id := range strings.Split(m[1], ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if strings.EqualFold(id, "DISC") {
				id = "DISC"
			}
			table[id] = cost
		}
	}
	return table
}

func (c *ChargerPreference) warn(msg string, err error) {
	if c.log == nil {
		return
	}
	if err != nil {
		c.log.Warn(msg, zap.Error(err))
	} else {
		c.log.Warn(msg)
	}
}
