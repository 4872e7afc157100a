package constraint

import (
	"testing"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/maf"
)

func TestParseCostTable_Flat(t *testing.T) {
	c := NewChargerPreference()
	table := c.parseCostTable(`{"87": 3, "DISC": 2}`)

	if got, want := len(table), 2; got != want {
		t.Fatalf("expected %d entries, got %d: %v", want, got, table)
	}
	if table["87"] != 3 {
		t.Errorf("expected 87 -> 3, got %v", table["87"])
	}
	if table["DISC"] != 2 {
		t.Errorf("expected DISC -> 2, got %v", table["DISC"])
	}
}

func TestParseCostTable_Grouped(t *testing.T) {
	c := NewChargerPreference()
	table := c.parseCostTable("[87,86]:3,[85,83]:0,[DISC]:2")

	want := map[string]float64{"87": 3, "86": 3, "85": 0, "83": 0, "DISC": 2}
	if len(table) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(table), table)
	}
	for id, cost := range want {
		if got, ok := table[id]; !ok || got != cost {
			t.Errorf("expected %s -> %v, got %v (present=%v)", id, cost, got, ok)
		}
	}
}

func TestParseCostTable_GroupedMultiIDGroupNotDropped(t *testing.T) {
	// Regression: a flat comma split over the whole string would break
	// "[id1,id2]:5" into "[id1" (no colon, dropped) and "id2]:5", silently
	// losing id1 from the table.
	c := NewChargerPreference()
	table := c.parseCostTable("[id1,id2]:5,[DISC]:3")

	if table["id1"] != 5 {
		t.Errorf("expected id1 -> 5, got %v (present=%v)", table["id1"], hasKey(table, "id1"))
	}
	if table["id2"] != 5 {
		t.Errorf("expected id2 -> 5, got %v", table["id2"])
	}
	if table["DISC"] != 3 {
		t.Errorf("expected DISC -> 3, got %v", table["DISC"])
	}
}

func TestParseCostTable_GroupedCaseInsensitiveDisc(t *testing.T) {
	c := NewChargerPreference()
	table := c.parseCostTable("[disc]:1")
	if table["DISC"] != 1 {
		t.Errorf("expected disc to normalize to DISC -> 1, got %v", table)
	}
}

func TestParseCostTable_Invalid(t *testing.T) {
	c := NewChargerPreference()
	if table := c.parseCostTable("not a table"); len(table) != 0 {
		t.Errorf("expected empty table for garbage input, got %v", table)
	}
	if table := c.parseCostTable(""); len(table) != 0 {
		t.Errorf("expected empty table for empty input, got %v", table)
	}
}

func hasKey(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

func TestChargerPreference_Evaluate_GroupedTable(t *testing.T) {
	site := maf.NewSiteConfig(maf.Site{
		SiteID: "site-1",
		Parameters: []maf.Parameter{
			// 86 and 87 share a group and so tie for the cheapest cost;
			// chargerRank breaks the tie by id, putting "86" at rank 1.
			{Name: maf.ConstraintParam("charger_preference", "cost_table"), Value: "[87,86]:-5,[85]:0,[DISC]:10"},
			{Name: maf.ConstraintParam("charger_preference", "position_target"), Value: "first"},
		},
	})

	r1 := route(t, "r1", "2026-01-01T06:00", "2026-01-01T07:00", 10)
	r2 := route(t, "r2", "2026-01-01T08:00", "2026-01-01T09:00", 10)

	ctx := Context{
		SiteCfg:   site,
		Charger:   domain.Charger{ID: "86"},
		AllRoutes: []domain.Route{r1, r2},
	}
	seq := domain.RouteSequence{VehicleID: "v1", Routes: []domain.Route{r1, r2}}

	c := NewChargerPreference()
	cost, hard := c.Evaluate(domain.Vehicle{ID: "v1"}, seq, ctx)

	if hard {
		t.Fatal("charger_preference must never be a hard constraint")
	}
	// 86 ranks 1st (cheapest, tie-broken by id); r1 is the first route by
	// departure time, so position_target "first" matches rank 1 and the
	// group's cost applies. If the grouped parse had dropped either id
	// sharing the bracket (the original bug), this would fall through to
	// the "unknown charger" (0, false) branch instead.
	if cost != -5 {
		t.Errorf("expected penalty -5 for a rank match on the grouped entry, got %v", cost)
	}
}
