package postgres

import (
	"testing"
	"time"

	"github.com/depotfleet/sigec-fleet/internal/domain"
)

func TestResolveSharedChargers_DistinctChargersUntouched(t *testing.T) {
	now := time.Now()
	out := map[string]domain.Charger{
		"v1": {ID: "c1", VehicleID: "v1", StartedAt: now},
		"v2": {ID: "c2", VehicleID: "v2", StartedAt: now},
	}
	resolveSharedChargers(out)

	if len(out) != 2 {
		t.Fatalf("expected both entries to survive, got %v", out)
	}
}

func TestResolveSharedChargers_MostRecentStartWins(t *testing.T) {
	now := time.Now()
	out := map[string]domain.Charger{
		"v1": {ID: "shared", VehicleID: "v1", StartedAt: now.Add(-time.Hour)},
		"v2": {ID: "shared", VehicleID: "v2", StartedAt: now},
	}
	resolveSharedChargers(out)

	if len(out) != 1 {
		t.Fatalf("expected exactly one vehicle to keep the shared charger, got %v", out)
	}
	if _, ok := out["v2"]; !ok {
		t.Errorf("expected v2 (most recent start) to keep the charger, got %v", out)
	}
	if _, ok := out["v1"]; ok {
		t.Errorf("expected v1 to lose the tie and resolve to disconnected, got %v", out)
	}
}

func TestResolveSharedChargers_ExactTieBreaksByVehicleID(t *testing.T) {
	now := time.Now()
	out := map[string]domain.Charger{
		"v2": {ID: "shared", VehicleID: "v2", StartedAt: now},
		"v1": {ID: "shared", VehicleID: "v1", StartedAt: now},
	}
	resolveSharedChargers(out)

	if len(out) != 1 {
		t.Fatalf("expected exactly one survivor, got %v", out)
	}
	if _, ok := out["v1"]; !ok {
		t.Errorf("expected the lexically smaller vehicle id to win an exact tie, got %v", out)
	}
}

func TestResolveSharedChargers_ThreeWayShare(t *testing.T) {
	now := time.Now()
	out := map[string]domain.Charger{
		"v1": {ID: "shared", VehicleID: "v1", StartedAt: now.Add(-2 * time.Hour)},
		"v2": {ID: "shared", VehicleID: "v2", StartedAt: now},
		"v3": {ID: "shared", VehicleID: "v3", StartedAt: now.Add(-time.Hour)},
	}
	resolveSharedChargers(out)

	if len(out) != 1 {
		t.Fatalf("expected exactly one survivor among three sharers, got %v", out)
	}
	if _, ok := out["v2"]; !ok {
		t.Errorf("expected v2 (latest start) to win, got %v", out)
	}
}
