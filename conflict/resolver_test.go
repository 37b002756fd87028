package conflict

import (
	"fmt"
	"testing"
	"time"

	syncErrors "github.com/dulcera/syncbridge/errors"
	"github.com/dulcera/syncbridge/event"
)

func orderEvent(id string, data map[string]interface{}) *event.SyncEvent {
	ev := event.New(event.TypeOrderUpdated, event.SourceB2BPortal, []event.Source{event.TargetAll}, data, event.PriorityHigh)
	ev.ID = id
	return ev
}

func TestCheckDetectsTimingConflict(t *testing.T) {
	r := NewResolver(nil)

	first := orderEvent("E1", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
	r.Commit(first)

	second := orderEvent("E2", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
	second.Timestamp = first.Timestamp.Add(2 * time.Second)

	conflicts := r.Check(second)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Kind != KindTiming {
		t.Fatalf("expected timing conflict, got %s", conflicts[0].Kind)
	}
}

func TestCheckDetectsTimingConflictOutOfOrder(t *testing.T) {
	r := NewResolver(nil)

	first := orderEvent("E1", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
	r.Commit(first)

	// Delivered late: stamped before the committed baseline but still
	// inside the window.
	second := orderEvent("E2", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
	second.Timestamp = first.Timestamp.Add(-2 * time.Second)

	conflicts := r.Check(second)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Kind != KindTiming {
		t.Fatalf("expected timing conflict, got %s", conflicts[0].Kind)
	}
}

func TestCheckOutsideWindowIsClean(t *testing.T) {
	r := NewResolver(nil)

	first := orderEvent("E1", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
	r.Commit(first)

	second := orderEvent("E2", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
	second.Timestamp = first.Timestamp.Add(10 * time.Second)

	if conflicts := r.Check(second); len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", conflicts)
	}
}

func TestCheckDetectsDataConflict(t *testing.T) {
	r := NewResolver(nil)

	first := orderEvent("E1", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "confirmed", "total": 100.0})
	r.Commit(first)

	second := orderEvent("E2", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "confirmed", "total": 150.0})
	second.Timestamp = first.Timestamp.Add(10 * time.Second)

	conflicts := r.Check(second)
	if len(conflicts) != 1 || conflicts[0].Kind != KindData {
		t.Fatalf("expected a data conflict, got %v", conflicts)
	}
}

func TestCheckDetectsVersionConflict(t *testing.T) {
	r := NewResolver(nil)

	ev := orderEvent("E1", map[string]interface{}{
		"id": "O1", "customerId": "C1",
		"version": 3, "expectedVersion": 2,
	})

	conflicts := r.Check(ev)
	if len(conflicts) != 1 || conflicts[0].Kind != KindVersion {
		t.Fatalf("expected a version conflict, got %v", conflicts)
	}
}

func TestResolveVersionConflict(t *testing.T) {
	r := NewResolver(nil)

	ev := orderEvent("E1", map[string]interface{}{
		"id": "O1", "customerId": "C1",
		"version": 3, "expectedVersion": 2,
	})

	resolved, err := r.Resolve(ev, r.Check(ev))
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Data["version"] != 4 {
		t.Errorf("version = %v, want 4", resolved.Data["version"])
	}
	if resolved.Data["resolvedConflict"] != true {
		t.Error("resolvedConflict marker missing")
	}
}

func TestOrderMergePreservesItemsAndTotal(t *testing.T) {
	existing := map[string]interface{}{
		"id":     "O1",
		"status": "confirmed",
		"items":  []interface{}{map[string]interface{}{"productId": "P1", "quantity": 5}},
		"total":  275.0,
		"notes":  "",
	}
	incoming := map[string]interface{}{
		"id":     "O1",
		"status": "shipped",
		"items":  []interface{}{},
		"total":  0.0,
		"notes":  "left at reception",
	}

	merged := mergeOrder(existing, incoming)

	if merged["status"] != "shipped" {
		t.Errorf("status = %v", merged["status"])
	}
	if merged["notes"] != "left at reception" {
		t.Errorf("notes = %v", merged["notes"])
	}
	if merged["total"] != 275.0 {
		t.Errorf("total mutated: %v", merged["total"])
	}
	items := merged["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items mutated: %v", items)
	}

	// Idempotence: resolving again with the same inputs yields the same
	// items and total.
	again := mergeOrder(merged, incoming)
	if fmt.Sprintf("%v", again["items"]) != fmt.Sprintf("%v", merged["items"]) {
		t.Error("items changed on second resolution")
	}
	if again["total"] != merged["total"] {
		t.Error("total changed on second resolution")
	}
}

func TestCustomerMergePreservesEmailAndMergesAddresses(t *testing.T) {
	existing := map[string]interface{}{
		"id":    "C1",
		"email": "kept@dulcera.example",
		"phone": "111",
		"addresses": []interface{}{
			map[string]interface{}{"id": "A1", "city": "CDMX", "zip": "06700"},
		},
	}
	incoming := map[string]interface{}{
		"id":    "C1",
		"email": "clobber@dulcera.example",
		"phone": "222",
		"addresses": []interface{}{
			map[string]interface{}{"id": "A1", "city": "Guadalajara"},
			map[string]interface{}{"id": "A2", "city": "Monterrey"},
		},
	}

	merged := mergeCustomer(existing, incoming)

	if merged["email"] != "kept@dulcera.example" {
		t.Errorf("existing email not preserved: %v", merged["email"])
	}
	if merged["phone"] != "222" {
		t.Errorf("incoming phone not applied: %v", merged["phone"])
	}

	addrs := merged["addresses"].([]interface{})
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}
	a1 := addrs[0].(map[string]interface{})
	if a1["city"] != "Guadalajara" {
		t.Errorf("matched address not overlaid: %v", a1)
	}
	if a1["zip"] != "06700" {
		t.Errorf("existing address field lost: %v", a1)
	}
	a2 := addrs[1].(map[string]interface{})
	if a2["id"] != "A2" {
		t.Errorf("new address not appended: %v", a2)
	}
}

func TestInventoryMergePrefersNewerQuantity(t *testing.T) {
	older := time.Now().Add(-time.Hour).Format(time.RFC3339)
	newer := time.Now().Format(time.RFC3339)

	existing := map[string]interface{}{"productId": "P1", "quantity": 80, "updatedAt": newer, "warehouse": "A"}
	incoming := map[string]interface{}{"productId": "P1", "quantity": 50, "updatedAt": older, "warehouse": "B"}

	merged := mergeInventory(existing, incoming)

	if merged["quantity"] != 80 {
		t.Errorf("stale quantity won: %v", merged["quantity"])
	}
	if merged["warehouse"] != "B" {
		t.Errorf("non-quantity fields should come from incoming: %v", merged["warehouse"])
	}
}

func TestResolveTimingLastWriteWins(t *testing.T) {
	r := NewResolver(nil)

	first := orderEvent("E1", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending", "channel": "erp"})
	r.Commit(first)

	second := orderEvent("E2", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "confirmed"})
	second.Timestamp = first.Timestamp.Add(time.Second)

	before := time.Now()
	resolved, err := r.Resolve(second, r.Check(second))
	if err != nil {
		t.Fatal(err)
	}

	// incoming is newer, so its fields win; fields only the loser had are kept
	if resolved.Data["status"] != "confirmed" {
		t.Errorf("status = %v", resolved.Data["status"])
	}
	if resolved.Data["channel"] != "erp" {
		t.Errorf("merged field lost: %v", resolved.Data["channel"])
	}
	if resolved.Timestamp.Before(before) {
		t.Error("timestamp was not refreshed")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	r := NewResolver(nil)

	base := orderEvent("E0", map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
	r.Commit(base)

	for i := 0; i < historyLimit+20; i++ {
		ev := orderEvent(fmt.Sprintf("E%d", i+1), map[string]interface{}{"id": "O1", "customerId": "C1", "status": "pending"})
		ev.Timestamp = r.recent[ev.EntityKey].timestamp.Add(time.Second)
		if _, err := r.Resolve(ev, r.Check(ev)); err != nil {
			t.Fatal(err)
		}
		r.Commit(ev)
	}

	if got := len(r.History(base.EntityKey)); got != historyLimit {
		t.Fatalf("history length = %d, want %d", got, historyLimit)
	}
}

func TestResolveUnresolvableAborts(t *testing.T) {
	r := NewResolver(nil)

	ev := orderEvent("E1", map[string]interface{}{"id": "O1", "customerId": "C1"})
	// A conflict kind the resolver has no strategy for yields no data.
	bogus := []Conflict{newConflict(ev.ID, Kind("schema_conflict"), "unknown strategy", nil)}

	resolved, err := r.Resolve(ev, bogus)
	if resolved != nil {
		t.Fatal("expected nil event on unresolvable conflict")
	}
	if !syncErrors.IsUnresolvable(err) {
		t.Fatalf("expected unresolvable error, got %v", err)
	}

	records := r.History(ev.EntityKey)
	if len(records) != 1 || records[0].Decision != "unresolvable" {
		t.Fatalf("unresolvable conflict not recorded: %v", records)
	}
}
