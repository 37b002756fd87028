package conflict

import (
	"fmt"
	"strings"
	"sync"
	"time"

	syncErrors "github.com/dulcera/syncbridge/errors"
	"github.com/dulcera/syncbridge/event"
	"github.com/dulcera/syncbridge/logging"
)

const (
	// timingWindow is how close two updates to the same entity may land
	// before they are treated as contending
	timingWindow = 5 * time.Second

	// historyLimit bounds the per-entity audit history
	historyLimit = 100
)

// Resolver detects conflicts against recently processed events and resolves
// them synchronously before an event is broadcast. State is per-process and
// is not a source of cross-instance truth.
type Resolver struct {
	mu      sync.Mutex
	recent  map[string]observed
	history map[string][]Record
	logger  *logging.Logger
	now     func() time.Time
}

// NewResolver creates a Resolver
func NewResolver(logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		recent:  make(map[string]observed),
		history: make(map[string][]Record),
		logger:  logger.WithComponent("conflict-resolver"),
		now:     time.Now,
	}
}

// Check detects conflicts between ev and the resolver's last observed state
// for the same entity key. It does not mutate any state.
func (r *Resolver) Check(ev *event.SyncEvent) []Conflict {
	r.mu.Lock()
	defer r.mu.Unlock()

	var conflicts []Conflict

	prev, seen := r.recent[ev.EntityKey]
	if seen {
		// Timing conflict: another event for this entity landed within the
		// window, in either direction (clocks across systems may disagree)
		gap := ev.Timestamp.Sub(prev.timestamp)
		if gap < 0 {
			gap = -gap
		}
		if gap < timingWindow {
			conflicts = append(conflicts, newConflict(ev.ID, KindTiming,
				fmt.Sprintf("event for %s arrived %v from event %s", ev.EntityKey, gap, prev.eventID),
				prev.data))
		}

		// Data conflict: critical fields diverge from the known state
		for _, field := range criticalFields {
			prevVal, prevOK := prev.data[field]
			newVal, newOK := ev.Data[field]
			if prevOK && newOK && fmt.Sprintf("%v", prevVal) != fmt.Sprintf("%v", newVal) {
				conflicts = append(conflicts, newConflict(ev.ID, KindData,
					fmt.Sprintf("field %q changed from %v to %v for %s", field, prevVal, newVal, ev.EntityKey),
					prev.data))
				break
			}
		}
	}

	// Version conflict: the payload carries both version markers and they differ
	if version, ok := ev.Data["version"]; ok {
		if expected, ok := ev.Data["expectedVersion"]; ok {
			if fmt.Sprintf("%v", version) != fmt.Sprintf("%v", expected) {
				conflicts = append(conflicts, newConflict(ev.ID, KindVersion,
					fmt.Sprintf("version %v does not match expected %v", version, expected),
					map[string]interface{}{"version": version, "expectedVersion": expected}))
			}
		}
	}

	return conflicts
}

// Resolve applies each conflict's resolution strategy in order. The returned
// event carries the merged data. If any strategy yields no data, resolution
// aborts and an unresolvable error is returned; the caller must treat that
// as a terminal failure for the event.
func (r *Resolver) Resolve(ev *event.SyncEvent, conflicts []Conflict) (*event.SyncEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range conflicts {
		var (
			resolved map[string]interface{}
			decision string
		)

		switch c.Kind {
		case KindTiming:
			resolved, decision = r.resolveTiming(ev, c)
		case KindData:
			resolved, decision = r.resolveData(ev, c)
		case KindVersion:
			resolved, decision = r.resolveVersion(ev)
		}

		if resolved == nil {
			r.appendHistory(ev.EntityKey, Record{
				Conflict:   c,
				Decision:   "unresolvable",
				EntityKey:  ev.EntityKey,
				ResolvedAt: r.now(),
			})
			r.logger.Error("conflict could not be resolved",
				"event_id", ev.ID,
				"entity_key", ev.EntityKey,
				"conflict_type", string(c.Kind))
			return nil, syncErrors.NewUnresolvableError(syncErrors.OpConflictResolve,
				fmt.Errorf("%s on %s: %s", c.Kind, ev.EntityKey, c.Description))
		}

		ev.Data = resolved
		r.appendHistory(ev.EntityKey, Record{
			Conflict:   c,
			Decision:   decision,
			EntityKey:  ev.EntityKey,
			ResolvedAt: r.now(),
		})
		r.logger.Debug("conflict resolved",
			"event_id", ev.ID,
			"entity_key", ev.EntityKey,
			"conflict_type", string(c.Kind),
			"decision", decision)
	}

	return ev, nil
}

// Commit records ev as the last observed state for its entity, making it
// the baseline future Check calls compare against.
func (r *Resolver) Commit(ev *event.SyncEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recent[ev.EntityKey] = observed{
		data:      ev.Data,
		timestamp: ev.Timestamp,
		eventID:   ev.ID,
	}
}

// History returns a copy of the audit records for an entity key
func (r *Resolver) History(entityKey string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := r.history[entityKey]
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// HistorySizes returns the number of audit records per entity key
func (r *Resolver) HistorySizes() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.history))
	for key, records := range r.history {
		out[key] = len(records)
	}
	return out
}

func (r *Resolver) appendHistory(entityKey string, rec Record) {
	records := append(r.history[entityKey], rec)
	if len(records) > historyLimit {
		records = records[len(records)-historyLimit:]
	}
	r.history[entityKey] = records
}

// resolveTiming applies last-write-wins between the colliding events and
// refreshes the winning event's timestamp to now.
func (r *Resolver) resolveTiming(ev *event.SyncEvent, c Conflict) (map[string]interface{}, string) {
	prev := r.recent[ev.EntityKey]

	merged := shallowMerge(prev.data, ev.Data)
	decision := "last_write_wins:incoming"
	if prev.timestamp.After(ev.Timestamp) {
		merged = shallowMerge(ev.Data, prev.data)
		decision = "last_write_wins:existing"
	}

	ev.Timestamp = r.now()
	return merged, decision
}

// resolveData dispatches to the entity-type-specific merge
func (r *Resolver) resolveData(ev *event.SyncEvent, c Conflict) (map[string]interface{}, string) {
	existing := c.ConflictingData
	incoming := ev.Data

	switch {
	case strings.HasPrefix(string(ev.Type), "customer."):
		return mergeCustomer(existing, incoming), "merge:customer"
	case strings.HasPrefix(string(ev.Type), "order."):
		return mergeOrder(existing, incoming), "merge:order"
	case ev.Type == event.TypeInventoryUpdated:
		return mergeInventory(existing, incoming), "merge:inventory"
	default:
		return shallowMerge(existing, incoming), "merge:default"
	}
}

// resolveVersion increments the version counter and marks the payload
func (r *Resolver) resolveVersion(ev *event.SyncEvent) (map[string]interface{}, string) {
	merged := shallowMerge(nil, ev.Data)
	merged["version"] = toInt(ev.Data["version"]) + 1
	merged["resolvedConflict"] = true
	delete(merged, "expectedVersion")
	return merged, "version_increment"
}
