package conflict

import (
	"fmt"
	"time"
)

// shallowMerge overlays incoming on top of base without mutating either
func shallowMerge(base, incoming map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(incoming))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// mergeCustomer shallow-merges incoming over existing, preserving an
// already-set email and merging address lists by id.
func mergeCustomer(existing, incoming map[string]interface{}) map[string]interface{} {
	merged := shallowMerge(existing, incoming)

	if email, ok := existing["email"]; ok && email != nil && email != "" {
		merged["email"] = email
	}

	existingAddrs := toMapSlice(existing["addresses"])
	incomingAddrs := toMapSlice(incoming["addresses"])
	if existingAddrs != nil || incomingAddrs != nil {
		merged["addresses"] = mergeByID(existingAddrs, incomingAddrs)
	}

	return merged
}

// mergeOrder is conservative: orders are immutable once created except for
// status and notes, so items and total always come from the existing record.
func mergeOrder(existing, incoming map[string]interface{}) map[string]interface{} {
	merged := shallowMerge(nil, existing)

	if status, ok := incoming["status"]; ok {
		merged["status"] = status
	}
	if notes, ok := incoming["notes"]; ok {
		merged["notes"] = notes
	}

	if items, ok := existing["items"]; ok {
		merged["items"] = items
	}
	if total, ok := existing["total"]; ok {
		merged["total"] = total
	}

	return merged
}

// mergeInventory keeps the quantity from whichever side carries the more
// recent internal timestamp and takes everything else from incoming.
func mergeInventory(existing, incoming map[string]interface{}) map[string]interface{} {
	merged := shallowMerge(existing, incoming)

	existingAt := parseTime(existing["updatedAt"])
	incomingAt := parseTime(incoming["updatedAt"])
	if existingAt.After(incomingAt) {
		if qty, ok := existing["quantity"]; ok {
			merged["quantity"] = qty
		}
		merged["updatedAt"] = existing["updatedAt"]
	}

	return merged
}

// mergeByID merges two object lists keyed by "id": items matching on id are
// overlaid with incoming fields, unmatched incoming items are appended.
func mergeByID(existing, incoming []map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(existing)+len(incoming))
	matched := make(map[int]bool, len(incoming))

	for _, item := range existing {
		merged := item
		for i, inc := range incoming {
			if idOf(item) != "" && idOf(item) == idOf(inc) {
				merged = shallowMerge(item, inc)
				matched[i] = true
				break
			}
		}
		out = append(out, merged)
	}

	for i, inc := range incoming {
		if !matched[i] {
			out = append(out, inc)
		}
	}

	return out
}

func idOf(m map[string]interface{}) string {
	if v, ok := m["id"]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func toMapSlice(v interface{}) []map[string]interface{} {
	switch items := v.(type) {
	case []map[string]interface{}:
		return items
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
