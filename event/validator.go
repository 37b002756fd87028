package event

import (
	"fmt"
	"strings"

	syncErrors "github.com/dulcera/syncbridge/errors"
)

// requiredFields lists the payload fields each event type must carry
var requiredFields = map[Type][]string{
	TypeCustomerCreated:  {"id", "name", "email"},
	TypeCustomerUpdated:  {"id", "name", "email"},
	TypeCustomerDeleted:  {"id"},
	TypeOrderCreated:     {"id", "customerId", "items"},
	TypeOrderUpdated:     {"id", "customerId", "items"},
	TypeOrderCancelled:   {"id", "customerId"},
	TypeInventoryUpdated: {"productId", "quantity"},
	TypePriceChanged:     {"productId", "price"},
	TypeTerritoryUpdated: {"id", "name"},
	TypeProductCreated:   {"id", "name", "price"},
	TypeProductUpdated:   {"id", "name", "price"},
	TypeProductDeleted:   {"id"},
}

// sensitiveFields are stripped by Sanitize before any persist or log
var sensitiveFields = map[string]struct{}{
	"password": {},
	"token":    {},
	"secret":   {},
	"apiKey":   {},
}

// Validator checks sync events before they enter the queue
type Validator struct{}

// NewValidator returns a Validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate rejects events with missing fields, values outside the closed
// type/source/priority sets, malformed targets, an invalid timestamp or a
// negative retry count. A valid event with an empty EntityKey gets one
// backfilled so downstream conflict detection never has to derive it.
func (v *Validator) Validate(ev *SyncEvent) error {
	if ev == nil {
		return syncErrors.NewValidationError(syncErrors.OpValidate, fmt.Errorf("event is nil"))
	}
	if ev.ID == "" {
		return v.reject(ev, "missing id")
	}
	if !ValidType(ev.Type) {
		return v.reject(ev, fmt.Sprintf("unknown event type %q", ev.Type))
	}
	if !ValidSource(ev.Source) {
		return v.reject(ev, fmt.Sprintf("unknown source %q", ev.Source))
	}
	if len(ev.Targets) == 0 {
		return v.reject(ev, "empty target list")
	}
	for _, t := range ev.Targets {
		if t != TargetAll && !ValidSource(t) {
			return v.reject(ev, fmt.Sprintf("unknown target %q", t))
		}
	}
	if !ValidPriority(ev.Priority) {
		return v.reject(ev, fmt.Sprintf("unknown priority %q", ev.Priority))
	}
	if ev.Timestamp.IsZero() {
		return v.reject(ev, "missing timestamp")
	}
	if ev.RetryCount < 0 {
		return v.reject(ev, "negative retry count")
	}
	if ev.Data == nil {
		return v.reject(ev, "missing data payload")
	}

	for _, field := range requiredFields[ev.Type] {
		val, ok := ev.Data[field]
		if !ok || val == nil {
			return v.reject(ev, fmt.Sprintf("payload missing required field %q", field))
		}
		if s, isStr := val.(string); isStr && s == "" {
			return v.reject(ev, fmt.Sprintf("payload field %q is empty", field))
		}
	}

	// order items must be an array
	if ev.Type == TypeOrderCreated || ev.Type == TypeOrderUpdated {
		switch ev.Data["items"].(type) {
		case []interface{}, []map[string]interface{}:
		default:
			return v.reject(ev, "payload field \"items\" must be an array")
		}
	}

	if ev.EntityKey == "" {
		ev.EntityKey = DeriveEntityKey(ev.Type, ev.Data)
	}

	return nil
}

func (v *Validator) reject(ev *SyncEvent, reason string) error {
	err := syncErrors.NewValidationError(syncErrors.OpValidate, fmt.Errorf("%s", reason))
	if ev != nil && ev.ID != "" {
		err.WithMetadata("event_id", ev.ID)
	}
	return err
}

// Sanitize returns a deep copy of data with credential-like fields removed.
// Nested maps and slices are walked too. The input is never mutated.
func Sanitize(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if isSensitive(k) {
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return Sanitize(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

func isSensitive(key string) bool {
	if _, ok := sensitiveFields[key]; ok {
		return true
	}
	// case variations like Password or API_KEY still match
	lower := strings.ToLower(strings.ReplaceAll(key, "_", ""))
	for field := range sensitiveFields {
		if lower == strings.ToLower(field) {
			return true
		}
	}
	return false
}
