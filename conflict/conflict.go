// Package conflict detects and resolves contention between near-simultaneous
// updates to the same logical entity arriving from different systems.
package conflict

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a detected conflict
type Kind string

const (
	KindData    Kind = "data_conflict"
	KindTiming  Kind = "timing_conflict"
	KindVersion Kind = "version_conflict"
)

// Conflict is a detected contention record
type Conflict struct {
	ID              string                 `json:"id"`
	EventID         string                 `json:"eventId"`
	Kind            Kind                   `json:"type"`
	Description     string                 `json:"description"`
	ConflictingData map[string]interface{} `json:"conflictingData"`
	Timestamp       time.Time              `json:"timestamp"`
}

func newConflict(eventID string, kind Kind, description string, data map[string]interface{}) Conflict {
	return Conflict{
		ID:              uuid.NewString(),
		EventID:         eventID,
		Kind:            kind,
		Description:     description,
		ConflictingData: data,
		Timestamp:       time.Now(),
	}
}

// Record pairs a conflict with the resolution decision taken for it.
// Records are kept in a bounded per-entity history for audit and debugging.
type Record struct {
	Conflict   Conflict  `json:"conflict"`
	Decision   string    `json:"decision"`
	EntityKey  string    `json:"entityKey"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// observed is the last processed state the resolver knows for an entity
type observed struct {
	data      map[string]interface{}
	timestamp time.Time
	eventID   string
}

// criticalFields are compared when detecting data conflicts
var criticalFields = []string{"id", "email", "status", "total"}
