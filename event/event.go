// Package event defines the sync event envelope that flows through the
// syncbridge pipeline, the closed sets of event types, sources, priorities
// and broadcast channels, and the validation rules events must pass before
// they are queued.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies a domain change event
type Type string

const (
	TypeCustomerCreated  Type = "customer.created"
	TypeCustomerUpdated  Type = "customer.updated"
	TypeCustomerDeleted  Type = "customer.deleted"
	TypeOrderCreated     Type = "order.created"
	TypeOrderUpdated     Type = "order.updated"
	TypeOrderCancelled   Type = "order.cancelled"
	TypeInventoryUpdated Type = "inventory.updated"
	TypePriceChanged     Type = "price.changed"
	TypeTerritoryUpdated Type = "territory.updated"
	TypeProductCreated   Type = "product.created"
	TypeProductUpdated   Type = "product.updated"
	TypeProductDeleted   Type = "product.deleted"
)

// Source identifies the system or client kind that originated an event
type Source string

const (
	SourceFlutterApp     Source = "flutter-app"
	SourceB2BPortal      Source = "b2b-portal"
	SourceB2CEcommerce   Source = "b2c-ecommerce"
	SourceAdminDashboard Source = "admin-dashboard"
	SourceSystem         Source = "system"

	// TargetAll is the sentinel target meaning every connected system
	TargetAll Source = "all"
)

// Priority determines queue insertion position
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Channel is a named broadcast topic clients subscribe to
type Channel string

const (
	ChannelCustomer  Channel = "customer-updates"
	ChannelOrder     Channel = "order-updates"
	ChannelInventory Channel = "inventory-updates"
	ChannelPricing   Channel = "pricing-updates"
	ChannelTerritory Channel = "territory-updates"
	ChannelProduct   Channel = "product-updates"
	ChannelGeneral   Channel = "general-updates"

	// ChannelAll is the wildcard subscription
	ChannelAll Channel = "all"
)

// MaxRetries caps re-queue attempts before an event is declared failed
const MaxRetries = 3

var eventTypes = map[Type]struct{}{
	TypeCustomerCreated:  {},
	TypeCustomerUpdated:  {},
	TypeCustomerDeleted:  {},
	TypeOrderCreated:     {},
	TypeOrderUpdated:     {},
	TypeOrderCancelled:   {},
	TypeInventoryUpdated: {},
	TypePriceChanged:     {},
	TypeTerritoryUpdated: {},
	TypeProductCreated:   {},
	TypeProductUpdated:   {},
	TypeProductDeleted:   {},
}

var sources = map[Source]struct{}{
	SourceFlutterApp:     {},
	SourceB2BPortal:      {},
	SourceB2CEcommerce:   {},
	SourceAdminDashboard: {},
	SourceSystem:         {},
}

var priorities = map[Priority]struct{}{
	PriorityHigh:   {},
	PriorityMedium: {},
	PriorityLow:    {},
}

// typeChannels maps each event type to the channel it is broadcast on
var typeChannels = map[Type]Channel{
	TypeCustomerCreated:  ChannelCustomer,
	TypeCustomerUpdated:  ChannelCustomer,
	TypeCustomerDeleted:  ChannelCustomer,
	TypeOrderCreated:     ChannelOrder,
	TypeOrderUpdated:     ChannelOrder,
	TypeOrderCancelled:   ChannelOrder,
	TypeInventoryUpdated: ChannelInventory,
	TypePriceChanged:     ChannelPricing,
	TypeTerritoryUpdated: ChannelTerritory,
	TypeProductCreated:   ChannelProduct,
	TypeProductUpdated:   ChannelProduct,
	TypeProductDeleted:   ChannelProduct,
}

// ValidType reports whether t is in the closed event-type set
func ValidType(t Type) bool {
	_, ok := eventTypes[t]
	return ok
}

// ValidSource reports whether s is in the closed source set
func ValidSource(s Source) bool {
	_, ok := sources[s]
	return ok
}

// ValidPriority reports whether p is one of high, medium, low
func ValidPriority(p Priority) bool {
	_, ok := priorities[p]
	return ok
}

var channels = map[Channel]struct{}{
	ChannelCustomer:  {},
	ChannelOrder:     {},
	ChannelInventory: {},
	ChannelPricing:   {},
	ChannelTerritory: {},
	ChannelProduct:   {},
	ChannelGeneral:   {},
	ChannelAll:       {},
}

// ValidChannel reports whether ch is a subscribable channel
func ValidChannel(ch Channel) bool {
	_, ok := channels[ch]
	return ok
}

// ChannelFor returns the broadcast channel for an event type.
// Unknown types fall back to general-updates.
func ChannelFor(t Type) Channel {
	if ch, ok := typeChannels[t]; ok {
		return ch
	}
	return ChannelGeneral
}

// SyncEvent is the unit of work flowing through the pipeline
type SyncEvent struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	Source     Source                 `json:"source"`
	Targets    []Source               `json:"target"`
	Data       map[string]interface{} `json:"data"`
	EntityKey  string                 `json:"entityKey"`
	Timestamp  time.Time              `json:"timestamp"`
	Priority   Priority               `json:"priority"`
	RetryCount int                    `json:"retryCount"`
}

// New constructs a SyncEvent with a generated id, the current timestamp
// and a computed entity key.
func New(t Type, source Source, targets []Source, data map[string]interface{}, priority Priority) *SyncEvent {
	if len(targets) == 0 {
		targets = []Source{TargetAll}
	}
	ev := &SyncEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Source:    source,
		Targets:   targets,
		Data:      data,
		Timestamp: time.Now(),
		Priority:  priority,
	}
	ev.EntityKey = DeriveEntityKey(t, data)
	return ev
}

// TargetsInclude reports whether the event addresses the given client type
func (e *SyncEvent) TargetsInclude(clientType Source) bool {
	for _, t := range e.Targets {
		if t == TargetAll || t == clientType {
			return true
		}
	}
	return false
}

// Channel returns the broadcast channel this event is delivered on
func (e *SyncEvent) Channel() Channel {
	return ChannelFor(e.Type)
}

// priorityRank orders high before medium before low
func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// HigherPriority reports whether a sorts strictly before b
func HigherPriority(a, b Priority) bool {
	return priorityRank(a) < priorityRank(b)
}

// DeriveEntityKey computes the logical entity key for conflict detection.
// Producers call this once at event creation so the resolver never has to
// guess from payload shape.
func DeriveEntityKey(t Type, data map[string]interface{}) string {
	str := func(key string) string {
		if v, ok := data[key]; ok {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}

	switch t {
	case TypeOrderCreated, TypeOrderUpdated, TypeOrderCancelled:
		return fmt.Sprintf("order:%s:%s", str("customerId"), str("id"))
	case TypeInventoryUpdated:
		return fmt.Sprintf("inventory:%s", str("productId"))
	case TypePriceChanged:
		return fmt.Sprintf("price:%s", str("productId"))
	default:
		prefix := "entity"
		switch t {
		case TypeCustomerCreated, TypeCustomerUpdated, TypeCustomerDeleted:
			prefix = "customer"
		case TypeProductCreated, TypeProductUpdated, TypeProductDeleted:
			prefix = "product"
		case TypeTerritoryUpdated:
			prefix = "territory"
		}
		return fmt.Sprintf("%s:%s", prefix, str("id"))
	}
}
