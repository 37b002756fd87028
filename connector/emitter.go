package connector

import (
	"sync"
)

// DomainEvent names the local change notifications connectors emit after a
// pull or push. The orchestrator subscribes to these and decides fan-out.
type DomainEvent string

const (
	EventCustomerUpdated  DomainEvent = "customer-updated"
	EventCustomersSynced  DomainEvent = "customers-synced"
	EventOrderCreated     DomainEvent = "order-created"
	EventOrderUpdated     DomainEvent = "order-updated"
	EventOrdersSynced     DomainEvent = "orders-synced"
	EventProductsSynced   DomainEvent = "products-synced"
	EventInventoryUpdated DomainEvent = "inventory-updated"
	EventPriceUpdated     DomainEvent = "price-updated"
	EventTerritoryUpdated DomainEvent = "territory-updated"
	EventCartUpdated      DomainEvent = "cart-updated"
)

// Handler receives a domain event payload together with the name of the
// connector that produced it.
type Handler func(origin string, payload interface{})

// Emitter is a small in-process event bus. Connectors publish, the
// orchestrator subscribes. Handlers run synchronously on the caller's
// goroutine; long-running work belongs in the handler's own goroutine.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[DomainEvent][]Handler
}

// NewEmitter creates an Emitter
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[DomainEvent][]Handler)}
}

// On registers a handler for an event
func (e *Emitter) On(ev DomainEvent, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[ev] = append(e.handlers[ev], h)
}

// Emit delivers payload to every handler registered for ev
func (e *Emitter) Emit(ev DomainEvent, origin string, payload interface{}) {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers[ev]))
	copy(handlers, e.handlers[ev])
	e.mu.RUnlock()

	for _, h := range handlers {
		h(origin, payload)
	}
}
