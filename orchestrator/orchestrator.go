// Package orchestrator wires the connectors, the realtime hub and the
// conflict layer together: it routes connector domain events to websocket
// broadcasts and cross-system pushes, runs the periodic full sync, and
// serves the aggregate health surface.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dulcera/syncbridge/connector"
	"github.com/dulcera/syncbridge/event"
	"github.com/dulcera/syncbridge/logging"
	"github.com/dulcera/syncbridge/mapper"
	"github.com/dulcera/syncbridge/realtime"
)

// ERPService is the slice of the ERP connector the orchestrator drives.
type ERPService interface {
	SyncCustomers(ctx context.Context) ([]mapper.Customer, error)
	SyncProducts(ctx context.Context) ([]mapper.Product, error)
	SyncOrders(ctx context.Context) ([]mapper.Order, error)
	SyncTerritories(ctx context.Context) ([]mapper.Territory, error)
	SyncPrices(ctx context.Context) ([]mapper.PriceListItem, error)
	CreateOrder(ctx context.Context, order mapper.Order) error
	UpdateOrder(ctx context.Context, order mapper.Order) error
	UpdateCustomer(ctx context.Context, customer mapper.Customer) error
	Health(ctx context.Context) error
}

// B2BService is the slice of the B2B portal connector the orchestrator drives.
type B2BService interface {
	SyncCustomers(ctx context.Context) ([]mapper.Customer, error)
	SyncOrders(ctx context.Context) ([]mapper.Order, error)
	UpdateCustomer(ctx context.Context, customer mapper.Customer) error
	UpdatePrices(ctx context.Context, prices []mapper.PriceListItem) error
	Health(ctx context.Context) error
}

// B2CService is the slice of the B2C shop connector the orchestrator drives.
type B2CService interface {
	SyncOrders(ctx context.Context) ([]mapper.Order, error)
	SyncProducts(ctx context.Context) ([]mapper.Product, error)
	UpdateProduct(ctx context.Context, product mapper.Product) error
	UpdateInventory(ctx context.Context, sku string, quantity int) error
	Health(ctx context.Context) error
}

// Broadcaster is the hub surface the orchestrator publishes through.
type Broadcaster interface {
	BroadcastToAll(t event.Type, data map[string]interface{}) error
	BroadcastToClients(clientTypes []event.Source, t event.Type, data map[string]interface{}) error
	Stats() realtime.Stats
}

// DeadLetterJournal records permanently failed events.
type DeadLetterJournal interface {
	Record(ctx context.Context, ev *event.SyncEvent, reason string) error
	Count(ctx context.Context) (int, error)
}

// ConflictHistory exposes the resolver's per-entity history sizes for the
// status endpoint.
type ConflictHistory interface {
	HistorySizes() map[string]int
}

const (
	defaultFullSyncInterval = 5 * time.Minute
	defaultHealthInterval   = 5 * time.Minute
)

// Options configures an Orchestrator.
type Options struct {
	ERP ERPService
	B2B B2BService
	B2C B2CService

	Hub        Broadcaster
	Emitter    *connector.Emitter
	DeadLetter DeadLetterJournal
	History    ConflictHistory
	Logger     *logging.Logger

	FullSyncInterval    time.Duration
	HealthCheckInterval time.Duration
}

// Orchestrator coordinates the external systems with the realtime layer.
type Orchestrator struct {
	erp ERPService
	b2b B2BService
	b2c B2CService

	hub        Broadcaster
	deadLetter DeadLetterJournal
	history    ConflictHistory
	logger     *logging.Logger

	fullSyncInterval time.Duration
	healthInterval   time.Duration

	mu         sync.RWMutex
	lastSync   *SyncReport
	lastHealth *HealthReport
}

func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.FullSyncInterval <= 0 {
		opts.FullSyncInterval = defaultFullSyncInterval
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = defaultHealthInterval
	}

	o := &Orchestrator{
		erp:              opts.ERP,
		b2b:              opts.B2B,
		b2c:              opts.B2C,
		hub:              opts.Hub,
		deadLetter:       opts.DeadLetter,
		history:          opts.History,
		logger:           opts.Logger.WithComponent("orchestrator"),
		fullSyncInterval: opts.FullSyncInterval,
		healthInterval:   opts.HealthCheckInterval,
	}

	if opts.Emitter != nil {
		o.subscribe(opts.Emitter)
	}
	return o
}

// Run performs an initial full sync, then keeps the periodic full-sync and
// health loops going until ctx is cancelled. Loop failures are logged,
// never fatal.
func (o *Orchestrator) Run(ctx context.Context) {
	o.FullSync(ctx)
	o.CheckHealth(ctx)

	syncTicker := time.NewTicker(o.fullSyncInterval)
	healthTicker := time.NewTicker(o.healthInterval)
	defer syncTicker.Stop()
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			o.FullSync(ctx)
		case <-healthTicker.C:
			o.CheckHealth(ctx)
		}
	}
}

// EventFailed is the hub's terminal-failure hook: permanently failed events
// land in the dead-letter journal.
func (o *Orchestrator) EventFailed(ev *event.SyncEvent, reason error) {
	if o.deadLetter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.deadLetter.Record(ctx, ev, reason.Error()); err != nil {
		o.logger.LogError(ctx, err, "dead-letter write failed", slog.String("eventId", ev.ID))
	}
}

func (o *Orchestrator) subscribe(em *connector.Emitter) {
	em.On(connector.EventCustomerUpdated, func(origin string, payload interface{}) {
		customer, ok := payload.(mapper.Customer)
		if !ok {
			return
		}
		o.onCustomerUpdated(context.Background(), origin, customer)
	})

	em.On(connector.EventOrderCreated, func(origin string, payload interface{}) {
		order, ok := payload.(mapper.Order)
		if !ok {
			return
		}
		o.onOrderCreated(context.Background(), origin, order)
	})

	em.On(connector.EventOrderUpdated, func(origin string, payload interface{}) {
		order, ok := payload.(mapper.Order)
		if !ok {
			return
		}
		o.onOrderUpdated(context.Background(), origin, order)
	})

	em.On(connector.EventInventoryUpdated, func(origin string, payload interface{}) {
		o.onInventoryUpdated(origin, payload)
	})

	em.On(connector.EventPriceUpdated, func(origin string, payload interface{}) {
		prices, ok := payload.([]mapper.PriceListItem)
		if !ok {
			return
		}
		o.onPricesUpdated(context.Background(), origin, prices)
	})

	em.On(connector.EventTerritoryUpdated, func(origin string, payload interface{}) {
		territory, ok := payload.(mapper.Territory)
		if !ok {
			return
		}
		o.broadcast(event.TypeTerritoryUpdated, map[string]interface{}{
			"id":     territory.ID,
			"name":   territory.Name,
			"region": territory.Region,
		})
	})

	em.On(connector.EventCustomersSynced, func(origin string, payload interface{}) {
		o.logSynced(origin, "customers", payload)
	})
	em.On(connector.EventOrdersSynced, func(origin string, payload interface{}) {
		o.logSynced(origin, "orders", payload)
	})
	em.On(connector.EventProductsSynced, func(origin string, payload interface{}) {
		o.logSynced(origin, "products", payload)
	})
}

func (o *Orchestrator) onCustomerUpdated(ctx context.Context, origin string, c mapper.Customer) {
	o.broadcast(event.TypeCustomerUpdated, map[string]interface{}{
		"id":        c.ID,
		"name":      c.Name,
		"email":     c.Email,
		"tier":      c.Tier,
		"territory": c.Territory,
	})

	if origin != "b2b-portal" && o.b2b != nil {
		if err := o.b2b.UpdateCustomer(ctx, c); err != nil {
			o.logger.LogError(ctx, err, "customer push to b2b portal failed", slog.String("customerId", c.ID))
		}
	}
	if origin != "erp" && o.erp != nil {
		if err := o.erp.UpdateCustomer(ctx, c); err != nil {
			o.logger.LogError(ctx, err, "customer push to erp failed", slog.String("customerId", c.ID))
		}
	}
}

func (o *Orchestrator) onOrderCreated(ctx context.Context, origin string, order mapper.Order) {
	o.broadcast(event.TypeOrderCreated, orderData(order))

	if origin != "erp" && o.erp != nil {
		if err := o.erp.CreateOrder(ctx, order); err != nil {
			o.logger.LogError(ctx, err, "order push to erp failed", slog.String("orderId", order.ID))
		}
	}

	if order.Status == "confirmed" {
		o.adjustInventory(order, -1)
	}
}

func (o *Orchestrator) onOrderUpdated(ctx context.Context, origin string, order mapper.Order) {
	o.broadcast(event.TypeOrderUpdated, orderData(order))

	if origin != "erp" && o.erp != nil {
		if err := o.erp.UpdateOrder(ctx, order); err != nil {
			o.logger.LogError(ctx, err, "order update push to erp failed", slog.String("orderId", order.ID))
		}
	}

	// Cancellation returns the reserved stock.
	if order.Status == "cancelled" {
		o.adjustInventory(order, 1)
	}
}

// adjustInventory broadcasts one signed stock adjustment per order line.
// direction is -1 for a confirmed order, +1 for a cancellation.
func (o *Orchestrator) adjustInventory(order mapper.Order, direction int) {
	for _, item := range order.Items {
		o.broadcast(event.TypeInventoryUpdated, map[string]interface{}{
			"productId":  item.ProductID,
			"quantity":   direction * item.Quantity,
			"adjustment": true,
			"orderId":    order.ID,
		})
	}
}

func (o *Orchestrator) onInventoryUpdated(origin string, payload interface{}) {
	data, ok := payload.(map[string]interface{})
	if !ok {
		return
	}
	o.broadcast(event.TypeInventoryUpdated, data)
}

func (o *Orchestrator) onPricesUpdated(ctx context.Context, origin string, prices []mapper.PriceListItem) {
	for _, p := range prices {
		o.broadcast(event.TypePriceChanged, map[string]interface{}{
			"productId": p.ProductID,
			"price":     p.Price,
			"tier":      p.Tier,
			"currency":  p.Currency,
		})
	}

	if origin != "b2b-portal" && o.b2b != nil {
		if err := o.b2b.UpdatePrices(ctx, prices); err != nil {
			o.logger.LogError(ctx, err, "price push to b2b portal failed", slog.Int("count", len(prices)))
		}
	}
}

func (o *Orchestrator) broadcast(t event.Type, data map[string]interface{}) {
	if o.hub == nil {
		return
	}
	if err := o.hub.BroadcastToAll(t, data); err != nil {
		o.logger.LogError(context.Background(), err, "broadcast rejected", slog.String("type", string(t)))
	}
}

func (o *Orchestrator) logSynced(origin, what string, payload interface{}) {
	count := -1
	switch v := payload.(type) {
	case []mapper.Customer:
		count = len(v)
	case []mapper.Order:
		count = len(v)
	case []mapper.Product:
		count = len(v)
	}
	o.logger.Info("pull completed",
		slog.String("origin", origin),
		slog.String("entity", what),
		slog.Int("count", count))
}

func orderData(order mapper.Order) map[string]interface{} {
	items := make([]interface{}, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, map[string]interface{}{
			"productId": it.ProductID,
			"quantity":  it.Quantity,
			"unitPrice": it.UnitPrice,
		})
	}
	return map[string]interface{}{
		"id":         order.ID,
		"customerId": order.CustomerID,
		"status":     order.Status,
		"items":      items,
		"total":      order.Total,
		"currency":   order.Currency,
	}
}
