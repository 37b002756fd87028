package connector

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dulcera/syncbridge/mapper"
)

func orderAttrs(o mapper.Order) []slog.Attr {
	return []slog.Attr{
		slog.String("order_id", o.ID),
		slog.String("customer_id", o.CustomerID),
	}
}

const (
	erpPageSize       = 100
	erpWriteBatchSize = 20

	// erpBatchDelay spaces out write batches so bulk pushes do not
	// overwhelm the ERP API
	erpBatchDelay = 200 * time.Millisecond
)

// ERPConnector adapts the ERP system's REST API. Pulls support incremental
// sync via a modified-since filter; writes are batched.
type ERPConnector struct {
	client  *Client
	emitter *Emitter

	mu       sync.Mutex
	lastSync time.Time
}

// erpListResponse is the ERP's standard list envelope
type erpListResponse struct {
	Data []mapper.Payload `json:"data"`
}

// NewERP creates the ERP connector
func NewERP(client *Client, emitter *Emitter) *ERPConnector {
	return &ERPConnector{client: client, emitter: emitter}
}

// Name identifies this connector in health reports and event origins
func (c *ERPConnector) Name() string { return "erp" }

// SyncCustomers pulls customers modified since the last sync, normalizes
// them and emits customers-synced.
func (c *ERPConnector) SyncCustomers(ctx context.Context) ([]mapper.Customer, error) {
	records, err := c.pullIncremental(ctx, "/api/resource/Customer")
	if err != nil {
		return nil, err
	}

	customers := make([]mapper.Customer, 0, len(records))
	for _, rec := range records {
		customers = append(customers, mapper.ERPCustomerToUnified(rec))
	}

	c.client.logger.Info("customers synced from ERP", "count", len(customers))
	c.emitter.Emit(EventCustomersSynced, c.Name(), customers)
	return customers, nil
}

// SyncProducts pulls items modified since the last sync
func (c *ERPConnector) SyncProducts(ctx context.Context) ([]mapper.Product, error) {
	records, err := c.pullIncremental(ctx, "/api/resource/Item")
	if err != nil {
		return nil, err
	}

	products := make([]mapper.Product, 0, len(records))
	for _, rec := range records {
		products = append(products, mapper.ERPProductToUnified(rec))
	}

	c.client.logger.Info("products synced from ERP", "count", len(products))
	c.emitter.Emit(EventProductsSynced, c.Name(), products)
	return products, nil
}

// SyncOrders pulls sales orders modified since the last sync
func (c *ERPConnector) SyncOrders(ctx context.Context) ([]mapper.Order, error) {
	records, err := c.pullIncremental(ctx, "/api/resource/Sales Order")
	if err != nil {
		return nil, err
	}

	orders := make([]mapper.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, mapper.ERPOrderToUnified(rec))
	}

	c.client.logger.Info("orders synced from ERP", "count", len(orders))
	c.emitter.Emit(EventOrdersSynced, c.Name(), orders)
	return orders, nil
}

// SyncTerritories pulls the territory tree
func (c *ERPConnector) SyncTerritories(ctx context.Context) ([]mapper.Territory, error) {
	var resp erpListResponse
	if err := c.client.getJSON(ctx, "/api/resource/Territory", nil, &resp); err != nil {
		return nil, err
	}

	territories := make([]mapper.Territory, 0, len(resp.Data))
	for _, rec := range resp.Data {
		territories = append(territories, mapper.ERPTerritoryToUnified(rec))
	}
	return territories, nil
}

// SyncPrices pulls the item price list
func (c *ERPConnector) SyncPrices(ctx context.Context) ([]mapper.PriceListItem, error) {
	var resp erpListResponse
	if err := c.client.getJSON(ctx, "/api/resource/Item Price", nil, &resp); err != nil {
		return nil, err
	}

	prices := make([]mapper.PriceListItem, 0, len(resp.Data))
	for _, rec := range resp.Data {
		prices = append(prices, mapper.ERPPriceToUnified(rec))
	}
	return prices, nil
}

// CreateOrder pushes a new sales order to the ERP and emits order-created
func (c *ERPConnector) CreateOrder(ctx context.Context, order mapper.Order) error {
	if err := c.client.sendJSON(ctx, "POST", "/api/resource/Sales Order", mapper.UnifiedOrderToERP(order), nil); err != nil {
		c.client.logger.LogError(ctx, err, "failed to create order in ERP", orderAttrs(order)...)
		return err
	}
	c.emitter.Emit(EventOrderCreated, c.Name(), order)
	return nil
}

// UpdateOrder pushes an order change to the ERP. No domain event is
// emitted: the system that changed the order already announced it.
func (c *ERPConnector) UpdateOrder(ctx context.Context, order mapper.Order) error {
	path := "/api/resource/Sales Order/" + url.PathEscape(order.ID)
	if err := c.client.sendJSON(ctx, "PUT", path, mapper.UnifiedOrderToERP(order), nil); err != nil {
		c.client.logger.LogError(ctx, err, "failed to update order in ERP", orderAttrs(order)...)
		return err
	}
	return nil
}

// UpdateCustomer pushes a customer change to the ERP
func (c *ERPConnector) UpdateCustomer(ctx context.Context, customer mapper.Customer) error {
	path := "/api/resource/Customer/" + url.PathEscape(customer.ID)
	if err := c.client.sendJSON(ctx, "PUT", path, mapper.UnifiedCustomerToERP(customer), nil); err != nil {
		return err
	}
	c.emitter.Emit(EventCustomerUpdated, c.Name(), customer)
	return nil
}

// PushCustomers writes customers in fixed-size batches with a short delay
// between batches.
func (c *ERPConnector) PushCustomers(ctx context.Context, customers []mapper.Customer) error {
	for i := 0; i < len(customers); i += erpWriteBatchSize {
		end := i + erpWriteBatchSize
		if end > len(customers) {
			end = len(customers)
		}

		batch := make([]mapper.Payload, 0, end-i)
		for _, cust := range customers[i:end] {
			batch = append(batch, mapper.UnifiedCustomerToERP(cust))
		}

		if err := c.client.sendJSON(ctx, "POST", "/api/resource/Customer/bulk", map[string]interface{}{"docs": batch}, nil); err != nil {
			return err
		}

		if end < len(customers) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(erpBatchDelay):
			}
		}
	}

	c.client.logger.Info("customers pushed to ERP", "count", len(customers))
	return nil
}

// Health checks the ERP API
func (c *ERPConnector) Health(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// pullIncremental pages through a resource filtered to records modified
// after the connector's last successful sync.
func (c *ERPConnector) pullIncremental(ctx context.Context, path string) ([]mapper.Payload, error) {
	c.mu.Lock()
	since := c.lastSync
	c.mu.Unlock()

	var all []mapper.Payload
	for offset := 0; ; offset += erpPageSize {
		query := url.Values{
			"limit_start":     {strconv.Itoa(offset)},
			"limit_page_size": {strconv.Itoa(erpPageSize)},
		}
		if !since.IsZero() {
			query.Set("modified_since", since.UTC().Format(time.RFC3339))
		}

		var resp erpListResponse
		if err := c.client.getJSON(ctx, path, query, &resp); err != nil {
			return nil, err
		}

		all = append(all, resp.Data...)
		if len(resp.Data) < erpPageSize {
			break
		}
	}

	c.mu.Lock()
	c.lastSync = time.Now()
	c.mu.Unlock()
	return all, nil
}
