package connector

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dulcera/syncbridge/mapper"
)

const b2bPageSize = 50

// B2BConnector adapts the wholesale portal's REST API
type B2BConnector struct {
	client  *Client
	emitter *Emitter
}

// b2bListResponse is the portal's paginated envelope
type b2bListResponse struct {
	Results  []mapper.Payload `json:"results"`
	NextPage int              `json:"nextPage"`
}

// NewB2B creates the B2B portal connector
func NewB2B(client *Client, emitter *Emitter) *B2BConnector {
	return &B2BConnector{client: client, emitter: emitter}
}

func (c *B2BConnector) Name() string { return "b2b-portal" }

// SyncCustomers pages through portal accounts and emits customers-synced
func (c *B2BConnector) SyncCustomers(ctx context.Context) ([]mapper.Customer, error) {
	var customers []mapper.Customer

	for page := 1; page > 0; {
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(b2bPageSize)},
		}

		var resp b2bListResponse
		if err := c.client.getJSON(ctx, "/api/v1/accounts", query, &resp); err != nil {
			return nil, err
		}

		for _, rec := range resp.Results {
			customers = append(customers, mapper.B2BCustomerToUnified(rec))
		}
		page = resp.NextPage
	}

	c.client.logger.Info("customers synced from B2B portal", "count", len(customers))
	c.emitter.Emit(EventCustomersSynced, c.Name(), customers)
	return customers, nil
}

// SyncOrders pulls open portal orders
func (c *B2BConnector) SyncOrders(ctx context.Context) ([]mapper.Order, error) {
	var resp b2bListResponse
	if err := c.client.getJSON(ctx, "/api/v1/orders", url.Values{"status": {"open"}}, &resp); err != nil {
		return nil, err
	}

	orders := make([]mapper.Order, 0, len(resp.Results))
	for _, rec := range resp.Results {
		orders = append(orders, mapper.B2BOrderToUnified(rec))
	}

	c.client.logger.Info("orders synced from B2B portal", "count", len(orders))
	c.emitter.Emit(EventOrdersSynced, c.Name(), orders)
	return orders, nil
}

// UpdateCustomer pushes a canonical customer to the portal
func (c *B2BConnector) UpdateCustomer(ctx context.Context, customer mapper.Customer) error {
	path := "/api/v1/accounts/" + url.PathEscape(customer.ID)
	if err := c.client.sendJSON(ctx, "PUT", path, mapper.UnifiedCustomerToB2B(customer), nil); err != nil {
		return err
	}
	c.emitter.Emit(EventCustomerUpdated, c.Name(), customer)
	return nil
}

// UpdatePrices pushes tier pricing rows to the portal
func (c *B2BConnector) UpdatePrices(ctx context.Context, prices []mapper.PriceListItem) error {
	if err := c.client.sendJSON(ctx, "PUT", "/api/v1/pricing", map[string]interface{}{"prices": prices}, nil); err != nil {
		return err
	}
	c.emitter.Emit(EventPriceUpdated, c.Name(), prices)
	return nil
}

// Health checks the portal API
func (c *B2BConnector) Health(ctx context.Context) error {
	return c.client.Ping(ctx)
}
