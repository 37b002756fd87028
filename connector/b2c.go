package connector

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dulcera/syncbridge/mapper"
)

const b2cPageSize = 50

// B2CConnector adapts the consumer storefront's commerce API
type B2CConnector struct {
	client  *Client
	emitter *Emitter
}

// b2cListResponse is the storefront's paginated envelope
type b2cListResponse struct {
	Items      []mapper.Payload `json:"items"`
	Page       int              `json:"page"`
	TotalPages int              `json:"totalPages"`
}

// NewB2C creates the storefront connector
func NewB2C(client *Client, emitter *Emitter) *B2CConnector {
	return &B2CConnector{client: client, emitter: emitter}
}

func (c *B2CConnector) Name() string { return "b2c-ecommerce" }

// SyncOrders pages through storefront orders and emits orders-synced
func (c *B2CConnector) SyncOrders(ctx context.Context) ([]mapper.Order, error) {
	var orders []mapper.Order

	for page := 1; ; page++ {
		query := url.Values{
			"page":    {strconv.Itoa(page)},
			"perPage": {strconv.Itoa(b2cPageSize)},
		}

		var resp b2cListResponse
		if err := c.client.getJSON(ctx, "/store/orders", query, &resp); err != nil {
			return nil, err
		}

		for _, rec := range resp.Items {
			orders = append(orders, mapper.B2COrderToUnified(rec))
		}
		if resp.TotalPages == 0 || page >= resp.TotalPages {
			break
		}
	}

	c.client.logger.Info("orders synced from storefront", "count", len(orders))
	c.emitter.Emit(EventOrdersSynced, c.Name(), orders)
	return orders, nil
}

// SyncProducts pulls the published catalog
func (c *B2CConnector) SyncProducts(ctx context.Context) ([]mapper.Product, error) {
	var resp b2cListResponse
	if err := c.client.getJSON(ctx, "/store/products", nil, &resp); err != nil {
		return nil, err
	}

	products := make([]mapper.Product, 0, len(resp.Items))
	for _, rec := range resp.Items {
		products = append(products, mapper.B2CProductToUnified(rec))
	}

	c.client.logger.Info("products synced from storefront", "count", len(products))
	c.emitter.Emit(EventProductsSynced, c.Name(), products)
	return products, nil
}

// UpdateProduct pushes a canonical product to the storefront catalog
func (c *B2CConnector) UpdateProduct(ctx context.Context, product mapper.Product) error {
	path := "/store/products/" + url.PathEscape(product.SKU)
	if err := c.client.sendJSON(ctx, "PUT", path, mapper.UnifiedProductToB2C(product), nil); err != nil {
		return err
	}
	return nil
}

// UpdateInventory pushes a stock level change to the storefront
func (c *B2CConnector) UpdateInventory(ctx context.Context, sku string, quantity int) error {
	path := "/store/products/" + url.PathEscape(sku) + "/inventory"
	body := map[string]interface{}{"quantity": quantity}
	if err := c.client.sendJSON(ctx, "PUT", path, body, nil); err != nil {
		return err
	}
	c.emitter.Emit(EventInventoryUpdated, c.Name(), map[string]interface{}{"productId": sku, "quantity": quantity})
	return nil
}

// Health checks the storefront API
func (c *B2CConnector) Health(ctx context.Context) error {
	return c.client.Ping(ctx)
}
