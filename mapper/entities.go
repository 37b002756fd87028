// Package mapper translates each external system's native record shape into
// the unified canonical entities the sync layer reasons about, and back.
// All functions are pure: no state, no I/O, and they never fail on missing
// optional fields.
package mapper

// Address is a canonical postal address
type Address struct {
	ID      string `json:"id,omitempty"`
	Street  string `json:"street"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Customer is the unified customer shape shared by all connectors
type Customer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Tier        string    `json:"tier"` // premium, standard, basic
	Territory   string    `json:"territory"`
	CreditLimit float64   `json:"creditLimit"`
	Active      bool      `json:"active"`
	Addresses   []Address `json:"addresses"`
}

// Product is the unified product shape
type Product struct {
	ID          string   `json:"id"`
	SKU         string   `json:"sku"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Active      bool     `json:"active"`
	Tags        []string `json:"tags"`
}

// OrderItem is one order line
type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Order is the unified order shape
type Order struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customerId"`
	Status     string      `json:"status"` // pending, confirmed, shipped, delivered, cancelled
	Items      []OrderItem `json:"items"`
	Total      float64     `json:"total"`
	Notes      string      `json:"notes"`
	Currency   string      `json:"currency"`
}

// Territory is the unified sales territory shape
type Territory struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Region   string   `json:"region"`
	RepID    string   `json:"repId"`
	ZipCodes []string `json:"zipCodes"`
}

// PriceListItem is one row of a customer-tier price list
type PriceListItem struct {
	ProductID string  `json:"productId"`
	Tier      string  `json:"tier"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	MinQty    int     `json:"minQty"`
}
