package mapper

import (
	"fmt"
	"strings"
)

// Payload is the wire shape of a record as received from an external system
type Payload = map[string]interface{}

// getString reads a string field, defaulting to empty
func getString(p Payload, key string) string {
	if v, ok := p[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// getFloat reads a numeric field, defaulting to 0
func getFloat(p Payload, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func getInt(p Payload, key string) int {
	return int(getFloat(p, key))
}

func getBool(p Payload, key string, def bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}

func getMap(p Payload, key string) Payload {
	if v, ok := p[key].(Payload); ok && v != nil {
		return v
	}
	return Payload{}
}

func getSlice(p Payload, key string) []interface{} {
	if v, ok := p[key].([]interface{}); ok {
		return v
	}
	return nil
}

// tierFromERPGroup normalizes the ERP's free-text customer group into a
// canonical tier by substring matching.
func tierFromERPGroup(group string) string {
	g := strings.ToLower(group)
	switch {
	case strings.Contains(g, "premium"), strings.Contains(g, "gold"), strings.Contains(g, "vip"):
		return "premium"
	case strings.Contains(g, "basic"), strings.Contains(g, "cash"):
		return "basic"
	default:
		return "standard"
	}
}

// erpGroupFromTier is the reverse lookup for pushes back to the ERP
var erpGroupFromTier = map[string]string{
	"premium":  "Premium Wholesale",
	"standard": "Standard Wholesale",
	"basic":    "Basic Retail",
}

// ERPCustomerToUnified maps an ERP customer record to the canonical shape.
// Missing optional fields default to safe zero values; an absent address
// block yields an empty address list.
func ERPCustomerToUnified(rec Payload) Customer {
	c := Customer{
		ID:          getString(rec, "customer_code"),
		Name:        getString(rec, "customer_name"),
		Email:       getString(rec, "email_id"),
		Phone:       getString(rec, "mobile_no"),
		Tier:        tierFromERPGroup(getString(rec, "customer_group")),
		Territory:   getString(rec, "territory"),
		CreditLimit: getFloat(rec, "credit_limit"),
		Active:      !getBool(rec, "disabled", false),
		Addresses:   []Address{},
	}

	for _, raw := range getSlice(rec, "addresses") {
		addr, ok := raw.(Payload)
		if !ok {
			continue
		}
		c.Addresses = append(c.Addresses, Address{
			ID:      getString(addr, "name"),
			Street:  getString(addr, "address_line1"),
			City:    getString(addr, "city"),
			Region:  getString(addr, "state"),
			Zip:     getString(addr, "pincode"),
			Country: getString(addr, "country"),
		})
	}

	return c
}

// UnifiedCustomerToERP maps a canonical customer back to the ERP record shape
func UnifiedCustomerToERP(c Customer) Payload {
	group, ok := erpGroupFromTier[c.Tier]
	if !ok {
		group = erpGroupFromTier["standard"]
	}

	rec := Payload{
		"customer_code":  c.ID,
		"customer_name":  c.Name,
		"email_id":       c.Email,
		"mobile_no":      c.Phone,
		"customer_group": group,
		"territory":      c.Territory,
		"credit_limit":   c.CreditLimit,
		"disabled":       !c.Active,
	}

	if len(c.Addresses) > 0 {
		addrs := make([]interface{}, 0, len(c.Addresses))
		for _, a := range c.Addresses {
			addrs = append(addrs, Payload{
				"name":          a.ID,
				"address_line1": a.Street,
				"city":          a.City,
				"state":         a.Region,
				"pincode":       a.Zip,
				"country":       a.Country,
			})
		}
		rec["addresses"] = addrs
	}

	return rec
}

// ERPProductToUnified maps an ERP item record to the canonical product shape
func ERPProductToUnified(rec Payload) Product {
	p := Product{
		ID:          getString(rec, "item_code"),
		SKU:         getString(rec, "item_code"),
		Name:        getString(rec, "item_name"),
		Description: getString(rec, "description"),
		Category:    getString(rec, "item_group"),
		Price:       getFloat(rec, "standard_rate"),
		Stock:       getInt(rec, "actual_qty"),
		Active:      !getBool(rec, "disabled", false),
		Tags:        []string{},
	}
	for _, raw := range getSlice(rec, "tags") {
		if s, ok := raw.(string); ok {
			p.Tags = append(p.Tags, s)
		}
	}
	return p
}

// UnifiedProductToERP maps a canonical product back to the ERP item shape
func UnifiedProductToERP(p Product) Payload {
	return Payload{
		"item_code":     p.ID,
		"item_name":     p.Name,
		"description":   p.Description,
		"item_group":    p.Category,
		"standard_rate": p.Price,
		"disabled":      !p.Active,
	}
}

// ERPOrderToUnified maps an ERP sales order to the canonical order shape
func ERPOrderToUnified(rec Payload) Order {
	o := Order{
		ID:         getString(rec, "name"),
		CustomerID: getString(rec, "customer"),
		Status:     strings.ToLower(getString(rec, "status")),
		Total:      getFloat(rec, "grand_total"),
		Notes:      getString(rec, "remarks"),
		Currency:   getString(rec, "currency"),
		Items:      []OrderItem{},
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	for _, raw := range getSlice(rec, "items") {
		line, ok := raw.(Payload)
		if !ok {
			continue
		}
		o.Items = append(o.Items, OrderItem{
			ProductID: getString(line, "item_code"),
			Quantity:  getInt(line, "qty"),
			UnitPrice: getFloat(line, "rate"),
		})
	}
	return o
}

// UnifiedOrderToERP maps a canonical order back to the ERP sales order shape
func UnifiedOrderToERP(o Order) Payload {
	items := make([]interface{}, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, Payload{
			"item_code": it.ProductID,
			"qty":       it.Quantity,
			"rate":      it.UnitPrice,
		})
	}
	return Payload{
		"name":        o.ID,
		"customer":    o.CustomerID,
		"status":      capitalize(o.Status),
		"grand_total": o.Total,
		"remarks":     o.Notes,
		"currency":    o.Currency,
		"items":       items,
	}
}

// capitalize upper-cases the first letter, matching ERP status casing
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// B2BCustomerToUnified maps a B2B portal account to the canonical shape
func B2BCustomerToUnified(rec Payload) Customer {
	company := getMap(rec, "company")
	c := Customer{
		ID:          getString(rec, "externalId"),
		Name:        getString(company, "legalName"),
		Email:       getString(rec, "contactEmail"),
		Phone:       getString(rec, "contactPhone"),
		Tier:        getString(rec, "tier"),
		Territory:   getString(rec, "territoryCode"),
		CreditLimit: getFloat(rec, "creditLimit"),
		Active:      getString(rec, "accountStatus") == "active",
		Addresses:   []Address{},
	}
	if c.Name == "" {
		c.Name = getString(rec, "displayName")
	}
	if c.Tier == "" {
		c.Tier = "standard"
	}
	return c
}

// UnifiedCustomerToB2B maps a canonical customer to the B2B portal shape
func UnifiedCustomerToB2B(c Customer) Payload {
	status := "inactive"
	if c.Active {
		status = "active"
	}
	return Payload{
		"externalId":    c.ID,
		"displayName":   c.Name,
		"contactEmail":  c.Email,
		"contactPhone":  c.Phone,
		"tier":          c.Tier,
		"territoryCode": c.Territory,
		"creditLimit":   c.CreditLimit,
		"accountStatus": status,
	}
}

// B2BOrderToUnified maps a B2B portal order to the canonical shape. The
// portal keys orders by orderRef and customers by the same externalId its
// account records use.
func B2BOrderToUnified(rec Payload) Order {
	o := Order{
		ID:         getString(rec, "orderRef"),
		CustomerID: getString(rec, "accountId"),
		Status:     strings.ToLower(getString(rec, "state")),
		Total:      getFloat(rec, "orderTotal"),
		Notes:      getString(rec, "remarks"),
		Currency:   getString(rec, "currency"),
		Items:      []OrderItem{},
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	for _, raw := range getSlice(rec, "lines") {
		line, ok := raw.(Payload)
		if !ok {
			continue
		}
		o.Items = append(o.Items, OrderItem{
			ProductID: getString(line, "productCode"),
			Quantity:  getInt(line, "qty"),
			UnitPrice: getFloat(line, "unitPrice"),
		})
	}
	return o
}

// B2COrderToUnified maps a storefront order to the canonical shape
func B2COrderToUnified(rec Payload) Order {
	o := Order{
		ID:         getString(rec, "orderNumber"),
		CustomerID: getString(rec, "customerId"),
		Status:     strings.ToLower(getString(rec, "fulfillmentStatus")),
		Total:      getFloat(rec, "totalAmount"),
		Notes:      getString(rec, "customerNote"),
		Currency:   getString(rec, "currency"),
		Items:      []OrderItem{},
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	for _, raw := range getSlice(rec, "lineItems") {
		line, ok := raw.(Payload)
		if !ok {
			continue
		}
		o.Items = append(o.Items, OrderItem{
			ProductID: getString(line, "sku"),
			Quantity:  getInt(line, "quantity"),
			UnitPrice: getFloat(line, "price"),
		})
	}
	return o
}

// UnifiedProductToB2C maps a canonical product to the storefront shape
func UnifiedProductToB2C(p Product) Payload {
	return Payload{
		"sku":         p.SKU,
		"title":       p.Name,
		"description": p.Description,
		"category":    p.Category,
		"price":       p.Price,
		"inventory":   p.Stock,
		"published":   p.Active,
	}
}

// B2CProductToUnified maps a storefront product to the canonical shape
func B2CProductToUnified(rec Payload) Product {
	return Product{
		ID:          getString(rec, "sku"),
		SKU:         getString(rec, "sku"),
		Name:        getString(rec, "title"),
		Description: getString(rec, "description"),
		Category:    getString(rec, "category"),
		Price:       getFloat(rec, "price"),
		Stock:       getInt(rec, "inventory"),
		Active:      getBool(rec, "published", true),
		Tags:        []string{},
	}
}

// ERPTerritoryToUnified maps an ERP territory record to the canonical shape
func ERPTerritoryToUnified(rec Payload) Territory {
	t := Territory{
		ID:       getString(rec, "name"),
		Name:     getString(rec, "territory_name"),
		Region:   getString(rec, "parent_territory"),
		RepID:    getString(rec, "territory_manager"),
		ZipCodes: []string{},
	}
	for _, raw := range getSlice(rec, "zip_codes") {
		if s, ok := raw.(string); ok {
			t.ZipCodes = append(t.ZipCodes, s)
		}
	}
	return t
}

// ERPPriceToUnified maps an ERP item price row to the canonical shape
func ERPPriceToUnified(rec Payload) PriceListItem {
	return PriceListItem{
		ProductID: getString(rec, "item_code"),
		Tier:      tierFromERPGroup(getString(rec, "price_list")),
		Price:     getFloat(rec, "price_list_rate"),
		Currency:  getString(rec, "currency"),
		MinQty:    getInt(rec, "min_qty"),
	}
}
