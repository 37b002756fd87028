package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestERPCustomerToUnified(t *testing.T) {
	rec := Payload{
		"customer_code":  "CUST-0042",
		"customer_name":  "Dulces del Valle",
		"email_id":       "compras@delvalle.example",
		"mobile_no":      "+52 55 1234 5678",
		"customer_group": "Premium Wholesale",
		"territory":      "Centro",
		"credit_limit":   250000.0,
		"disabled":       false,
		"addresses": []interface{}{
			Payload{
				"name":          "ADDR-1",
				"address_line1": "Av. Insurgentes 100",
				"city":          "CDMX",
				"state":         "DF",
				"pincode":       "06700",
				"country":       "Mexico",
			},
		},
	}

	c := ERPCustomerToUnified(rec)

	assert.Equal(t, "CUST-0042", c.ID)
	assert.Equal(t, "Dulces del Valle", c.Name)
	assert.Equal(t, "premium", c.Tier)
	assert.Equal(t, 250000.0, c.CreditLimit)
	assert.True(t, c.Active)
	require.Len(t, c.Addresses, 1)
	assert.Equal(t, "CDMX", c.Addresses[0].City)
}

func TestERPCustomerToUnifiedToleratesSparseRecords(t *testing.T) {
	c := ERPCustomerToUnified(Payload{"customer_code": "CUST-1"})

	assert.Equal(t, "CUST-1", c.ID)
	assert.Equal(t, "", c.Email)
	assert.Equal(t, "standard", c.Tier)
	assert.Equal(t, 0.0, c.CreditLimit)
	assert.True(t, c.Active)
	assert.NotNil(t, c.Addresses)
	assert.Empty(t, c.Addresses)
}

func TestCustomerRoundTrip(t *testing.T) {
	original := Payload{
		"customer_code":  "CUST-7",
		"customer_name":  "La Giralda",
		"email_id":       "pedidos@giralda.example",
		"mobile_no":      "+34 91 000 0000",
		"customer_group": "Basic Retail",
		"territory":      "Sur",
		"credit_limit":   5000.0,
		"disabled":       true,
	}

	back := UnifiedCustomerToERP(ERPCustomerToUnified(original))

	for _, key := range []string{"customer_code", "customer_name", "email_id", "mobile_no", "customer_group", "territory", "credit_limit", "disabled"} {
		assert.Equal(t, original[key], back[key], "field %s", key)
	}
}

func TestTierNormalization(t *testing.T) {
	cases := map[string]string{
		"Premium Wholesale": "premium",
		"Gold Partners":     "premium",
		"VIP":               "premium",
		"Basic Retail":      "basic",
		"Cash Only":         "basic",
		"Wholesale":         "standard",
		"":                  "standard",
	}
	for group, want := range cases {
		assert.Equal(t, want, tierFromERPGroup(group), "group %q", group)
	}
}

func TestERPOrderToUnified(t *testing.T) {
	rec := Payload{
		"name":        "SO-0099",
		"customer":    "CUST-7",
		"status":      "Confirmed",
		"grand_total": 1234.5,
		"currency":    "MXN",
		"items": []interface{}{
			Payload{"item_code": "CHOC-70", "qty": 10.0, "rate": 55.0},
			Payload{"item_code": "GUM-12", "qty": 24.0, "rate": 12.5},
		},
	}

	o := ERPOrderToUnified(rec)

	assert.Equal(t, "SO-0099", o.ID)
	assert.Equal(t, "confirmed", o.Status)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "CHOC-70", o.Items[0].ProductID)
	assert.Equal(t, 10, o.Items[0].Quantity)
	assert.Equal(t, 1234.5, o.Total)
}

func TestERPOrderToUnifiedDefaultsStatus(t *testing.T) {
	o := ERPOrderToUnified(Payload{"name": "SO-1", "customer": "C1"})
	assert.Equal(t, "pending", o.Status)
	assert.NotNil(t, o.Items)
}

func TestB2COrderToUnified(t *testing.T) {
	rec := Payload{
		"orderNumber":       "WEB-1001",
		"customerId":        "shopper-9",
		"fulfillmentStatus": "Pending",
		"totalAmount":       89.9,
		"lineItems": []interface{}{
			Payload{"sku": "LOLLI-5", "quantity": 3.0, "price": 9.99},
		},
	}

	o := B2COrderToUnified(rec)

	assert.Equal(t, "WEB-1001", o.ID)
	assert.Equal(t, "pending", o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "LOLLI-5", o.Items[0].ProductID)
}

func TestB2BOrderToUnified(t *testing.T) {
	rec := Payload{
		"orderRef":   "PO-2024-17",
		"accountId":  "ACC-3",
		"state":      "Confirmed",
		"orderTotal": 1240.0,
		"remarks":    "deliver before friday",
		"currency":   "EUR",
		"lines": []interface{}{
			Payload{"productCode": "CHOC-70", "qty": 40.0, "unitPrice": 28.5},
			Payload{"productCode": "LOLLI-5", "qty": 100.0, "unitPrice": 1.0},
		},
	}

	o := B2BOrderToUnified(rec)

	assert.Equal(t, "PO-2024-17", o.ID)
	assert.Equal(t, "ACC-3", o.CustomerID)
	assert.Equal(t, "confirmed", o.Status)
	assert.Equal(t, 1240.0, o.Total)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "CHOC-70", o.Items[0].ProductID)
	assert.Equal(t, 40, o.Items[0].Quantity)
}

func TestB2BOrderToUnifiedDefaultsStatus(t *testing.T) {
	o := B2BOrderToUnified(Payload{"orderRef": "PO-1", "accountId": "ACC-1"})
	assert.Equal(t, "pending", o.Status)
	assert.NotNil(t, o.Items)
}

func TestB2BCustomerFallsBackToDisplayName(t *testing.T) {
	c := B2BCustomerToUnified(Payload{
		"externalId":    "ACC-3",
		"displayName":   "Candy Corner",
		"accountStatus": "active",
	})
	assert.Equal(t, "Candy Corner", c.Name)
	assert.Equal(t, "standard", c.Tier)
	assert.True(t, c.Active)
}

func TestProductMappings(t *testing.T) {
	p := ERPProductToUnified(Payload{
		"item_code":     "CHOC-70",
		"item_name":     "70% Dark Bar",
		"item_group":    "Chocolate",
		"standard_rate": 55.0,
		"actual_qty":    120.0,
	})

	assert.Equal(t, "CHOC-70", p.SKU)
	assert.Equal(t, 120, p.Stock)
	assert.True(t, p.Active)

	b2c := UnifiedProductToB2C(p)
	assert.Equal(t, "70% Dark Bar", b2c["title"])
	assert.Equal(t, 120, b2c["inventory"])

	back := B2CProductToUnified(b2c)
	assert.Equal(t, p.SKU, back.SKU)
	assert.Equal(t, p.Price, back.Price)
	assert.Equal(t, p.Stock, back.Stock)
}
