package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateProductEndpoint(t *testing.T) {
	env := newControllerEnv(t)

	status, resp := env.do(t, http.MethodPost, "/api/products", map[string]interface{}{
		"name":         "Margherita",
		"sku":          "PIZZA-001",
		"price":        "12.50",
		"tax_rate":     "10",
		"is_trackable": true,
	})
	assert.Equal(t, http.StatusCreated, status)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Margherita", data["name"])
	assert.Equal(t, true, data["is_active"])

	// Same SKU again is a conflict.
	status, resp = env.do(t, http.MethodPost, "/api/products", map[string]interface{}{
		"name":  "Margherita Copy",
		"sku":   "PIZZA-001",
		"price": "11.00",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(resp))

	// Negative price is rejected before the insert.
	status, resp = env.do(t, http.MethodPost, "/api/products", map[string]interface{}{
		"name":  "Freebie",
		"sku":   "FREE-001",
		"price": "-1.00",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(resp))
}

func TestListProductsEndpoint(t *testing.T) {
	env := newControllerEnv(t)
	env.seedProduct(t, "espresso", 3.00, false, 0)
	inactive := env.seedProduct(t, "old-special", 5.00, false, 0)
	env.db.Model(inactive).Update("is_active", false)

	status, resp := env.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp["data"], 2)

	status, resp = env.do(t, http.MethodGet, "/api/products?active=true", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp["data"], 1)
}
