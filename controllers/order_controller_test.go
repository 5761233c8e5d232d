package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marisol-bistro/marisol-pos-api/models"
)

func TestCreateOrderEndpoint(t *testing.T) {
	env := newControllerEnv(t)
	product := env.seedProduct(t, "margherita", 12.50, true, 10)
	table := env.seedTable(t, "T1")

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name: "valid dine-in order",
			body: map[string]interface{}{
				"tableId":   table.ID,
				"orderType": "dine_in",
				"items":     []map[string]interface{}{{"product_id": product.ID, "quantity": 2}},
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing items",
			body:       map[string]interface{}{"orderType": "takeout"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "empty items list",
			body: map[string]interface{}{
				"orderType": "takeout",
				"items":     []map[string]interface{}{},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name: "unknown product",
			body: map[string]interface{}{
				"orderType": "takeout",
				"items":     []map[string]interface{}{{"product_id": 999, "quantity": 1}},
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name: "insufficient stock carries details",
			body: map[string]interface{}{
				"orderType": "takeout",
				"items":     []map[string]interface{}{{"product_id": product.ID, "quantity": 50}},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INSUFFICIENT_STOCK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := env.do(t, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantCode != "" {
				assert.Equal(t, false, resp["success"])
				assert.Equal(t, tt.wantCode, errorCode(resp))
			} else {
				assert.Equal(t, true, resp["success"])
			}
		})
	}
}

func TestCreateOrderEndpoint_StockErrorDetails(t *testing.T) {
	env := newControllerEnv(t)
	product := env.seedProduct(t, "tiramisu", 8.00, true, 5)

	status, resp := env.do(t, http.MethodPost, "/api/orders", map[string]interface{}{
		"orderType": "takeout",
		"items":     []map[string]interface{}{{"product_id": product.ID, "quantity": 6}},
	})

	assert.Equal(t, http.StatusBadRequest, status)
	errObj := resp["error"].(map[string]interface{})
	details := errObj["details"].(map[string]interface{})
	assert.Equal(t, float64(5), details["available"])
	assert.Equal(t, float64(6), details["requested"])
	assert.Equal(t, float64(product.ID), details["product_id"])
}

func TestOrderStatusEndpoint(t *testing.T) {
	env := newControllerEnv(t)
	product := env.seedProduct(t, "espresso", 3.00, false, 0)

	status, resp := env.do(t, http.MethodPost, "/api/orders", map[string]interface{}{
		"orderType": "takeout",
		"items":     []map[string]interface{}{{"product_id": product.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusCreated, status)
	orderID := uint(resp["data"].(map[string]interface{})["id"].(float64))

	path := fmt.Sprintf("/api/orders/%d/status", orderID)

	status, resp = env.do(t, http.MethodPut, path, map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "confirmed", resp["data"].(map[string]interface{})["status"])

	// Skipping ahead in the state machine is a 400.
	status, resp = env.do(t, http.MethodPut, path, map[string]string{"status": "served"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", errorCode(resp))

	// Missing status field fails binding.
	status, resp = env.do(t, http.MethodPut, path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(resp))
}

func TestCancelOrderEndpoint(t *testing.T) {
	env := newControllerEnv(t)
	product := env.seedProduct(t, "burger", 9.50, true, 10)

	status, resp := env.do(t, http.MethodPost, "/api/orders", map[string]interface{}{
		"orderType": "takeout",
		"items":     []map[string]interface{}{{"product_id": product.ID, "quantity": 4}},
	})
	assert.Equal(t, http.StatusCreated, status)
	orderID := uint(resp["data"].(map[string]interface{})["id"].(float64))

	status, resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", orderID),
		map[string]string{"reason": "customer left"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", resp["data"].(map[string]interface{})["status"])

	// Stock is back after the cancellation.
	var inv models.Inventory
	env.db.Where("product_id = ?", product.ID).First(&inv)
	assert.Equal(t, 10, inv.CurrentStock)

	// Cancelling a cancelled order is rejected.
	status, resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", orderID), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", errorCode(resp))
}

func TestGetOrderEndpoint(t *testing.T) {
	env := newControllerEnv(t)
	product := env.seedProduct(t, "salad", 7.00, false, 0)

	status, resp := env.do(t, http.MethodPost, "/api/orders", map[string]interface{}{
		"orderType": "takeout",
		"items":     []map[string]interface{}{{"product_id": product.ID, "quantity": 1}},
	})
	assert.Equal(t, http.StatusCreated, status)
	orderID := uint(resp["data"].(map[string]interface{})["id"].(float64))

	status, resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", orderID), nil)
	assert.Equal(t, http.StatusOK, status)
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["order_number"])
	assert.Len(t, data["items"], 1)

	status, resp = env.do(t, http.MethodGet, "/api/orders/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(resp))

	status, resp = env.do(t, http.MethodGet, "/api/orders/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(resp))
}

func TestListOrdersEndpoint(t *testing.T) {
	env := newControllerEnv(t)
	product := env.seedProduct(t, "wrap", 6.50, false, 0)

	for i := 0; i < 3; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/orders", map[string]interface{}{
			"orderType": "takeout",
			"items":     []map[string]interface{}{{"product_id": product.ID, "quantity": 1}},
		})
		assert.Equal(t, http.StatusCreated, status)
	}

	status, resp := env.do(t, http.MethodGet, "/api/orders?status=pending", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp["data"], 3)

	status, resp = env.do(t, http.MethodGet, "/api/orders?status=completed", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, resp["data"], 0)
}
