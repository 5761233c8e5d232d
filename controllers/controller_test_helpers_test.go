package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/config"
	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/models"
	"github.com/marisol-bistro/marisol-pos-api/services"
)

// controllerEnv is a full router over an in-memory database, without auth.
type controllerEnv struct {
	db        *gorm.DB
	router    *gin.Engine
	inventory *services.InventoryService
	tables    *services.TableService
}

func newControllerEnv(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	config.SetDB(db)

	bus := events.NewBus()
	inventory := services.NewInventoryService(db, bus, nil)
	tables := services.NewTableService(db, bus, nil)
	orders := services.NewOrderService(db, bus, inventory, tables, nil)

	orderCtl := NewOrderController(orders)
	inventoryCtl := NewInventoryController(inventory)
	tableCtl := NewTableController(tables)

	router := gin.New()
	router.POST("/api/orders", orderCtl.Create)
	router.GET("/api/orders", orderCtl.List)
	router.GET("/api/orders/:id", orderCtl.Get)
	router.PUT("/api/orders/:id/status", orderCtl.UpdateStatus)
	router.POST("/api/orders/:id/cancel", orderCtl.Cancel)
	router.GET("/api/inventory", inventoryCtl.List)
	router.POST("/api/inventory/bulk-adjust", inventoryCtl.BulkAdjust)
	router.POST("/api/inventory/:id/adjust", inventoryCtl.Adjust)
	router.POST("/api/inventory/:id/initialize", inventoryCtl.Initialize)
	router.GET("/api/inventory/:id/movements", inventoryCtl.Movements)
	router.GET("/api/tables", tableCtl.List)
	router.POST("/api/tables", tableCtl.Create)
	router.PUT("/api/tables/:id/status", tableCtl.SetStatus)
	router.POST("/api/reservations", tableCtl.CreateReservation)
	router.PUT("/api/reservations/:id/status", tableCtl.UpdateReservationStatus)
	router.POST("/api/products", CreateProduct)
	router.GET("/api/products", ListProducts)

	return &controllerEnv{db: db, router: router, inventory: inventory, tables: tables}
}

// do performs one request and decodes the envelope.
func (e *controllerEnv) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return w.Code, resp
}

func errorCode(resp map[string]interface{}) string {
	errObj, ok := resp["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func (e *controllerEnv) seedProduct(t *testing.T, name string, price float64, trackable bool, stock int) *models.Product {
	t.Helper()

	product := models.Product{
		Name:        name,
		SKU:         "SKU-" + name,
		Price:       decimal.NewFromFloat(price),
		TaxRate:     decimal.NewFromInt(10),
		IsTrackable: trackable,
		IsActive:    true,
	}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	if trackable {
		if _, err := e.inventory.InitializeStock(product.ID, stock, 2, 100, decimal.Zero, services.SystemActor); err != nil {
			t.Fatalf("Failed to seed inventory: %v", err)
		}
	}
	return &product
}

func (e *controllerEnv) seedTable(t *testing.T, number string) *models.Table {
	t.Helper()

	table, err := e.tables.Create(number, 4, nil, services.SystemActor)
	if err != nil {
		t.Fatalf("Failed to seed table: %v", err)
	}
	return table
}
