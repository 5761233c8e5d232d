package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/models"
	"gorm.io/driver/sqlite"
)

// testEnv bundles the services under test around one in-memory database.
type testEnv struct {
	db        *gorm.DB
	bus       *events.Bus
	orders    *OrderService
	inventory *InventoryService
	tables    *TableService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	bus := events.NewBus()
	inventory := NewInventoryService(db, bus, nil)
	tables := NewTableService(db, bus, nil)
	orders := NewOrderService(db, bus, inventory, tables, nil)

	return &testEnv{db: db, bus: bus, orders: orders, inventory: inventory, tables: tables}
}

// seedProduct creates a product, optionally with an inventory balance.
func (e *testEnv) seedProduct(t *testing.T, name string, price float64, trackable bool, stock int) *models.Product {
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
		if _, err := e.inventory.InitializeStock(product.ID, stock, 2, 100, decimal.Zero, SystemActor); err != nil {
			t.Fatalf("Failed to seed inventory: %v", err)
		}
	}
	return &product
}

func (e *testEnv) seedTable(t *testing.T, number string) *models.Table {
	t.Helper()

	table, err := e.tables.Create(number, 4, nil, SystemActor)
	if err != nil {
		t.Fatalf("Failed to seed table: %v", err)
	}
	return table
}

// currentStock reads the inventory balance for one product.
func (e *testEnv) currentStock(t *testing.T, productID uint) int {
	t.Helper()

	var inv models.Inventory
	if err := e.db.Where("product_id = ?", productID).First(&inv).Error; err != nil {
		t.Fatalf("Failed to read inventory: %v", err)
	}
	return inv.CurrentStock
}

// movements returns the ledger rows for one product in creation order.
func (e *testEnv) movements(t *testing.T, productID uint) []models.StockMovement {
	t.Helper()

	var rows []models.StockMovement
	if err := e.db.Where("product_id = ?", productID).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("Failed to read movements: %v", err)
	}
	return rows
}

// capture subscribes to one event name and returns the received events.
func capture(bus *events.Bus, name string) *[]events.Event {
	received := &[]events.Event{}
	bus.Subscribe(name, func(ev events.Event) {
		*received = append(*received, ev)
	})
	return received
}
