package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movement types for stock movements
const (
	MovementIn  = "in"
	MovementOut = "out"
)

// Reference types describing what caused a stock movement
const (
	RefOrder             = "order"
	RefOrderCancellation = "order_cancellation"
	RefManualAdjustment  = "manual_adjustment"
	RefBulkAdjustment    = "bulk_adjustment"
	RefInitial           = "initial"
)

// Inventory holds the current stock balance for one trackable product.
// It is mutated only through the inventory service; every change is paired
// with a StockMovement row in the same transaction.
type Inventory struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ProductID    uint            `gorm:"uniqueIndex;not null" json:"product_id"`
	Product      *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CurrentStock int             `gorm:"not null;default:0" json:"current_stock"`
	ReorderLevel int             `gorm:"not null;default:0" json:"reorder_level"`
	MaxStock     int             `gorm:"not null;default:0" json:"max_stock"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"cost_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Inventory model
func (Inventory) TableName() string {
	return "inventories"
}

// StockMovement is an append-only ledger entry recording one inventory
// change and its cause. Rows are never updated or deleted; the signed sum
// of a product's movements must reconcile with its current stock.
type StockMovement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProductID     uint      `gorm:"index;not null" json:"product_id"`
	MovementType  string    `gorm:"not null" json:"movement_type"` // in | out
	Quantity      int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	ReferenceType string    `gorm:"not null" json:"reference_type"`
	ReferenceID   uint      `gorm:"index" json:"reference_id"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedBy     string    `gorm:"not null;default:'system'" json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName specifies the table name for the StockMovement model
func (StockMovement) TableName() string {
	return "stock_movements"
}

// SignedQuantity returns the quantity with direction applied (in positive,
// out negative).
func (m StockMovement) SignedQuantity() int {
	if m.MovementType == MovementOut {
		return -m.Quantity
	}
	return m.Quantity
}
