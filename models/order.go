package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. pending -> confirmed -> preparing -> ready -> served ->
// completed is the happy path; cancelled is reachable from any non-terminal
// status. completed and cancelled are terminal.
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderPreparing = "preparing"
	OrderReady     = "ready"
	OrderServed    = "served"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order types
const (
	OrderDineIn   = "dine_in"
	OrderTakeout  = "takeout"
	OrderDelivery = "delivery"
)

// Order represents a customer order. Orders are never physically deleted;
// cancellation is a status transition.
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderNumber    string          `gorm:"uniqueIndex;not null" json:"order_number"`
	TableID        *uint           `gorm:"index" json:"table_id,omitempty"`
	Table          *Table          `gorm:"foreignKey:TableID" json:"table,omitempty"`
	OrderType      string          `gorm:"not null;default:'dine_in'" json:"order_type"`
	CustomerName   *string         `json:"customer_name,omitempty"`
	Status         string          `gorm:"not null;default:'pending';index" json:"status"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax_amount"`
	ServiceCharge  decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"service_charge"`
	Total          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	CancelReason   *string         `json:"cancel_reason,omitempty"`
	ServedBy       *string         `json:"served_by,omitempty"`
	CreatedBy      string          `gorm:"not null;default:'system'" json:"created_by"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether the order has reached a terminal status.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderCompleted || o.Status == OrderCancelled
}

// OrderItem is one line of an order. UnitPrice is a snapshot of the product
// price at order time; it is never re-derived from the live product, so
// historical orders are insulated from later price changes.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal returns quantity x unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderCounter backs the per-day order number sequence. The row for a date
// is bumped inside the order-creation transaction; the unique index on
// orders.order_number backstops any collision.
type OrderCounter struct {
	Date string `gorm:"primaryKey" json:"date"` // YYYYMMDD
	Seq  int    `gorm:"not null" json:"seq"`
}

// TableName specifies the table name for the OrderCounter model
func (OrderCounter) TableName() string {
	return "order_counters"
}
