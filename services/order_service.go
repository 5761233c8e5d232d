package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/models"
)

// orderTransitions defines the legal successors of each order status.
// completed and cancelled are terminal.
var orderTransitions = map[string][]string{
	models.OrderPending:   {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed: {models.OrderPreparing, models.OrderCancelled},
	models.OrderPreparing: {models.OrderReady, models.OrderCancelled},
	models.OrderReady:     {models.OrderServed, models.OrderCancelled},
	models.OrderServed:    {models.OrderCompleted, models.OrderCancelled},
	models.OrderCompleted: {},
	models.OrderCancelled: {},
}

func isValidOrderTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderLineInput is one requested line item.
type OrderLineInput struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// CreateOrderInput carries everything needed to create an order.
type CreateOrderInput struct {
	TableID        *uint
	OrderType      string
	CustomerName   *string
	Items          []OrderLineInput
	DiscountAmount decimal.Decimal
	ServiceCharge  decimal.Decimal
	PaymentMethod  *string
}

// OrderService is the order engine: it validates and prices incoming
// orders and applies them atomically together with their stock and table
// side effects. Domain events are published only after the transaction
// commits.
type OrderService struct {
	db        *gorm.DB
	bus       *events.Bus
	inventory *InventoryService
	tables    *TableService
	audit     *AuditService
}

// NewOrderService wires the order engine to its collaborators.
func NewOrderService(db *gorm.DB, bus *events.Bus, inventory *InventoryService, tables *TableService, audit *AuditService) *OrderService {
	return &OrderService{db: db, bus: bus, inventory: inventory, tables: tables, audit: audit}
}

// CreateOrder validates, prices and persists an order in one transaction:
// order row, line items with price snapshots, inventory decrements with
// their ledger entries, and the table transition for dine-in orders. Any
// failure rolls the whole transaction back.
func (s *OrderService) CreateOrder(in CreateOrderInput, actor Actor) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, &ValidationError{Message: "order must contain at least one item"}
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, &ValidationError{Message: fmt.Sprintf("quantity for product %d must be greater than zero", item.ProductID)}
		}
	}

	orderType := in.OrderType
	if orderType == "" {
		orderType = models.OrderDineIn
	}
	switch orderType {
	case models.OrderDineIn, models.OrderTakeout, models.OrderDelivery:
	default:
		return nil, &ValidationError{Message: "invalid order type: " + orderType}
	}
	if in.DiscountAmount.IsNegative() || in.ServiceCharge.IsNegative() {
		return nil, &ValidationError{Message: "discount and service charge must not be negative"}
	}

	var order models.Order
	var pending []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		pending = pending[:0]

		// Resolve products and snapshot prices.
		products, err := loadActiveProducts(tx, in.Items)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		tax := decimal.Zero
		items := make([]models.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			p := products[line.ProductID]
			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			tax = tax.Add(lineTotal.Mul(p.TaxRate).Div(decimal.NewFromInt(100)))
			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: p.Price,
			})
		}
		tax = tax.Round(2)
		total := subtotal.Add(tax).Add(in.ServiceCharge).Sub(in.DiscountAmount)

		number, err := nextOrderNumber(tx, time.Now())
		if err != nil {
			return err
		}

		order = models.Order{
			OrderNumber:    number,
			TableID:        in.TableID,
			OrderType:      orderType,
			CustomerName:   in.CustomerName,
			Status:         models.OrderPending,
			Subtotal:       subtotal,
			DiscountAmount: in.DiscountAmount,
			TaxAmount:      tax,
			ServiceCharge:  in.ServiceCharge,
			Total:          total,
			PaymentMethod:  in.PaymentMethod,
			CreatedBy:      actor.UserID,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.Items = items

		// Decrement stock for trackable products, one ledger entry each.
		for _, line := range in.Items {
			p := products[line.ProductID]
			if !p.IsTrackable {
				continue
			}
			change, err := s.inventory.decrementInTx(tx, line.ProductID, line.Quantity, models.RefOrder, order.ID, nil, actor)
			if err != nil {
				return err
			}
			pending = append(pending, change.pendingEvents()...)
		}

		// Any order referencing a table must point at a real one; dine-in
		// additionally occupies it. This runs last so a table failure rolls
		// back the stock decrements above.
		if in.TableID != nil {
			if orderType == models.OrderDineIn {
				changed, err := s.tables.occupyInTx(tx, *in.TableID)
				if err != nil {
					return err
				}
				if changed {
					pending = append(pending, pendingEvent{events.TableStatusChanged, tablePayload(*in.TableID, models.TableOccupied)})
				}
			} else {
				var n int64
				if err := tx.Model(&models.Table{}).Where("id = ?", *in.TableID).Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return &NotFoundError{Resource: "table", ID: *in.TableID}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Nothing is observable until commit; events and audit go out after.
	s.bus.Publish(events.OrderCreated, &order)
	publishAll(s.bus, pending)
	s.audit.Record(AuditEntry{
		TableName: order.TableName(),
		RecordID:  order.ID,
		Action:    "create",
		NewValues: &order,
		Actor:     actor,
	})
	return &order, nil
}

// UpdateStatus applies one state-machine transition. Transitioning into
// completed frees the table when no other active order or reservation still
// references it; transitioning into cancelled restores inventory.
func (s *OrderService) UpdateStatus(orderID uint, newStatus string, servedBy *string, actor Actor) (*models.Order, error) {
	if newStatus == models.OrderCancelled {
		return s.cancel(orderID, nil, actor)
	}

	var order models.Order
	var pending []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		pending = pending[:0]

		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "order", ID: orderID}
			}
			return err
		}
		if !isValidOrderTransition(order.Status, newStatus) {
			return &InvalidTransitionError{Entity: "order", From: order.Status, To: newStatus}
		}

		updates := map[string]interface{}{"status": newStatus}
		if servedBy != nil {
			updates["served_by"] = *servedBy
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}
		order.Status = newStatus
		if servedBy != nil {
			order.ServedBy = servedBy
		}

		if newStatus == models.OrderCompleted && order.TableID != nil {
			freed, err := s.tables.freeIfUnreferencedInTx(tx, *order.TableID, order.ID)
			if err != nil {
				return err
			}
			if freed {
				pending = append(pending, pendingEvent{events.TableStatusChanged, tablePayload(*order.TableID, models.TableAvailable)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.OrderUpdated, &order)
	if newStatus == models.OrderCompleted {
		s.bus.Publish(events.OrderCompleted, &order)
	}
	publishAll(s.bus, pending)
	s.audit.Record(AuditEntry{
		TableName: order.TableName(),
		RecordID:  order.ID,
		Action:    "status:" + newStatus,
		NewValues: &order,
		Actor:     actor,
	})
	return &order, nil
}

// Cancel cancels a non-terminal order, restoring inventory and re-checking
// table occupancy, all in one transaction.
func (s *OrderService) Cancel(orderID uint, reason string, actor Actor) (*models.Order, error) {
	var r *string
	if reason != "" {
		r = &reason
	}
	return s.cancel(orderID, r, actor)
}

func (s *OrderService) cancel(orderID uint, reason *string, actor Actor) (*models.Order, error) {
	var order models.Order
	var pending []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		pending = pending[:0]

		if err := tx.Preload("Items.Product").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "order", ID: orderID}
			}
			return err
		}
		if order.IsTerminal() {
			return &InvalidTransitionError{Entity: "order", From: order.Status, To: models.OrderCancelled}
		}

		updates := map[string]interface{}{"status": models.OrderCancelled}
		if reason != nil {
			updates["cancel_reason"] = *reason
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return err
		}
		order.Status = models.OrderCancelled
		order.CancelReason = reason

		// Restore stock: one movement mirroring each original decrement.
		for _, item := range order.Items {
			if item.Product == nil || !item.Product.IsTrackable {
				continue
			}
			change, err := s.inventory.restoreInTx(tx, item.ProductID, item.Quantity, models.RefOrderCancellation, order.ID, nil, actor)
			if err != nil {
				return err
			}
			pending = append(pending, change.pendingEvents()...)
		}

		if order.TableID != nil {
			freed, err := s.tables.freeIfUnreferencedInTx(tx, *order.TableID, order.ID)
			if err != nil {
				return err
			}
			if freed {
				pending = append(pending, pendingEvent{events.TableStatusChanged, tablePayload(*order.TableID, models.TableAvailable)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.OrderCancelled, &order)
	publishAll(s.bus, pending)
	s.audit.Record(AuditEntry{
		TableName: order.TableName(),
		RecordID:  order.ID,
		Action:    "cancel",
		NewValues: &order,
		Actor:     actor,
	})
	return &order, nil
}

// Get returns one order with its items.
func (s *OrderService) Get(orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Items.Product").Preload("Table").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "order", ID: orderID}
		}
		return nil, err
	}
	return &order, nil
}

// List returns orders, optionally filtered by status, newest first.
func (s *OrderService) List(status string, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.Preload("Items").Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListActive returns all non-terminal orders, for client state sync.
func (s *OrderService) ListActive() ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Items").
		Where("status NOT IN ?", []string{models.OrderCompleted, models.OrderCancelled}).
		Order("created_at").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// loadActiveProducts resolves every referenced product or fails with
// NotFoundError for the first missing one.
func loadActiveProducts(tx *gorm.DB, items []OrderLineInput) (map[uint]*models.Product, error) {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	var products []models.Product
	if err := tx.Where("id IN ? AND is_active = ?", ids, true).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, it := range items {
		if _, ok := byID[it.ProductID]; !ok {
			return nil, &NotFoundError{Resource: "product", ID: it.ProductID}
		}
	}
	return byID, nil
}

// nextOrderNumber returns ORD-YYYYMMDD-NNNN from the per-day counter row,
// bumped inside the caller's transaction. The unique index on order_number
// backstops collisions.
func nextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	date := now.Format("20060102")
	err := tx.Exec(
		"INSERT INTO order_counters (date, seq) VALUES (?, 1) ON CONFLICT(date) DO UPDATE SET seq = order_counters.seq + 1",
		date,
	).Error
	if err != nil {
		return "", err
	}

	var counter models.OrderCounter
	if err := tx.Where("date = ?", date).First(&counter).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%04d", date, counter.Seq), nil
}

// pendingEvent is a domain event collected during a transaction and
// published only after commit.
type pendingEvent struct {
	name    string
	payload interface{}
}

func publishAll(bus *events.Bus, pending []pendingEvent) {
	for _, p := range pending {
		bus.Publish(p.name, p.payload)
	}
}

func tablePayload(tableID uint, status string) map[string]interface{} {
	return map[string]interface{}{"table_id": tableID, "status": status}
}
