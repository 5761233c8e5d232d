package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/models"
)

// Adjustment is one requested stock change.
type Adjustment struct {
	ProductID uint            `json:"product_id"`
	Direction string          `json:"adjustment_type"` // in | out
	Quantity  int             `json:"quantity"`
	Reason    string          `json:"reason"`
	Notes     string          `json:"notes"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

// InventoryService is the inventory ledger. Every stock change updates the
// balance and appends exactly one movement row in the same transaction, so
// the ledger always reconciles with current stock.
type InventoryService struct {
	db    *gorm.DB
	bus   *events.Bus
	audit *AuditService
}

// NewInventoryService wires the ledger to the bus and audit trail.
func NewInventoryService(db *gorm.DB, bus *events.Bus, audit *AuditService) *InventoryService {
	return &InventoryService{db: db, bus: bus, audit: audit}
}

// stockChange describes one applied inventory mutation, used to publish
// events after the surrounding transaction commits.
type stockChange struct {
	ProductID    uint
	CurrentStock int
	ReorderLevel int
	crossedLow   bool
}

func (c stockChange) pendingEvents() []pendingEvent {
	evs := []pendingEvent{{events.InventoryUpdated, map[string]interface{}{
		"product_id":    c.ProductID,
		"current_stock": c.CurrentStock,
		"reorder_level": c.ReorderLevel,
	}}}
	if c.crossedLow {
		evs = append(evs, pendingEvent{events.InventoryLowStock, map[string]interface{}{
			"product_id":    c.ProductID,
			"current_stock": c.CurrentStock,
			"reorder_level": c.ReorderLevel,
		}})
	}
	return evs
}

// AdjustStock applies one manual adjustment. Fails with NotTrackableError
// for untracked products and InsufficientStockError when an outbound
// adjustment exceeds the balance.
func (s *InventoryService) AdjustStock(adj Adjustment, actor Actor) (*models.Inventory, error) {
	if err := validateAdjustment(adj); err != nil {
		return nil, err
	}

	var inv *models.Inventory
	var pending []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		pending = pending[:0]

		change, err := s.applyInTx(tx, adj, models.RefManualAdjustment, 0, actor)
		if err != nil {
			return err
		}
		pending = append(pending, change.pendingEvents()...)

		if !adj.CostPrice.IsZero() {
			if err := tx.Model(&models.Inventory{}).
				Where("product_id = ?", adj.ProductID).
				UpdateColumn("cost_price", adj.CostPrice).Error; err != nil {
				return err
			}
		}

		inv = &models.Inventory{}
		return tx.Where("product_id = ?", adj.ProductID).First(inv).Error
	})
	if err != nil {
		return nil, err
	}

	publishAll(s.bus, pending)
	s.audit.Record(AuditEntry{
		TableName: inv.TableName(),
		RecordID:  inv.ID,
		Action:    "adjust:" + adj.Direction,
		NewValues: inv,
		Actor:     actor,
	})
	return inv, nil
}

// BulkAdjust applies a list of adjustments as a single transaction. Any one
// failure rolls back all of them; the returned error names the failing
// product.
func (s *InventoryService) BulkAdjust(adjs []Adjustment, actor Actor) error {
	if len(adjs) == 0 {
		return &ValidationError{Message: "adjustments list must not be empty"}
	}
	for _, adj := range adjs {
		if err := validateAdjustment(adj); err != nil {
			return err
		}
	}

	var pending []pendingEvent
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pending = pending[:0]
		for _, adj := range adjs {
			change, err := s.applyInTx(tx, adj, models.RefBulkAdjustment, 0, actor)
			if err != nil {
				return err
			}
			pending = append(pending, change.pendingEvents()...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	publishAll(s.bus, pending)
	s.audit.Record(AuditEntry{
		TableName: models.Inventory{}.TableName(),
		Action:    "bulk_adjust",
		NewValues: adjs,
		Actor:     actor,
	})
	return nil
}

// InitializeStock creates the inventory record for a trackable product with
// an opening balance and its initial ledger entry.
func (s *InventoryService) InitializeStock(productID uint, quantity, reorderLevel, maxStock int, costPrice decimal.Decimal, actor Actor) (*models.Inventory, error) {
	if quantity < 0 {
		return nil, &ValidationError{Message: "opening stock must not be negative"}
	}

	var inv models.Inventory
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "product", ID: productID}
			}
			return err
		}
		if !product.IsTrackable {
			return &NotTrackableError{ProductID: productID}
		}

		inv = models.Inventory{
			ProductID:    productID,
			CurrentStock: quantity,
			ReorderLevel: reorderLevel,
			MaxStock:     maxStock,
			CostPrice:    costPrice,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		if quantity == 0 {
			return nil
		}
		return tx.Create(&models.StockMovement{
			ProductID:     productID,
			MovementType:  models.MovementIn,
			Quantity:      quantity,
			ReferenceType: models.RefInitial,
			ReferenceID:   inv.ID,
			CreatedBy:     actor.UserID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(AuditEntry{
		TableName: inv.TableName(),
		RecordID:  inv.ID,
		Action:    "initialize",
		NewValues: &inv,
		Actor:     actor,
	})
	return &inv, nil
}

// Movements returns the ledger for one product, oldest first.
func (s *InventoryService) Movements(productID uint, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var movements []models.StockMovement
	err := s.db.Where("product_id = ?", productID).
		Order("id").Limit(limit).
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// List returns every inventory record with its product, for client sync.
func (s *InventoryService) List() ([]models.Inventory, error) {
	var records []models.Inventory
	if err := s.db.Preload("Product").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// validateAdjustment checks the static shape of one adjustment.
func validateAdjustment(adj Adjustment) error {
	if adj.Quantity <= 0 {
		return &ValidationError{Message: fmt.Sprintf("quantity for product %d must be greater than zero", adj.ProductID)}
	}
	if adj.Direction != models.MovementIn && adj.Direction != models.MovementOut {
		return &ValidationError{Message: "adjustment_type must be 'in' or 'out'"}
	}
	return nil
}

// applyInTx routes an adjustment to the shared in-transaction helpers after
// confirming the product is trackable.
func (s *InventoryService) applyInTx(tx *gorm.DB, adj Adjustment, refType string, refID uint, actor Actor) (stockChange, error) {
	var product models.Product
	if err := tx.First(&product, adj.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stockChange{}, &NotFoundError{Resource: "product", ID: adj.ProductID}
		}
		return stockChange{}, err
	}
	if !product.IsTrackable {
		return stockChange{}, &NotTrackableError{ProductID: adj.ProductID}
	}

	notes := movementNotes(adj)
	if adj.Direction == models.MovementOut {
		return s.decrementInTx(tx, adj.ProductID, adj.Quantity, refType, refID, notes, actor)
	}
	return s.restoreInTx(tx, adj.ProductID, adj.Quantity, refType, refID, notes, actor)
}

// movementNotes folds an adjustment's stated reason and free-form notes into
// the ledger's single notes column.
func movementNotes(adj Adjustment) *string {
	var text string
	switch {
	case adj.Reason != "" && adj.Notes != "":
		text = adj.Reason + ": " + adj.Notes
	case adj.Reason != "":
		text = adj.Reason
	case adj.Notes != "":
		text = adj.Notes
	default:
		return nil
	}
	return &text
}

// decrementInTx lowers a product's balance inside the caller's transaction.
// The update is guarded by the balance check in its WHERE clause, so a
// concurrent decrement cannot drive the stock negative.
func (s *InventoryService) decrementInTx(tx *gorm.DB, productID uint, quantity int, refType string, refID uint, notes *string, actor Actor) (stockChange, error) {
	var inv models.Inventory
	if err := tx.Where("product_id = ?", productID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stockChange{}, &InsufficientStockError{ProductID: productID, Available: 0, Requested: quantity}
		}
		return stockChange{}, err
	}
	if inv.CurrentStock < quantity {
		return stockChange{}, &InsufficientStockError{ProductID: productID, Available: inv.CurrentStock, Requested: quantity}
	}

	res := tx.Model(&models.Inventory{}).
		Where("product_id = ? AND current_stock >= ?", productID, quantity).
		UpdateColumn("current_stock", gorm.Expr("current_stock - ?", quantity))
	if res.Error != nil {
		return stockChange{}, res.Error
	}
	if res.RowsAffected == 0 {
		return stockChange{}, &InsufficientStockError{ProductID: productID, Available: inv.CurrentStock, Requested: quantity}
	}

	if err := tx.Create(&models.StockMovement{
		ProductID:     productID,
		MovementType:  models.MovementOut,
		Quantity:      quantity,
		ReferenceType: refType,
		ReferenceID:   refID,
		Notes:         notes,
		CreatedBy:     actor.UserID,
	}).Error; err != nil {
		return stockChange{}, err
	}

	newStock := inv.CurrentStock - quantity
	return stockChange{
		ProductID:    productID,
		CurrentStock: newStock,
		ReorderLevel: inv.ReorderLevel,
		crossedLow:   inv.CurrentStock > inv.ReorderLevel && newStock <= inv.ReorderLevel,
	}, nil
}

// restoreInTx raises a product's balance inside the caller's transaction,
// pairing the update with one inbound movement.
func (s *InventoryService) restoreInTx(tx *gorm.DB, productID uint, quantity int, refType string, refID uint, notes *string, actor Actor) (stockChange, error) {
	var inv models.Inventory
	if err := tx.Where("product_id = ?", productID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stockChange{}, &NotFoundError{Resource: "inventory record for product", ID: productID}
		}
		return stockChange{}, err
	}

	res := tx.Model(&models.Inventory{}).
		Where("product_id = ?", productID).
		UpdateColumn("current_stock", gorm.Expr("current_stock + ?", quantity))
	if res.Error != nil {
		return stockChange{}, res.Error
	}

	if err := tx.Create(&models.StockMovement{
		ProductID:     productID,
		MovementType:  models.MovementIn,
		Quantity:      quantity,
		ReferenceType: refType,
		ReferenceID:   refID,
		Notes:         notes,
		CreatedBy:     actor.UserID,
	}).Error; err != nil {
		return stockChange{}, err
	}

	return stockChange{
		ProductID:    productID,
		CurrentStock: inv.CurrentStock + quantity,
		ReorderLevel: inv.ReorderLevel,
	}, nil
}
