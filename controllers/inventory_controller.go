package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/marisol-bistro/marisol-pos-api/services"
)

// AdjustStockRequest represents the request body for a manual adjustment
type AdjustStockRequest struct {
	AdjustmentType string          `json:"adjustmentType" binding:"required"`
	Quantity       int             `json:"quantity" binding:"required"`
	Reason         string          `json:"reason"`
	Notes          string          `json:"notes"`
	CostPrice      decimal.Decimal `json:"costPrice"`
}

// BulkAdjustRequest represents the request body for a bulk adjustment
type BulkAdjustRequest struct {
	Adjustments []services.Adjustment `json:"adjustments" binding:"required"`
}

// InitializeStockRequest represents the request body for an opening balance
type InitializeStockRequest struct {
	Quantity     int             `json:"quantity"`
	ReorderLevel int             `json:"reorderLevel"`
	MaxStock     int             `json:"maxStock"`
	CostPrice    decimal.Decimal `json:"costPrice"`
}

// InventoryController serves the inventory ledger endpoints
type InventoryController struct {
	inventory *services.InventoryService
}

// NewInventoryController creates the controller with its service.
func NewInventoryController(inventory *services.InventoryService) *InventoryController {
	return &InventoryController{inventory: inventory}
}

// List handles GET /api/inventory
func (ctl *InventoryController) List(c *gin.Context) {
	records, err := ctl.inventory.List()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
	})
}

// Adjust handles POST /api/inventory/:id/adjust - one manual stock change
func (ctl *InventoryController) Adjust(c *gin.Context) {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	inv, err := ctl.inventory.AdjustStock(services.Adjustment{
		ProductID: productID,
		Direction: req.AdjustmentType,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Notes:     req.Notes,
		CostPrice: req.CostPrice,
	}, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    inv,
	})
}

// BulkAdjust handles POST /api/inventory/bulk-adjust - all-or-nothing
func (ctl *InventoryController) BulkAdjust(c *gin.Context) {
	var req BulkAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	if err := ctl.inventory.BulkAdjust(req.Adjustments, actorFrom(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "adjustments applied",
	})
}

// Initialize handles POST /api/inventory/:id/initialize - opening balance
func (ctl *InventoryController) Initialize(c *gin.Context) {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req InitializeStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	inv, err := ctl.inventory.InitializeStock(productID, req.Quantity, req.ReorderLevel, req.MaxStock, req.CostPrice, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    inv,
	})
}

// Movements handles GET /api/inventory/:id/movements - the product ledger
func (ctl *InventoryController) Movements(c *gin.Context) {
	productID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	movements, err := ctl.inventory.Movements(productID, intQuery(c, "limit"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Running balance alongside the raw ledger rows.
	balance := 0
	for _, m := range movements {
		balance += m.SignedQuantity()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"movements":  movements,
			"ledger_sum": balance,
		},
	})
}
