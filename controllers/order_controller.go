package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/marisol-bistro/marisol-pos-api/services"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	TableID        *uint                       `json:"tableId"`
	CustomerName   *string                     `json:"customerName"`
	OrderType      string                      `json:"orderType"`
	Items          []services.OrderLineInput   `json:"items" binding:"required"`
	DiscountAmount decimal.Decimal             `json:"discountAmount"`
	ServiceCharge  decimal.Decimal             `json:"serviceCharge"`
	PaymentMethod  *string                     `json:"paymentMethod"`
}

// UpdateOrderStatusRequest represents the request body for a status change
type UpdateOrderStatusRequest struct {
	Status   string  `json:"status" binding:"required"`
	ServedBy *string `json:"servedBy"`
}

// CancelOrderRequest represents the request body for cancelling an order
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderController serves the order endpoints
type OrderController struct {
	orders *services.OrderService
}

// NewOrderController creates the controller with its service.
func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Create handles POST /api/orders - validates, prices and creates an order
func (ctl *OrderController) Create(c *gin.Context) {
	var req CreateOrderRequest
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

	order, err := ctl.orders.CreateOrder(services.CreateOrderInput{
		TableID:        req.TableID,
		OrderType:      req.OrderType,
		CustomerName:   req.CustomerName,
		Items:          req.Items,
		DiscountAmount: req.DiscountAmount,
		ServiceCharge:  req.ServiceCharge,
		PaymentMethod:  req.PaymentMethod,
	}, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// List handles GET /api/orders - lists orders, newest first
func (ctl *OrderController) List(c *gin.Context) {
	orders, err := ctl.orders.List(c.Query("status"), intQuery(c, "limit"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// Get handles GET /api/orders/:id
func (ctl *OrderController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctl.orders.Get(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateStatus handles PUT /api/orders/:id/status - one state-machine step
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
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

	order, err := ctl.orders.UpdateStatus(id, req.Status, req.ServedBy, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// Cancel handles POST /api/orders/:id/cancel - cancels and restores stock
func (ctl *OrderController) Cancel(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
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

	order, err := ctl.orders.Cancel(id, req.Reason, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
