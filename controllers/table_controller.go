package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marisol-bistro/marisol-pos-api/services"
)

// CreateTableRequest represents the request body for creating a table
type CreateTableRequest struct {
	TableNumber string  `json:"tableNumber" binding:"required"`
	Capacity    int     `json:"capacity" binding:"required,gt=0"`
	Section     *string `json:"section"`
}

// SetTableStatusRequest represents the request body for a manual override
type SetTableStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateReservationRequest represents the request body for a booking
type CreateReservationRequest struct {
	TableID      uint      `json:"tableId" binding:"required"`
	CustomerName string    `json:"customerName" binding:"required"`
	PartySize    int       `json:"partySize" binding:"required,gt=0"`
	ReservedFor  time.Time `json:"reservedFor" binding:"required"`
}

// UpdateReservationStatusRequest represents a reservation transition
type UpdateReservationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// TableController serves the table and reservation endpoints
type TableController struct {
	tables *services.TableService
}

// NewTableController creates the controller with its service.
func NewTableController(tables *services.TableService) *TableController {
	return &TableController{tables: tables}
}

// List handles GET /api/tables
func (ctl *TableController) List(c *gin.Context) {
	tables, err := ctl.tables.List()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    tables,
	})
}

// Create handles POST /api/tables
func (ctl *TableController) Create(c *gin.Context) {
	var req CreateTableRequest
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

	table, err := ctl.tables.Create(req.TableNumber, req.Capacity, req.Section, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    table,
	})
}

// SetStatus handles PUT /api/tables/:id/status - the manual override path,
// bypassing the order-driven state machine
func (ctl *TableController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SetTableStatusRequest
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

	table, err := ctl.tables.SetStatus(id, req.Status, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    table,
	})
}

// CreateReservation handles POST /api/reservations
func (ctl *TableController) CreateReservation(c *gin.Context) {
	var req CreateReservationRequest
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

	reservation, err := ctl.tables.CreateReservation(req.TableID, req.CustomerName, req.PartySize, req.ReservedFor, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    reservation,
	})
}

// UpdateReservationStatus handles PUT /api/reservations/:id/status
func (ctl *TableController) UpdateReservationStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateReservationStatusRequest
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

	reservation, err := ctl.tables.UpdateReservationStatus(id, req.Status, actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reservation,
	})
}
