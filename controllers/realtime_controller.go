package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marisol-bistro/marisol-pos-api/realtime"
	"github.com/marisol-bistro/marisol-pos-api/services"
)

// RealtimeController serves the WebSocket upgrade and the pull-based sync
// endpoints reconnecting clients use instead of message replay.
type RealtimeController struct {
	hub       *realtime.Hub
	orders    *services.OrderService
	inventory *services.InventoryService
	tables    *services.TableService
}

// NewRealtimeController creates the controller with its collaborators.
func NewRealtimeController(hub *realtime.Hub, orders *services.OrderService, inventory *services.InventoryService, tables *services.TableService) *RealtimeController {
	return &RealtimeController{hub: hub, orders: orders, inventory: inventory, tables: tables}
}

// ServeWS handles GET /ws - upgrades the connection and hands it to the hub
func (ctl *RealtimeController) ServeWS(c *gin.Context) {
	ctl.hub.ServeWS(c.Writer, c.Request)
}

// SyncInventory handles GET /api/sync/inventory - full inventory state
func (ctl *RealtimeController) SyncInventory(c *gin.Context) {
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

// SyncTables handles GET /api/sync/tables - full table state
func (ctl *RealtimeController) SyncTables(c *gin.Context) {
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

// SyncOrders handles GET /api/sync/orders - every non-terminal order
func (ctl *RealtimeController) SyncOrders(c *gin.Context) {
	orders, err := ctl.orders.ListActive()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}
