package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/marisol-bistro/marisol-pos-api/config"
	"github.com/marisol-bistro/marisol-pos-api/controllers"
	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/logger"
	"github.com/marisol-bistro/marisol-pos-api/middleware"
	"github.com/marisol-bistro/marisol-pos-api/models"
	"github.com/marisol-bistro/marisol-pos-api/realtime"
	"github.com/marisol-bistro/marisol-pos-api/services"
)

// app bundles the long-lived components so shutdown can close them in order.
type app struct {
	bus       *events.Bus
	hub       *realtime.Hub
	audit     *services.AuditService
	orders    *services.OrderService
	inventory *services.InventoryService
	tables    *services.TableService
	integrity *services.IntegrityService
	backups   *services.BackupService
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(logger.Config{Env: cfg.GoEnv, Level: cfg.LogLevel})

	log.Info().Msg("starting Marisol POS API server")

	if err := config.ConnectDatabase(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	db := config.GetDB()
	if err := models.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	log.Info().Msg("database migration completed")

	a := buildApp(cfg)
	router := setupRouter(cfg, a)

	scheduler := cron.New()
	if cfg.IntegritySchedule != "" {
		if _, err := scheduler.AddFunc(cfg.IntegritySchedule, func() {
			if _, err := a.integrity.RunChecks(); err != nil {
				log.Error().Err(err).Msg("scheduled integrity run failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("invalid integrity schedule")
		}
	}
	if cfg.BackupSchedule != "" && cfg.UsesSQLite() {
		if _, err := scheduler.AddFunc(cfg.BackupSchedule, func() {
			if _, err := a.backups.Run(); err != nil {
				log.Error().Err(err).Msg("scheduled backup failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("invalid backup schedule")
		}
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown: stop accepting requests, then close the realtime
	// hub, the event bus and finally drain the audit queue.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	scheduler.Stop()
	a.hub.Close()
	a.bus.Close()
	a.audit.Close()
	log.Info().Msg("shutdown complete")
}

// buildApp constructs the event bus and every service around it. The bus is
// created once here and injected; nothing reaches for it globally.
func buildApp(cfg *config.Config) *app {
	db := config.GetDB()

	bus := events.NewBus()
	hub := realtime.NewHub(bus)
	audit := services.NewAuditService(db)

	var uploader services.SnapshotUploader
	if cfg.AWSS3Bucket != "" {
		s3Uploader, err := services.NewS3Uploader(cfg)
		if err != nil {
			log.Error().Err(err).Msg("S3 uploader unavailable, backups stay local")
		} else {
			uploader = s3Uploader
		}
	}

	inventory := services.NewInventoryService(db, bus, audit)
	tables := services.NewTableService(db, bus, audit)
	orders := services.NewOrderService(db, bus, inventory, tables, audit)

	return &app{
		bus:       bus,
		hub:       hub,
		audit:     audit,
		orders:    orders,
		inventory: inventory,
		tables:    tables,
		integrity: services.NewIntegrityService(db, audit),
		backups:   services.NewBackupService(db, cfg.BackupDir, cfg.BackupKeep, cfg.UsesSQLite(), uploader, audit),
	}
}

// setupRouter wires every endpoint. Auth is applied when an Auth0 domain is
// configured; without one (local development) requests run as "system".
func setupRouter(cfg *config.Config, a *app) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	orderCtl := controllers.NewOrderController(a.orders)
	inventoryCtl := controllers.NewInventoryController(a.inventory)
	tableCtl := controllers.NewTableController(a.tables)
	realtimeCtl := controllers.NewRealtimeController(a.hub, a.orders, a.inventory, a.tables)
	adminCtl := controllers.NewAdminController(a.audit, a.integrity, a.backups)
	userCtl := controllers.NewUserController(a.bus, a.audit)

	router.GET("/health", healthCheck)
	router.GET("/ws", realtimeCtl.ServeWS)

	api := router.Group("/api")
	if cfg.Auth0Domain != "" {
		api.Use(middleware.EnsureValidToken(cfg))
	}
	{
		api.POST("/orders", orderCtl.Create)
		api.GET("/orders", orderCtl.List)
		api.GET("/orders/:id", orderCtl.Get)
		api.PUT("/orders/:id/status", orderCtl.UpdateStatus)
		api.POST("/orders/:id/cancel", orderCtl.Cancel)

		api.GET("/inventory", inventoryCtl.List)
		api.POST("/inventory/bulk-adjust", inventoryCtl.BulkAdjust)
		api.POST("/inventory/:id/adjust", inventoryCtl.Adjust)
		api.POST("/inventory/:id/initialize", inventoryCtl.Initialize)
		api.GET("/inventory/:id/movements", inventoryCtl.Movements)

		api.GET("/tables", tableCtl.List)
		api.POST("/tables", tableCtl.Create)
		api.PUT("/tables/:id/status", tableCtl.SetStatus)

		api.POST("/reservations", tableCtl.CreateReservation)
		api.PUT("/reservations/:id/status", tableCtl.UpdateReservationStatus)

		api.GET("/products", controllers.ListProducts)
		api.POST("/products", controllers.CreateProduct)
		api.PUT("/products/:id", controllers.UpdateProduct)
		api.GET("/categories", controllers.ListCategories)
		api.POST("/categories", controllers.CreateCategory)

		api.GET("/sync/inventory", realtimeCtl.SyncInventory)
		api.GET("/sync/tables", realtimeCtl.SyncTables)
		api.GET("/sync/orders", realtimeCtl.SyncOrders)

		api.POST("/users", userCtl.Create)
		api.GET("/users/me", userCtl.GetMyProfile)
		api.POST("/session/login", userCtl.RecordLogin)
		api.POST("/session/logout", userCtl.RecordLogout)

		admin := api.Group("")
		if cfg.Auth0Domain != "" {
			admin.Use(middleware.RequireRole("admin", "manager"))
		}
		admin.GET("/audit-logs", adminCtl.ListAuditLogs)
		admin.POST("/integrity/run", adminCtl.RunIntegrityChecks)
		admin.GET("/integrity/reports", adminCtl.ListIntegrityReports)
		admin.POST("/backups", adminCtl.TriggerBackup)
		admin.GET("/backups", adminCtl.ListBackups)
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Marisol POS API is running",
	})
}
