package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marisol-bistro/marisol-pos-api/config"
	"github.com/marisol-bistro/marisol-pos-api/models"
	"github.com/marisol-bistro/marisol-pos-api/services"
)

// AdminController serves the audit, integrity and backup endpoints.
type AdminController struct {
	audit     *services.AuditService
	integrity *services.IntegrityService
	backups   *services.BackupService
}

// NewAdminController creates the controller with its services.
func NewAdminController(audit *services.AuditService, integrity *services.IntegrityService, backups *services.BackupService) *AdminController {
	return &AdminController{audit: audit, integrity: integrity, backups: backups}
}

// ListAuditLogs handles GET /api/audit-logs
func (ctl *AdminController) ListAuditLogs(c *gin.Context) {
	entries, err := ctl.audit.List(intQuery(c, "limit"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
	})
}

// RunIntegrityChecks handles POST /api/integrity/run - an on-demand run of
// the scheduled checks
func (ctl *AdminController) RunIntegrityChecks(c *gin.Context) {
	report, err := ctl.integrity.RunChecks()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

// ListIntegrityReports handles GET /api/integrity/reports
func (ctl *AdminController) ListIntegrityReports(c *gin.Context) {
	limit := intQuery(c, "limit")
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	db := config.GetDB()
	var reports []models.IntegrityReport
	if err := db.Order("id DESC").Limit(limit).Find(&reports).Error; err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reports,
	})
}

// TriggerBackup handles POST /api/backups - an on-demand snapshot
func (ctl *AdminController) TriggerBackup(c *gin.Context) {
	manifest, err := ctl.backups.Run()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    manifest,
	})
}

// ListBackups handles GET /api/backups
func (ctl *AdminController) ListBackups(c *gin.Context) {
	manifests, err := ctl.backups.List()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    manifests,
	})
}
