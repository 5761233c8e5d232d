package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/marisol-bistro/marisol-pos-api/config"
	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/middleware"
	"github.com/marisol-bistro/marisol-pos-api/models"
	"github.com/marisol-bistro/marisol-pos-api/services"
)

// CreateUserRequest represents the request body for registering a staff
// profile for the authenticated identity
type CreateUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// UserController serves staff profile and session endpoints.
type UserController struct {
	bus   *events.Bus
	audit *services.AuditService
}

// NewUserController creates the controller with its collaborators.
func NewUserController(bus *events.Bus, audit *services.AuditService) *UserController {
	return &UserController{bus: bus, audit: audit}
}

// Create handles POST /api/users - registers a staff profile for the
// authenticated identity
func (ctl *UserController) Create(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	var req CreateUserRequest
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

	role := req.Role
	if role == "" {
		role = "waiter"
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    req.Name,
		Email:   req.Email,
		Role:    role,
	}

	db := config.GetDB()
	if err := db.Create(&user).Error; err != nil {
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "unique") || strings.Contains(errMsg, "duplicate") {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_EXISTS",
					"message": "A user with this identity or email already exists",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create user",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    user,
	})
}

// GetMyProfile handles GET /api/users/me
func (ctl *UserController) GetMyProfile(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User profile not found. Please create a profile first.",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// RecordLogin handles POST /api/session/login - the SPA reports a completed
// sign-in so dashboards can show who is on shift
func (ctl *UserController) RecordLogin(c *gin.Context) {
	ctl.recordSession(c, events.UserLogin, "login")
}

// RecordLogout handles POST /api/session/logout
func (ctl *UserController) RecordLogout(c *gin.Context) {
	ctl.recordSession(c, events.UserLogout, "logout")
}

func (ctl *UserController) recordSession(c *gin.Context, eventName, action string) {
	actor := actorFrom(c)

	ctl.bus.Publish(eventName, gin.H{"user_id": actor.UserID})
	ctl.audit.Record(services.AuditEntry{
		TableName: models.User{}.TableName(),
		Action:    action,
		Actor:     actor,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": action + " recorded",
	})
}
