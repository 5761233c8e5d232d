package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/marisol-bistro/marisol-pos-api/middleware"
	"github.com/marisol-bistro/marisol-pos-api/services"
)

// actorFrom builds the audit actor from the request context. Requests
// without a validated token are attributed to "system".
func actorFrom(c *gin.Context) services.Actor {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		userID = "system"
	}
	return services.Actor{UserID: userID, IPAddress: c.ClientIP()}
}

// respondServiceError maps service errors onto the JSON error envelope.
// Anything unrecognized is a 500; by then the transaction has already been
// rolled back.
func respondServiceError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError
	var stockErr *services.InsufficientStockError
	var trackErr *services.NotTrackableError
	var transitionErr *services.InvalidTransitionError
	var conflictErr *services.ConflictError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": validationErr.Message,
			},
		})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INSUFFICIENT_STOCK",
				"message": stockErr.Error(),
				"details": gin.H{
					"product_id": stockErr.ProductID,
					"available":  stockErr.Available,
					"requested":  stockErr.Requested,
				},
			},
		})
	case errors.As(err, &trackErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_TRACKABLE",
				"message": trackErr.Error(),
			},
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_STATUS",
				"message": transitionErr.Error(),
			},
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": notFoundErr.Error(),
			},
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": conflictErr.Message,
			},
		})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "An unexpected error occurred",
			},
		})
	}
}

// parseIDParam reads a numeric :id path parameter.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "invalid " + name + " parameter",
			},
		})
		return 0, false
	}
	return uint(id), true
}

// intQuery reads an optional integer query parameter, 0 when absent.
func intQuery(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}
