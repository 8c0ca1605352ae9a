package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

// writeError maps engine errors onto HTTP status codes. Unknown errors are
// reported as 500 without their message.
func writeError(c *gin.Context, err error) {
	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		authz      *domain.AuthorizationError
		notFound   *domain.NotFoundError
		state      *domain.StateError
		transient  *domain.TransientError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validation.Field})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"code":           "booking_conflict",
			"conflicting_id": conflict.ConflictingID,
		})
	case errors.As(err, &authz):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &state):
		c.JSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"code":           "invalid_transition",
			"current_status": string(state.Current),
		})
	case errors.As(err, &transient):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
