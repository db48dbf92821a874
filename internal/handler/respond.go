package handler

import (
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/auth"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// respondError maps service and repository errors to HTTP responses.
// Anything unrecognised is logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	switch {
	case errors.As(err, &svcErr):
		status := http.StatusBadRequest
		if svcErr.Code == service.CodeInvalidRequest || svcErr.Code == service.CodeInsufficientBalance {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": svcErr.Message, "code": svcErr.Code})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, auth.ErrInitDataInvalid),
		errors.Is(err, auth.ErrInitDataExpired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidCreds):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTelegramDisabled), errors.Is(err, service.ErrUploadsDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("[http] internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
