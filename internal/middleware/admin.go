package middleware

import (
	"errors"
	"net/http"

	"storefront/internal/repository"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminRequired loads the authenticated user and checks the ADMIN role in the
// database, so a demotion takes effect before the access token expires.
func AdminRequired(users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetByID(c.Request.Context(), GetUserID(c))
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.WithError(err).Error("[admin] could not load user")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		if !u.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}
