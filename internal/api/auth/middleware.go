package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/movin/internal/admin"
)

// ModeProvider reports whether the installation is in admin mode.
type ModeProvider interface {
	Mode() admin.Mode
}

// RequireAdmin rejects requests unless admin mode is active.
func RequireAdmin(p ModeProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.Mode() != admin.ModeAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "forbidden",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
