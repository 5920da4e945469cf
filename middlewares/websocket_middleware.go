package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/qr-dine/utils"
)

// WebSocketAuthMiddleware reads the token from the query string (browsers
// cannot set headers on websocket upgrades) and leaves anonymous clients
// through; room-level checks happen in the handler.
func WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.Next()
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(401)
			return
		}

		c.Set("role", claims.Role)
		c.Set("user_id", claims.UserID)

		c.Next()
	}
}
