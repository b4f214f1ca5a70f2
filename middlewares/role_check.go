package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cafe-pos/utils"
)

// RequireRole -> hanya role yang disebut yang boleh lewat; admin selalu boleh
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed["admin"] = true

	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}
		if name, _ := role.(string); !allowed[name] {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("role %q may not access this resource", name))
			c.Abort()
			return
		}
		c.Next()
	}
}
