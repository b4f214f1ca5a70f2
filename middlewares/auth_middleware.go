package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cafe-pos/registry"
	"github.com/yeremiapane/cafe-pos/utils"
)

// Context keys set by SessionAuth.
const (
	CtxStaffID   = "staff_id"
	CtxRole      = "role"
	CtxSessionID = "session_id"
	CtxStaffName = "staff_name"
)

// SessionAuth accepts a bearer session token only while its session is the
// active one in the presence registry.
func SessionAuth(secret []byte, presence *registry.Presence) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Authorization header missing"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := utils.ParseSessionToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil || claims.StaffID == 0 {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid session token"))
			c.Abort()
			return
		}
		if !presence.Validate(claims.StaffID, claims.SessionID) {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("session is no longer active"))
			c.Abort()
			return
		}
		presence.Touch(claims.StaffID)

		c.Set(CtxStaffID, claims.StaffID)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxSessionID, claims.SessionID)
		c.Set(CtxStaffName, claims.Name)
		c.Next()
	}
}
