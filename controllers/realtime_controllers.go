package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/cafe-pos/realtime"
	"github.com/yeremiapane/cafe-pos/registry"
	"github.com/yeremiapane/cafe-pos/utils"
)

type RealtimeController struct {
	Hub      *realtime.Hub
	Presence *registry.Presence
	Secret   []byte
	upgrader websocket.Upgrader
}

func NewRealtimeController(hub *realtime.Hub, presence *registry.Presence, secret []byte, allowedOrigin string) *RealtimeController {
	return &RealtimeController{
		Hub:      hub,
		Presence: presence,
		Secret:   secret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Connect -> endpoint WebSocket; sesi divalidasi setelah upgrade supaya
// client selalu menerima auth:error sebelum koneksi ditutup
func (rc *RealtimeController) Connect(c *gin.Context) {
	ws, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.InfoLogger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	staffID, err := strconv.ParseUint(c.Query("staffId"), 10, 64)
	if err != nil || staffID == 0 {
		realtime.RejectConnection(ws, "staffId is required")
		return
	}
	claims, err := utils.ParseSessionToken(rc.Secret, c.Query("sessionToken"))
	if err != nil || claims.StaffID != uint(staffID) || !rc.Presence.Validate(claims.StaffID, claims.SessionID) {
		utils.InfoLogger.WithField("staff_id", staffID).Warn("realtime connection rejected")
		realtime.RejectConnection(ws, "invalid or expired session")
		return
	}

	identity := registry.Identity{
		DisplayName: c.DefaultQuery("displayName", claims.Name),
		RoleName:    c.DefaultQuery("roleName", claims.Role),
	}
	rc.Hub.Serve(ws, claims.StaffID, claims.SessionID, identity)
}
