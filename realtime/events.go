package realtime

import (
	"encoding/json"
	"time"

	"github.com/yeremiapane/cafe-pos/models"
	"github.com/yeremiapane/cafe-pos/registry"
	"gorm.io/datatypes"
)

// Event types
const (
	EventAuthError     = "auth:error"
	EventUsersOnline   = "users:online"
	EventTableLocked   = "mesas:locked"
	EventTableUnlocked = "mesas:unlocked"
	EventTableChanged  = "mesas:changed"
	EventAck           = "ack"

	// client -> server
	EventLock     = "mesas:lock"
	EventUnlock   = "mesas:unlock"
	EventSetState = "mesas:setEstado"
)

type Message struct {
	Event string          `json:"event"`
	Data  interface{}     `json:"data"`
	AckID json.RawMessage `json:"ackId,omitempty"`
}

// command is an inbound client frame; ackId is echoed back untouched.
type command struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	AckID json.RawMessage `json:"ackId"`
}

type tableCommand struct {
	TableID           uint            `json:"tableId"`
	Estado            string          `json:"estado"`
	Detalle           json.RawMessage `json:"detalle"`
	ExpectedUpdatedAt *time.Time      `json:"expectedUpdatedAt"`
}

type AuthErrorPayload struct {
	Message string `json:"message"`
}

type OnlineUsersPayload struct {
	List []registry.OnlineUser `json:"list"`
}

type LockedPayload struct {
	TableID uint                `json:"tableId"`
	By      registry.LockHolder `json:"by"`
}

type UnlockedPayload struct {
	TableID uint `json:"tableId"`
}

// ChangedPayload -> estado "deleted" untuk meja yang dihapus
type ChangedPayload struct {
	TableID uint            `json:"tableId"`
	Estado  string          `json:"estado"`
	Detalle *datatypes.JSON `json:"detalle"`
	Table   *models.Table   `json:"table,omitempty"`
}

type AckPayload struct {
	OK    bool          `json:"ok"`
	Error string        `json:"error,omitempty"`
	Table *models.Table `json:"table,omitempty"`
}
