package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/cafe-pos/models"
	"github.com/yeremiapane/cafe-pos/registry"
	"github.com/yeremiapane/cafe-pos/services"
	"github.com/yeremiapane/cafe-pos/utils"
)

var errMissingTableID = errors.New("tableId is required")

// TableStateWriter is the part of the table store the hub drives.
type TableStateWriter interface {
	SetState(ctx context.Context, id uint, state string, detail json.RawMessage, expectedUpdatedAt *time.Time) (*models.Table, error)
}

// Hub menampung semua client yang terhubung dan mengorkestrasi lock, presence
// dan perubahan status meja.
type Hub struct {
	tables   TableStateWriter
	locks    *registry.TableLocks
	presence *registry.Presence

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(tables TableStateWriter, locks *registry.TableLocks, presence *registry.Presence) *Hub {
	return &Hub{
		tables:   tables,
		locks:    locks,
		presence: presence,
		clients:  make(map[*Client]struct{}),
	}
}

// Serve runs an authenticated connection until it closes. A session that
// ended after the handshake was validated gets auth:error instead.
func (h *Hub) Serve(conn *websocket.Conn, staffID uint, sessionID string, identity registry.Identity) {
	c := newClient(h, conn, staffID, sessionID, identity)
	if err := h.Register(c); err != nil {
		c.logger().WithError(err).Warn("realtime connection rejected")
		RejectConnection(conn, err.Error())
		return
	}
	go c.writePump()
	c.readPump()
}

// RejectConnection -> kirim auth:error lalu tutup koneksi, tanpa retry
func RejectConnection(conn *websocket.Conn, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(Message{Event: EventAuthError, Data: AuthErrorPayload{Message: message}})
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
	conn.Close()
}

// Register attaches the client to its session, announces the online list
// and preloads the newcomer with every lock currently held.
func (h *Hub) Register(c *Client) error {
	// attach and insert under h.mu so a concurrent DisconnectStaff either
	// sees the client or the session is already gone
	h.mu.Lock()
	if _, err := h.presence.Attach(c.StaffID, c.SessionID, c.ID, c.Identity); err != nil {
		h.mu.Unlock()
		return err
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	utils.RealtimeConnections.Inc()

	c.logger().Info("realtime client connected")
	c.preload(h.lockSnapshot())
	h.BroadcastOnlineUsers()
	return nil
}

func (h *Hub) lockSnapshot() [][]byte {
	held := h.locks.Snapshot()
	ids := make([]uint, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	frames := make([][]byte, 0, len(ids))
	for _, id := range ids {
		data, err := json.Marshal(Message{Event: EventTableLocked, Data: LockedPayload{TableID: id, By: held[id]}})
		if err != nil {
			utils.ErrorLogger.WithError(err).Error("marshal realtime message")
			continue
		}
		frames = append(frames, data)
	}
	return frames
}

// Unregister is idempotent.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.close()
	utils.RealtimeConnections.Dec()
	c.logger().Info("realtime client disconnected")
	if h.presence.Detach(c.StaffID, c.ID) {
		h.BroadcastOnlineUsers()
	}
}

// DisconnectStaff closes every connection of a staff member, used on
// logout and revoke.
func (h *Hub) DisconnectStaff(staffID uint) {
	h.mu.RLock()
	var targets []*Client
	for c := range h.clients {
		if c.StaffID == staffID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.Unregister(c)
	}
	h.BroadcastOnlineUsers()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) BroadcastOnlineUsers() {
	h.broadcast(Message{Event: EventUsersOnline, Data: OnlineUsersPayload{List: h.presence.Online()}})
}

// LockTable acquires the advisory lock and announces it.
func (h *Hub) LockTable(tableID uint, holder registry.LockHolder) error {
	if tableID == 0 {
		return errMissingTableID
	}
	if err := h.locks.Acquire(tableID, holder); err != nil {
		return err
	}
	h.broadcast(Message{Event: EventTableLocked, Data: LockedPayload{TableID: tableID, By: holder}})
	return nil
}

func (h *Hub) UnlockTable(tableID, staffID uint) error {
	if tableID == 0 {
		return errMissingTableID
	}
	if err := h.locks.Release(tableID, staffID); err != nil {
		return err
	}
	h.broadcast(Message{Event: EventTableUnlocked, Data: UnlockedPayload{TableID: tableID}})
	return nil
}

// ApplyTableState writes the state, announces it and, for available, drops
// whatever lock the table had.
func (h *Hub) ApplyTableState(ctx context.Context, tableID uint, state string, detail json.RawMessage, expectedUpdatedAt *time.Time) (*models.Table, error) {
	if tableID == 0 {
		return nil, errMissingTableID
	}
	table, err := h.tables.SetState(ctx, tableID, state, detail, expectedUpdatedAt)
	if err != nil {
		return nil, err
	}
	h.announceChanged(table)
	if table.State == models.TableAvailable {
		h.locks.ForceRelease(table.ID)
		h.broadcast(Message{Event: EventTableUnlocked, Data: UnlockedPayload{TableID: table.ID}})
	}
	return table, nil
}

// AnnounceCreated -> meja baru atau hasil edit
func (h *Hub) AnnounceCreated(table *models.Table) {
	h.announceChanged(table)
}

// AnnounceRemoved broadcasts a deleted table and drops its lock.
func (h *Hub) AnnounceRemoved(tableID uint) {
	h.releaseIfHeld(tableID)
	h.broadcast(Message{Event: EventTableChanged, Data: ChangedPayload{TableID: tableID, Estado: models.TableDeleted}})
}

// AnnounceLayout broadcasts every table a bulk generation touched.
func (h *Hub) AnnounceLayout(result *services.LayoutResult) {
	if result == nil {
		return
	}
	for _, id := range result.Retired {
		h.AnnounceRemoved(id)
	}
	for i := range result.Reactivated {
		h.releaseIfHeld(result.Reactivated[i].ID)
		h.announceChanged(&result.Reactivated[i])
	}
	for i := range result.Created {
		h.announceChanged(&result.Created[i])
	}
}

// HandleCommand answers one inbound frame with exactly one ack.
func (h *Hub) HandleCommand(ctx context.Context, c *Client, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.sendTo(c, Message{Event: EventAck, Data: AckPayload{OK: false, Error: "malformed message"}})
		return
	}
	h.presence.Touch(c.StaffID)

	var ack AckPayload
	switch cmd.Event {
	case EventLock, EventUnlock, EventSetState:
		ack = h.runTableCommand(ctx, c, cmd)
	default:
		ack = AckPayload{OK: false, Error: "unknown event"}
	}
	h.sendTo(c, Message{Event: EventAck, Data: ack, AckID: cmd.AckID})
}

func (h *Hub) runTableCommand(ctx context.Context, c *Client, cmd command) AckPayload {
	var payload tableCommand
	if len(cmd.Data) == 0 || json.Unmarshal(cmd.Data, &payload) != nil {
		return AckPayload{OK: false, Error: "invalid payload"}
	}
	if payload.TableID == 0 {
		return AckPayload{OK: false, Error: errMissingTableID.Error()}
	}

	log := c.logger().WithFields(logrus.Fields{"event": cmd.Event, "table_id": payload.TableID})
	switch cmd.Event {
	case EventLock:
		holder := registry.LockHolder{StaffID: c.StaffID, Name: c.Identity.DisplayName}
		if err := h.LockTable(payload.TableID, holder); err != nil {
			log.WithError(err).Debug("lock rejected")
			return AckPayload{OK: false, Error: err.Error()}
		}
		return AckPayload{OK: true}
	case EventUnlock:
		if err := h.UnlockTable(payload.TableID, c.StaffID); err != nil {
			log.WithError(err).Debug("unlock rejected")
			return AckPayload{OK: false, Error: err.Error()}
		}
		return AckPayload{OK: true}
	default:
		table, err := h.ApplyTableState(ctx, payload.TableID, payload.Estado, payload.Detalle, payload.ExpectedUpdatedAt)
		if err != nil {
			log.WithError(err).Warn("set table state failed")
			return AckPayload{OK: false, Error: commandError(err)}
		}
		return AckPayload{OK: true, Table: table}
	}
}

func (h *Hub) announceChanged(table *models.Table) {
	h.broadcast(Message{Event: EventTableChanged, Data: ChangedPayload{
		TableID: table.ID,
		Estado:  table.State,
		Detalle: table.Detail,
		Table:   table,
	}})
}

func (h *Hub) releaseIfHeld(tableID uint) {
	if h.locks.ForceRelease(tableID) {
		h.broadcast(Message{Event: EventTableUnlocked, Data: UnlockedPayload{TableID: tableID}})
	}
}

func (h *Hub) sendTo(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("marshal realtime message")
		return
	}
	if !c.enqueue(data) {
		h.Unregister(c)
	}
}

// broadcast -> kirim ke semua client; client yang antreannya penuh diputus
func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("marshal realtime message")
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.clients {
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	count := len(h.clients)
	h.mu.RUnlock()

	utils.InfoLogger.WithFields(logrus.Fields{"event": msg.Event, "clients": count}).Debug("broadcast")
	for _, c := range slow {
		utils.InfoLogger.WithField("conn_id", c.ID).Warn("dropping slow realtime client")
		h.Unregister(c)
	}
}

// commandError hides storage details from channel clients.
func commandError(err error) string {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, services.ErrTableNotFound),
		errors.Is(err, services.ErrStaleTable),
		errors.Is(err, errMissingTableID):
		return err.Error()
	default:
		return "internal error"
	}
}
