package controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/cafe-pos/realtime"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	AckID json.RawMessage `json:"ackId"`
}

type wsClient struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []wsFrame
}

func dial(t *testing.T, srv *httptest.Server, staffID uint, token string) *wsClient {
	t.Helper()
	q := url.Values{}
	q.Set("staffId", fmt.Sprint(staffID))
	q.Set("sessionToken", token)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + q.Encode()

	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(event string, data interface{}, ackID int) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(gin.H{"event": event, "data": data, "ackId": ackID}))
}

// expect returns the first frame of the given event matching match, keeping
// unrelated frames for later calls.
func (c *wsClient) expect(event string, match func(wsFrame) bool) wsFrame {
	c.t.Helper()
	for i, fr := range c.pending {
		if fr.Event == event && (match == nil || match(fr)) {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return fr
		}
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		var fr wsFrame
		err := c.conn.ReadJSON(&fr)
		require.NoError(c.t, err, "waiting for %s", event)
		if fr.Event == event && (match == nil || match(fr)) {
			return fr
		}
		c.pending = append(c.pending, fr)
	}
}

func (c *wsClient) ack(id int) realtime.AckPayload {
	c.t.Helper()
	fr := c.expect(realtime.EventAck, func(fr wsFrame) bool { return string(fr.AckID) == fmt.Sprint(id) })
	var payload realtime.AckPayload
	require.NoError(c.t, json.Unmarshal(fr.Data, &payload))
	return payload
}

func forTable(id uint) func(wsFrame) bool {
	return func(fr wsFrame) bool {
		var p struct {
			TableID uint `json:"tableId"`
		}
		return json.Unmarshal(fr.Data, &p) == nil && p.TableID == id
	}
}

func TestChannelRejectsInvalidSession(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()
	ana := app.login("ana@cafe.test")
	bea := app.login("bea@cafe.test")

	for _, tc := range []struct {
		name    string
		staffID uint
		token   string
	}{
		{"garbage token", ana.StaffID, "nope"},
		{"someone else's token", ana.StaffID, bea.Token},
		{"missing staff id", 0, ana.Token},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := dial(t, srv, tc.staffID, tc.token)
			fr := c.expect(realtime.EventAuthError, nil)
			assert.Contains(t, string(fr.Data), "message")

			require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
			_, _, err := c.conn.ReadMessage()
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
		})
	}

	// logging out invalidates the token for new connections too
	w, _ := app.do(http.MethodPost, "/logout", ana.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	c := dial(t, srv, ana.StaffID, ana.Token)
	c.expect(realtime.EventAuthError, nil)
}

func TestChannelLockAndStateFlow(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	admin := app.login("admin@cafe.test")
	ana := app.login("ana@cafe.test")
	bea := app.login("bea@cafe.test")
	table := app.createTable(admin.Token, "MESA-003")

	a := dial(t, srv, ana.StaffID, ana.Token)
	a.expect(realtime.EventUsersOnline, nil)
	b := dial(t, srv, bea.StaffID, bea.Token)
	online := a.expect(realtime.EventUsersOnline, func(fr wsFrame) bool {
		return strings.Contains(string(fr.Data), `"name":"Bea"`)
	})
	assert.Contains(t, string(online.Data), `"name":"Ana"`)

	a.send(realtime.EventLock, gin.H{"tableId": table.ID}, 1)
	assert.True(t, a.ack(1).OK)
	locked := b.expect(realtime.EventTableLocked, forTable(table.ID))
	assert.Contains(t, string(locked.Data), fmt.Sprintf(`"staffId":%d`, ana.StaffID))

	b.send(realtime.EventLock, gin.H{"tableId": table.ID}, 2)
	got := b.ack(2)
	assert.False(t, got.OK)
	assert.Equal(t, "locked by another user", got.Error)

	a.send(realtime.EventSetState, gin.H{
		"tableId": table.ID,
		"estado":  "occupied",
		"detalle": gin.H{"cliente": "Ana", "personas": 2},
	}, 3)
	got = a.ack(3)
	require.True(t, got.OK, got.Error)
	require.NotNil(t, got.Table)
	assert.Equal(t, "occupied", got.Table.State)

	changed := b.expect(realtime.EventTableChanged, forTable(table.ID))
	var payload realtime.ChangedPayload
	require.NoError(t, json.Unmarshal(changed.Data, &payload))
	assert.Equal(t, "occupied", payload.Estado)
	require.NotNil(t, payload.Detalle)
	assert.JSONEq(t, `{"cliente":"Ana","personas":2}`, string(*payload.Detalle))

	// freeing over HTTP clears the lock for everyone
	w, _ := app.do(http.MethodPatch, fmt.Sprintf("/tables/%d/state", table.ID), bea.Token, gin.H{"state": "available"})
	require.Equal(t, http.StatusOK, w.Code)
	a.expect(realtime.EventTableUnlocked, forTable(table.ID))
	b.expect(realtime.EventTableUnlocked, forTable(table.ID))

	b.send(realtime.EventLock, gin.H{"tableId": table.ID}, 4)
	assert.True(t, b.ack(4).OK)

	b.send(realtime.EventUnlock, gin.H{}, 5)
	got = b.ack(5)
	assert.False(t, got.OK)
	assert.Equal(t, "tableId is required", got.Error)

	b.send("mesas:dance", gin.H{"tableId": table.ID}, 6)
	assert.Equal(t, "unknown event", b.ack(6).Error)
}

func TestChannelSnapshotAndLogout(t *testing.T) {
	app := setupApp(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	ana := app.login("ana@cafe.test")
	bea := app.login("bea@cafe.test")

	a := dial(t, srv, ana.StaffID, ana.Token)
	a.send(realtime.EventLock, gin.H{"tableId": 11}, 1)
	require.True(t, a.ack(1).OK)

	// a late joiner learns about locks taken before it connected
	b := dial(t, srv, bea.StaffID, bea.Token)
	b.expect(realtime.EventTableLocked, forTable(11))

	w, _ := app.do(http.MethodPost, "/logout", ana.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	b.expect(realtime.EventUsersOnline, func(fr wsFrame) bool {
		return !strings.Contains(string(fr.Data), `"name":"Ana"`)
	})

	require.NoError(t, a.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := a.conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}

	w, env := app.do(http.MethodGet, "/users/online", bea.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), `"name":"Ana"`)
}
