package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/config"
	"github.com/Kazxye/Loot-Logger-Albion-Online/model"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(config.SecurityConfig{}, Sources{
		Stats: func() model.SessionStats {
			return model.SessionStats{TotalLoots: 3, Status: model.StatusOnline}
		},
		History: func() []model.LootEvent {
			return []model.LootEvent{{ID: "a", ItemID: "T4_ORE"}}
		},
	}, zap.NewNop())

	r := gin.New()
	r.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg.Type, msg.Payload
}

func TestServeWS_SendsStateOnConnect(t *testing.T) {
	_, url := newTestHub(t)
	conn := dial(t, url)

	typ, payload := readMessage(t, conn)
	assert.Equal(t, "stats", typ)
	var stats model.SessionStats
	require.NoError(t, json.Unmarshal(payload, &stats))
	assert.Equal(t, int64(3), stats.TotalLoots)

	typ, payload = readMessage(t, conn)
	assert.Equal(t, "history", typ)
	var history []model.LootEvent
	require.NoError(t, json.Unmarshal(payload, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "a", history[0].ID)
}

func TestBroadcast_ReachesAllSessions(t *testing.T) {
	hub, url := newTestHub(t)
	conns := []*websocket.Conn{dial(t, url), dial(t, url)}

	for _, conn := range conns {
		readMessage(t, conn) // stats
		readMessage(t, conn) // history
	}
	require.Eventually(t, func() bool { return hub.Count() == 2 },
		time.Second, 5*time.Millisecond)

	hub.Broadcast("new_loot", model.LootEvent{ID: "b", ItemID: "T5_HIDE"})

	for _, conn := range conns {
		typ, payload := readMessage(t, conn)
		assert.Equal(t, "new_loot", typ)
		var ev model.LootEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		assert.Equal(t, "b", ev.ID)
	}
}

func TestRequestHistory(t *testing.T) {
	_, url := newTestHub(t)
	conn := dial(t, url)
	readMessage(t, conn) // stats
	readMessage(t, conn) // history

	require.NoError(t, conn.WriteJSON(Message{Type: "request_history"}))

	typ, payload := readMessage(t, conn)
	assert.Equal(t, "history", typ)
	var history []model.LootEvent
	require.NoError(t, json.Unmarshal(payload, &history))
	require.Len(t, history, 1)
}

func TestDisconnect_Unregisters(t *testing.T) {
	hub, url := newTestHub(t)
	conn := dial(t, url)
	readMessage(t, conn)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestOriginCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(config.SecurityConfig{AllowedOrigins: []string{"http://allowed.local"}},
		Sources{
			Stats:   func() model.SessionStats { return model.SessionStats{} },
			History: func() []model.LootEvent { return nil },
		}, zap.NewNop())

	r := gin.New()
	r.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := map[string][]string{"Origin": {"http://evil.local"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}

	header["Origin"] = []string{"http://allowed.local"}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
