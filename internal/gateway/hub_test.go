package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hama-scanner/internal/model"
)

type envelope struct {
	Type   string       `json:"type"`
	Symbol string       `json:"symbol"`
	Seq    int64        `json:"seq"`
	Data   model.Signal `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastsSignals(t *testing.T) {
	h := NewHub(10)
	srv := httptest.NewServer(h)
	defer srv.Close()

	all := dial(t, srv, "")
	onlyEth := dial(t, srv, "?symbols=ethusdt")
	waitClients(t, h, 2)

	require.NoError(t, h.Notify(context.Background(), model.Signal{ID: "1", Symbol: "BTCUSDT", Direction: model.DirectionUp}))
	require.NoError(t, h.Notify(context.Background(), model.Signal{ID: "2", Symbol: "ETHUSDT", Direction: model.DirectionDown}))

	env := readEnvelope(t, all)
	assert.Equal(t, "signal", env.Type)
	assert.Equal(t, int64(1), env.Seq)
	assert.Equal(t, "BTCUSDT", env.Data.Symbol)
	assert.Equal(t, "2", readEnvelope(t, all).Data.ID)

	env = readEnvelope(t, onlyEth)
	assert.Equal(t, "ETHUSDT", env.Symbol)
	assert.Equal(t, model.DirectionDown, env.Data.Direction)
}

func TestHub_BackfillSinceSeq(t *testing.T) {
	h := NewHub(10)
	srv := httptest.NewServer(h)
	defer srv.Close()

	for i, sym := range []string{"A", "B", "C"} {
		h.Notify(context.Background(), model.Signal{ID: string(rune('1' + i)), Symbol: sym})
	}
	assert.Equal(t, int64(3), h.Seq())

	conn := dial(t, srv, "?since_seq=1")
	assert.Equal(t, int64(2), readEnvelope(t, conn).Seq)
	assert.Equal(t, int64(3), readEnvelope(t, conn).Seq)
}

func TestHub_SubscribeMessage(t *testing.T) {
	h := NewHub(10)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "")
	waitClients(t, h, 1)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "SUBSCRIBE", "symbols": []string{"SOLUSDT"}}))

	// Ping round-trip guarantees the SUBSCRIBE was processed first.
	require.NoError(t, conn.WriteJSON(map[string]any{"ping": 42}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]any
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	h.Notify(context.Background(), model.Signal{ID: "x", Symbol: "BTCUSDT"})
	h.Notify(context.Background(), model.Signal{ID: "y", Symbol: "SOLUSDT"})
	assert.Equal(t, "y", readEnvelope(t, conn).Data.ID)
}

func TestHub_ClientDisconnect(t *testing.T) {
	h := NewHub(10)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv, "")
	waitClients(t, h, 1)
	conn.Close()
	waitClients(t, h, 0)

	assert.NoError(t, h.Notify(context.Background(), model.Signal{ID: "z", Symbol: "A"}))
	assert.Equal(t, "ws", h.Name())
}
