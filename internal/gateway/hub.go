// Package gateway pushes signals to WebSocket clients. The Hub is a signal
// sink in-process and can also relay signals published to Redis by another
// scanner instance.
package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hama-scanner/internal/logger"
	"hama-scanner/internal/model"
)

const (
	defaultReplaySize = 500
	clientSendBuffer  = 256
)

// Hub tracks connected clients and fans signal envelopes out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	replay   *ReplayBuffer
	upgrader websocket.Upgrader
	now      func() time.Time
	log      zerolog.Logger
}

// NewHub creates a Hub that keeps the last replaySize envelopes for
// reconnecting clients. replaySize <= 0 uses the default.
func NewHub(replaySize int) *Hub {
	if replaySize <= 0 {
		replaySize = defaultReplaySize
	}
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
		log: logger.Component("gateway"),
	}
}

// Name implements model.SignalSink.
func (h *Hub) Name() string { return "ws" }

// Notify implements model.SignalSink. It never blocks on slow clients.
func (h *Hub) Notify(_ context.Context, sig model.Signal) error {
	data, err := sonic.Marshal(sig)
	if err != nil {
		return err
	}
	h.broadcast(sig.Symbol, data)
	return nil
}

// broadcast wraps data in an envelope, records it for replay and offers it
// to every client subscribed to symbol. Full client buffers drop the message.
func (h *Hub) broadcast(symbol string, data []byte) {
	now := h.now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	// Hand-built envelope; data is already JSON.
	buf := make([]byte, 0, len(symbol)+len(data)+96)
	buf = append(buf, `{"type":"signal","symbol":"`...)
	buf = append(buf, symbol...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')

	h.replay.Push(seq, symbol, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(symbol) {
			continue
		}
		select {
		case c.send <- buf:
		default:
			h.log.Debug().Msg("client buffer full, dropping envelope")
		}
	}
}

// Seq returns the last envelope sequence number.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket. Query parameters:
//
//	symbols   comma-separated filter (empty = all)
//	since_seq replay buffered envelopes with seq > since_seq
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	c := newClient(h, conn)
	if s := r.URL.Query().Get("symbols"); s != "" {
		c.setSymbols(strings.Split(s, ","))
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", count).Msg("ws client connected")

	if s := r.URL.Query().Get("since_seq"); s != "" {
		if since, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.backfill(h.replay.Since(since))
		}
	}

	go c.writePump()
	go c.readPump()
}

// removeClient unregisters c and closes its send channel once.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", count).Msg("ws client disconnected")
}

// RelayFromRedis subscribes to signals:* and broadcasts every payload.
// Blocks until ctx is cancelled.
func (h *Hub) RelayFromRedis(ctx context.Context, rdb *goredis.Client) {
	pubsub := rdb.PSubscribe(ctx, "signals:*")
	defer pubsub.Close()

	h.log.Info().Msg("relaying signals from redis pubsub")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			symbol := strings.TrimPrefix(msg.Channel, "signals:")
			h.broadcast(symbol, []byte(msg.Payload))
		}
	}
}
