package gateway

import (
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Symbol filter; empty receives everything.
	subMu   sync.RWMutex
	symbols map[string]bool
}

// controlMsg is what clients send: SUBSCRIBE/UNSUBSCRIBE or a ping.
type controlMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, clientSendBuffer),
		hub:     h,
		symbols: make(map[string]bool),
	}
}

func (c *Client) wants(symbol string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[symbol]
}

func (c *Client) setSymbols(symbols []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			c.symbols[s] = true
		}
	}
}

func (c *Client) unsetSymbols(symbols []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, s := range symbols {
		delete(c.symbols, strings.ToUpper(strings.TrimSpace(s)))
	}
}

// backfill queues replayed envelopes the client is subscribed to.
func (c *Client) backfill(entries []replayEntry) {
	for _, e := range entries {
		if !c.wants(e.Symbol) {
			continue
		}
		select {
		case c.send <- e.Data:
		default:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg controlMsg
		if sonic.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch msg.Type {
		case "SUBSCRIBE":
			c.setSymbols(msg.Symbols)
		case "UNSUBSCRIBE":
			c.unsetSymbols(msg.Symbols)
		default:
			if msg.Ping > 0 {
				pong, _ := sonic.Marshal(map[string]any{
					"type":      "pong",
					"ping":      msg.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}
