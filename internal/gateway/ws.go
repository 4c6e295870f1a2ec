package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jaeyoon-dev/stockfeed/internal/broadcast"
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/quote"
	"github.com/jaeyoon-dev/stockfeed/internal/registry"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	sendBufferSize = 64
)

// WSServer upgrades per-symbol subscription connections and bridges them
// into the broadcaster.
type WSServer struct {
	hub      *broadcast.Hub
	registry *registry.Registry
	cache    *cache.Cache
	upgrader websocket.Upgrader
}

func NewWSServer(hub *broadcast.Hub, reg *registry.Registry, c *cache.Cache) *WSServer {
	return &WSServer{
		hub:      hub,
		registry: reg,
		cache:    c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard frontend is served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeQuotes handles GET /ws/quotes?symbol=SYM. The client receives one
// frame per refresh of that symbol, at the registry's tick interval, plus an
// immediate snapshot when the cache already has the symbol.
func (s *WSServer) ServeQuotes(c *gin.Context) {
	symbol := strings.ToUpper(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol query parameter is required"})
		return
	}
	if strings.Contains(symbol, ":") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exchange-prefixed instruments are not served by the polling path"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn)
	go client.writePump()

	s.registry.Register(symbol)
	s.hub.Subscribe(client, symbol)
	slog.Info("WebSocket subscribed", "conn", client.ID(), "symbol", symbol)

	if e, ok := s.cache.Get(symbol); ok {
		client.Send(broadcast.FrameFromEntry(symbol, e))
	}

	// Read loop exists only to notice the disconnect.
	go func() {
		defer func() {
			s.hub.Unsubscribe(client)
			client.Close()
			slog.Info("WebSocket disconnected", "conn", client.ID(), "symbol", symbol)
		}()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// wsClient adapts one gorilla connection to broadcast.Conn. Frames go
// through a buffered channel drained by writePump, so a slow consumer fails
// fast instead of blocking the broadcaster.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan quote.Frame
	closed bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan quote.Frame, sendBufferSize),
	}
}

func (c *wsClient) ID() string {
	return c.conn.RemoteAddr().String()
}

// Send queues a frame for delivery. A full buffer means the consumer cannot
// keep up; that is reported as a delivery failure and the hub drops the
// subscription.
func (c *wsClient) Send(f quote.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection %s is closed", c.ID())
	}
	select {
	case c.send <- f:
		return nil
	default:
		return fmt.Errorf("send buffer full for %s", c.ID())
	}
}

// Close stops the writePump, which closes the underlying connection. Safe to
// call from both the disconnect path and failed-delivery cleanup.
func (c *wsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
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
