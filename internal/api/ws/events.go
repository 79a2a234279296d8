package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	clientBuffer = 32

	eventsEndpoint = "events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // overlays are served from the device itself
	},
}

// overlayMessage is what UI overlays may send
type overlayMessage struct {
	Type string `json:"type"`
	PID  int    `json:"pid,omitempty"`
}

type overlay struct {
	conn *websocket.Conn
	send chan types.Notification
}

// Hub fans notifications out to every connected UI overlay. It implements
// notify.Listener.
type Hub struct {
	mu      sync.Mutex
	clients map[*overlay]struct{}
	sink    supervisor.EventSink
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHub creates an empty hub. Kill requests from overlays are posted to sink.
func NewHub(sink supervisor.EventSink, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*overlay]struct{}),
		sink:    sink,
		logger:  logger.Named("events"),
	}
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// OnNotification queues n for every overlay. Slow overlays lose messages
// rather than stall the publisher.
func (h *Hub) OnNotification(n types.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- n:
		default:
			h.logger.Warn("Overlay too slow, dropping notification", zap.String("kind", string(n.Kind)))
			h.metrics.RecordDropped("overlay_slow")
		}
	}
}

// Len returns the number of connected overlays
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every overlay
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

// HandleConnection upgrades the request and serves one overlay
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &overlay{conn: conn, send: make(chan types.Notification, clientBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncWSConnections(eventsEndpoint)
	h.logger.Debug("Overlay connected", zap.String("remote", conn.RemoteAddr().String()))

	done := make(chan struct{})
	go h.writePump(client, done)
	h.readPump(client)

	close(done)
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	conn.Close()
	h.metrics.DecWSConnections(eventsEndpoint)
	h.logger.Debug("Overlay disconnected")
}

func (h *Hub) readPump(c *overlay) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg overlayMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Overlay read error", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage(eventsEndpoint, "in", msg.Type)

		switch msg.Type {
		case "kill":
			if h.sink == nil || !h.sink.Post(types.Event{Kind: types.EventKillRequest, PID: msg.PID}) {
				h.logger.Warn("Dropping kill request", zap.Int("pid", msg.PID))
			}
		case "ping":
		default:
			h.logger.Debug("Unknown overlay message", zap.String("type", msg.Type))
		}
	}
}

func (h *Hub) writePump(c *overlay, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case n := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(n); err != nil {
				h.logger.Debug("Overlay write failed", zap.Error(err))
				c.conn.Close()
				return
			}
			h.metrics.RecordWSMessage(eventsEndpoint, "out", string(n.Kind))
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
