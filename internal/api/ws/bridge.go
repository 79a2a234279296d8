package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

const (
	bridgeEndpoint = "wm"
	bridgeBuffer   = 256
)

// WindowRouter receives window notifications from the bridge.
// window.Router implements it.
type WindowRouter interface {
	Added(h types.WindowHandle, ownerPID int, bounds types.Rect, fields types.ConfigFields) (types.Rect, error)
	Removed(h types.WindowHandle)
	Reconfigured(h types.WindowHandle, bounds types.Rect, fields types.ConfigFields)
	Restacked(h, relative types.WindowHandle, order types.StackOrder)
}

// WindowMessage is sent by the window system
type WindowMessage struct {
	Type     string             `json:"type"`
	Handle   types.WindowHandle `json:"handle"`
	PID      int                `json:"pid,omitempty"`
	Bounds   types.Rect         `json:"bounds"`
	Fields   []string           `json:"fields,omitempty"`
	Relative types.WindowHandle `json:"relative,omitempty"`
	Order    string             `json:"order,omitempty"`
}

// Command is sent to the window system
type Command struct {
	Type       string             `json:"type"`
	Handle     types.WindowHandle `json:"handle,omitempty"`
	Bounds     *types.Rect        `json:"bounds,omitempty"`
	Position   *types.Point       `json:"position,omitempty"`
	Value      *float64           `json:"value,omitempty"`
	Visible    *bool              `json:"visible,omitempty"`
	Key        string             `json:"key,omitempty"`
	DurationMS int64              `json:"duration_ms,omitempty"`
}

var fieldNames = map[string]types.ConfigFields{
	"position":  types.ConfigPosition,
	"size":      types.ConfigSize,
	"opacity":   types.ConfigOpacity,
	"stacking":  types.ConfigStacking,
	"keep-size": types.ConfigKeepSize,
}

// ParseFields converts field names to a mask, ignoring unknown names
func ParseFields(names []string) types.ConfigFields {
	var f types.ConfigFields
	for _, n := range names {
		f |= fieldNames[n]
	}
	return f
}

type bridgeConn struct {
	conn *websocket.Conn
	send chan Command
	done chan struct{}
}

// Bridge connects the shell to the window system over one websocket. It
// feeds window notifications to the router and implements
// types.WindowSystem by sending commands back. Commands issued while no
// window system is connected are dropped.
type Bridge struct {
	router  WindowRouter
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	active *bridgeConn
}

// NewBridge creates a bridge. Window notifications are dropped until a
// router is set.
func NewBridge(logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{logger: logger.Named("bridge")}
}

// WithRouter sets the router window notifications are fed to. It must be
// called before the bridge serves connections.
func (b *Bridge) WithRouter(router WindowRouter) *Bridge {
	b.router = router
	return b
}

// WithMetrics adds metrics tracking to the bridge
func (b *Bridge) WithMetrics(metrics *monitoring.Metrics) *Bridge {
	b.metrics = metrics
	return b
}

// Connected reports whether a window system is attached
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil
}

// HandleConnection serves the window system. A new connection replaces the
// previous one.
func (b *Bridge) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	bc := &bridgeConn{conn: conn, send: make(chan Command, bridgeBuffer), done: make(chan struct{})}
	b.mu.Lock()
	if old := b.active; old != nil {
		b.logger.Warn("Window system reconnected, dropping previous connection")
		old.conn.Close()
	}
	b.active = bc
	b.mu.Unlock()
	b.metrics.IncWSConnections(bridgeEndpoint)
	b.logger.Info("Window system connected", zap.String("remote", conn.RemoteAddr().String()))

	go b.writePump(bc)
	b.readPump(bc)

	close(bc.done)
	b.mu.Lock()
	if b.active == bc {
		b.active = nil
	}
	b.mu.Unlock()
	conn.Close()
	b.metrics.DecWSConnections(bridgeEndpoint)
	b.logger.Info("Window system disconnected")
}

func (b *Bridge) readPump(bc *bridgeConn) {
	for {
		_, data, err := bc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Warn("Window system read error", zap.Error(err))
			}
			return
		}

		var msg WindowMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			b.logger.Warn("Malformed window message", zap.Error(err))
			continue
		}
		b.metrics.RecordWSMessage(bridgeEndpoint, "in", msg.Type)
		b.handle(bc, msg)
	}
}

func (b *Bridge) handle(bc *bridgeConn, msg WindowMessage) {
	if b.router == nil {
		b.logger.Warn("No router, dropping window message", zap.String("type", msg.Type))
		return
	}
	fields := ParseFields(msg.Fields)
	switch msg.Type {
	case "added":
		granted, err := b.router.Added(msg.Handle, msg.PID, msg.Bounds, fields)
		if err != nil {
			b.logger.Debug("Window left unmanaged", zap.Uint32("handle", uint32(msg.Handle)), zap.Error(err))
		}
		b.enqueue(bc, Command{Type: "configure", Handle: msg.Handle, Bounds: &granted})
	case "removed":
		b.router.Removed(msg.Handle)
	case "reconfigured":
		b.router.Reconfigured(msg.Handle, msg.Bounds, fields)
	case "restacked":
		order := types.StackAbove
		if msg.Order == "below" {
			order = types.StackBelow
		}
		b.router.Restacked(msg.Handle, msg.Relative, order)
	default:
		b.logger.Debug("Unknown window message", zap.String("type", msg.Type))
	}
}

func (b *Bridge) writePump(bc *bridgeConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-bc.done:
			return
		case cmd := <-bc.send:
			data, err := sonic.Marshal(cmd)
			if err != nil {
				b.logger.Error("Failed to encode command", zap.String("type", cmd.Type), zap.Error(err))
				continue
			}
			bc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := bc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				b.logger.Warn("Window system write failed", zap.Error(err))
				bc.conn.Close()
				return
			}
			b.metrics.RecordWSMessage(bridgeEndpoint, "out", cmd.Type)
		case <-ticker.C:
			bc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := bc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				bc.conn.Close()
				return
			}
		}
	}
}

func (b *Bridge) enqueue(bc *bridgeConn, cmd Command) {
	select {
	case bc.send <- cmd:
	default:
		b.logger.Warn("Window system too slow, dropping command", zap.String("type", cmd.Type))
		b.metrics.RecordDropped("bridge_slow")
	}
}

func (b *Bridge) command(cmd Command) {
	b.mu.Lock()
	bc := b.active
	b.mu.Unlock()
	if bc == nil {
		b.logger.Debug("No window system, dropping command", zap.String("type", cmd.Type))
		return
	}
	b.enqueue(bc, cmd)
}

// Configure implements types.WindowSystem
func (b *Bridge) Configure(h types.WindowHandle, bounds types.Rect) {
	b.command(Command{Type: "configure", Handle: h, Bounds: &bounds})
}

// Focus implements types.WindowSystem
func (b *Bridge) Focus(h types.WindowHandle) {
	b.command(Command{Type: "focus", Handle: h})
}

// SetOpacity implements types.WindowSystem
func (b *Bridge) SetOpacity(h types.WindowHandle, opacity float64) {
	b.command(Command{Type: "opacity", Handle: h, Value: &opacity})
}

// SetPosition implements types.WindowSystem
func (b *Bridge) SetPosition(h types.WindowHandle, p types.Point) {
	b.command(Command{Type: "position", Handle: h, Position: &p})
}

// SetScale implements types.WindowSystem
func (b *Bridge) SetScale(h types.WindowHandle, scale float64) {
	b.command(Command{Type: "scale", Handle: h, Value: &scale})
}

// SetVisible implements types.WindowSystem
func (b *Bridge) SetVisible(h types.WindowHandle, visible bool) {
	b.command(Command{Type: "visible", Handle: h, Visible: &visible})
}

// SendKey implements types.WindowSystem
func (b *Bridge) SendKey(h types.WindowHandle, key string) {
	b.command(Command{Type: "key", Handle: h, Key: key})
}

// SuspendSync implements types.WindowSystem
func (b *Bridge) SuspendSync(d time.Duration) {
	b.command(Command{Type: "suspend_sync", DurationMS: d.Milliseconds()})
}
