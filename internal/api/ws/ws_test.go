package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilixi/ilixi-sub001/internal/domain/catalog"
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/domain/window"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
	"github.com/ilixi/ilixi-sub001/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func dial(t *testing.T, handler gin.HandlerFunc) *websocket.Conn {
	t.Helper()
	r := gin.New()
	r.GET("/ws", handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readCommand(t *testing.T, conn *websocket.Conn) Command {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var cmd Command
	require.NoError(t, sonic.Unmarshal(data, &cmd))
	return cmd
}

func TestHubBroadcast(t *testing.T) {
	events := testutil.NewEventCollector(4)
	hub := NewHub(events, nil)
	first := dial(t, hub.HandleConnection)
	second := dial(t, hub.HandleConnection)

	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, 10*time.Millisecond)

	hub.OnNotification(types.Notification{Kind: types.NotifyAppStarting, App: "Browser", PID: 7})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var n types.Notification
		require.NoError(t, conn.ReadJSON(&n))
		assert.Equal(t, types.NotifyAppStarting, n.Kind)
		assert.Equal(t, "Browser", n.App)
		assert.Equal(t, 7, n.PID)
	}
}

func TestHubKillRequest(t *testing.T) {
	events := testutil.NewEventCollector(4)
	hub := NewHub(events, nil)
	conn := dial(t, hub.HandleConnection)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "kill", "pid": 42}))

	ev := events.Next(t)
	assert.Equal(t, types.EventKillRequest, ev.Kind)
	assert.Equal(t, 42, ev.PID)
}

func TestHubDisconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dial(t, hub.HandleConnection)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func setupBridge(t *testing.T) (*Bridge, *supervisor.Supervisor, *testutil.EventCollector, *websocket.Conn) {
	t.Helper()
	cat := catalog.New(&types.AppDefinition{Name: "Browser"})
	sup := supervisor.New(cat, testutil.NewFakeSpawner(), nil)
	events := testutil.NewEventCollector(16)
	router := window.NewRouter(sup, events, window.DefaultGeometry(800, 480, 40, 200), nil)

	bridge := NewBridge(nil).WithRouter(router)
	conn := dial(t, bridge.HandleConnection)
	require.Eventually(t, bridge.Connected, time.Second, 10*time.Millisecond)
	return bridge, sup, events, conn
}

func TestBridgeAddedIsConfigured(t *testing.T) {
	_, sup, events, conn := setupBridge(t)
	_, inst, err := sup.Start("Browser")
	require.NoError(t, err)

	msg := WindowMessage{
		Type:   "added",
		Handle: 3,
		PID:    inst.PID,
		Bounds: types.Rect{X: 5, Y: 5, W: 10, H: 10},
		Fields: []string{"position", "size"},
	}
	data, err := sonic.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	cmd := readCommand(t, conn)
	assert.Equal(t, "configure", cmd.Type)
	assert.Equal(t, types.WindowHandle(3), cmd.Handle)
	require.NotNil(t, cmd.Bounds)
	assert.Equal(t, types.Rect{X: 0, Y: 40, W: 800, H: 440}, *cmd.Bounds)

	ev := events.Next(t)
	assert.Equal(t, types.EventWindowAdded, ev.Kind)
	assert.Equal(t, inst.PID, ev.PID)
}

func TestBridgeUnknownOwnerKeepsBounds(t *testing.T) {
	_, _, _, conn := setupBridge(t)

	requested := types.Rect{X: 1, Y: 2, W: 3, H: 4}
	data, err := sonic.Marshal(WindowMessage{Type: "added", Handle: 9, PID: 99999, Bounds: requested})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	cmd := readCommand(t, conn)
	require.NotNil(t, cmd.Bounds)
	assert.Equal(t, requested, *cmd.Bounds)
}

func TestBridgeCommands(t *testing.T) {
	bridge, _, _, conn := setupBridge(t)

	bridge.SetOpacity(4, 0.5)
	cmd := readCommand(t, conn)
	assert.Equal(t, "opacity", cmd.Type)
	require.NotNil(t, cmd.Value)
	assert.InDelta(t, 0.5, *cmd.Value, 1e-9)

	bridge.SetVisible(4, false)
	cmd = readCommand(t, conn)
	assert.Equal(t, "visible", cmd.Type)
	require.NotNil(t, cmd.Visible)
	assert.False(t, *cmd.Visible)

	bridge.SuspendSync(500 * time.Millisecond)
	cmd = readCommand(t, conn)
	assert.Equal(t, "suspend_sync", cmd.Type)
	assert.Equal(t, int64(500), cmd.DurationMS)
}

func TestBridgeWithoutConnectionDrops(t *testing.T) {
	bridge := NewBridge(nil)
	assert.False(t, bridge.Connected())
	assert.NotPanics(t, func() {
		bridge.Focus(1)
		bridge.SendKey(1, "back")
	})
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want types.ConfigFields
	}{
		{name: "empty", in: nil, want: 0},
		{name: "position and size", in: []string{"position", "size"}, want: types.ConfigPosition | types.ConfigSize},
		{name: "unknown ignored", in: []string{"keep-size", "shape"}, want: types.ConfigKeepSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFields(tt.in))
		})
	}
}
