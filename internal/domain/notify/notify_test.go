package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

type recorder struct {
	mu   sync.Mutex
	seen []types.Notification
}

func (r *recorder) OnNotification(n types.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *recorder) all() []types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notification(nil), r.seen...)
}

func TestBusPublish(t *testing.T) {
	bus := NewBus(nil)
	a, b := &recorder{}, &recorder{}
	bus.Subscribe(a)
	unsub := bus.Subscribe(b)
	assert.Equal(t, 2, bus.Len())

	bus.Publish(types.Notification{Kind: types.NotifyAppCrashed, App: "Browser", PID: 42})

	require.Len(t, a.all(), 1)
	n := a.all()[0]
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Timestamp.IsZero())
	assert.Equal(t, types.NotifyAppCrashed, n.Kind)
	assert.Equal(t, n, b.all()[0])

	unsub()
	unsub()
	assert.Equal(t, 1, bus.Len())

	bus.Publish(types.Notification{Kind: types.NotifyBackKeyAvailable, Visible: types.Bool(true)})
	assert.Len(t, a.all(), 2)
	assert.Len(t, b.all(), 1)
}

func TestListenerFunc(t *testing.T) {
	bus := NewBus(nil)
	var got types.NotificationKind
	bus.Subscribe(ListenerFunc(func(n types.Notification) { got = n.Kind }))

	bus.Publish(types.Notification{Kind: types.NotifyLauncherVisibility})
	assert.Equal(t, types.NotifyLauncherVisibility, got)
}

func TestWebhookDelivers(t *testing.T) {
	received := make(chan types.Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n types.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err == nil {
			received <- n
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: time.Second}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hook.Run(ctx)

	bus := NewBus(nil)
	bus.Subscribe(hook)
	bus.Publish(types.Notification{Kind: types.NotifyAppEvicted, App: "Browser", Reason: "low memory"})

	select {
	case n := <-received:
		assert.Equal(t, types.NotifyAppEvicted, n.Kind)
		assert.Equal(t, "low memory", n.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not called")
	}
}

func TestWebhookDropsWhenFull(t *testing.T) {
	hook := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:1", QueueSize: 1}, nil)
	hook.OnNotification(types.Notification{Kind: types.NotifyAppStarting})
	hook.OnNotification(types.Notification{Kind: types.NotifyAppStarting})
	assert.Len(t, hook.queue, 1)
}

func TestWebhookSkipsFailingEndpoint(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook := NewWebhook(WebhookConfig{URL: srv.URL, Timeout: time.Second, Failures: 1, Cooldown: time.Hour}, nil)
	for i := 0; i < 3; i++ {
		hook.OnNotification(types.Notification{Kind: types.NotifyPressureChanged})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hook.Run(ctx)

	require.Eventually(t, func() bool { return len(hook.queue) == 0 }, 5*time.Second, 10*time.Millisecond)
	// the last notification may still be in flight when the queue drains
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}
