package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Publisher is implemented by anything that accepts notifications
type Publisher interface {
	Publish(n types.Notification)
}

// Listener receives notifications. OnNotification must return quickly.
type Listener interface {
	OnNotification(n types.Notification)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(n types.Notification)

// OnNotification calls f(n)
func (f ListenerFunc) OnNotification(n types.Notification) { f(n) }

// Bus delivers notifications to listeners in subscription order
type Bus struct {
	mu        sync.RWMutex
	listeners map[string]Listener
	order     []string
	clock     func() time.Time
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		listeners: make(map[string]Listener),
		clock:     time.Now,
		logger:    logger.Named("notify"),
	}
}

// WithMetrics adds metrics tracking to the bus
func (b *Bus) WithMetrics(metrics *monitoring.Metrics) *Bus {
	b.metrics = metrics
	return b
}

// Subscribe registers l and returns a function that removes it
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	id := uuid.NewString()

	b.mu.Lock()
	b.listeners[id] = l
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.listeners[id]; !ok {
			return
		}
		delete(b.listeners, id)
		for i, o := range b.order {
			if o == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish stamps n and delivers it to every listener
func (b *Bus) Publish(n types.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = b.clock()
	}

	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.RUnlock()

	b.logger.Debug("Notification",
		zap.String("kind", string(n.Kind)),
		zap.String("app", n.App),
		zap.Int("pid", n.PID))
	b.metrics.RecordNotification(string(n.Kind))

	for _, l := range listeners {
		l.OnNotification(n)
	}
}

// Len returns the number of listeners
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
