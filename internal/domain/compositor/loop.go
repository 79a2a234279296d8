package compositor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// ErrLoopClosed is returned by Call once the loop has stopped
var ErrLoopClosed = errors.New("compositor loop closed")

const (
	DefaultQueueSize = 256
	DefaultFrame     = 16 * time.Millisecond
)

type item struct {
	ev types.Event
	fn func()
}

// Loop is the single goroutine that owns the compositor. Window and process
// events, API closures, pressure levels and animation frames are all
// serialized through it.
type Loop struct {
	comp     *Compositor
	queue    chan item
	pressure <-chan types.PressureLevel
	frame    time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop creates a loop for comp with a queue of size events
func NewLoop(comp *Compositor, size int, frame time.Duration, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	if frame <= 0 {
		frame = DefaultFrame
	}
	return &Loop{
		comp:   comp,
		queue:  make(chan item, size),
		frame:  frame,
		logger: logger.Named("loop"),
		done:   make(chan struct{}),
	}
}

// WithPressure sets the channel pressure levels arrive on
func (l *Loop) WithPressure(levels <-chan types.PressureLevel) *Loop {
	l.pressure = levels
	return l
}

// WithMetrics adds metrics tracking to the loop
func (l *Loop) WithMetrics(metrics *monitoring.Metrics) *Loop {
	l.metrics = metrics
	return l
}

// Post queues ev without blocking. It reports false when the queue is full
// or the loop has stopped.
func (l *Loop) Post(ev types.Event) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- item{ev: ev}:
		return true
	default:
		l.metrics.RecordDropped("queue_full")
		return false
	}
}

// Send queues ev, waiting while the queue is full. It reports false once the
// loop has stopped.
func (l *Loop) Send(ev types.Event) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- item{ev: ev}:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop goroutine and waits for it to return
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	it := item{fn: func() {
		defer close(finished)
		fn()
	}}

	select {
	case l.queue <- it:
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the queue until ctx is done or Close is called. Running
// animations are settled before it returns.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()

	ticker := time.NewTicker(l.frame)
	defer ticker.Stop()

	l.logger.Info("Compositor loop started", zap.Duration("frame", l.frame), zap.Int("queue", cap(l.queue)))
	for {
		select {
		case <-ctx.Done():
			l.comp.Settle()
			l.logger.Info("Compositor loop stopped")
			return nil
		case <-l.done:
			l.comp.Settle()
			return nil
		case it := <-l.queue:
			l.run(it)
		case level := <-l.pressure:
			l.comp.Dispatch(types.Event{Kind: types.EventPressureChanged, Level: level})
		case <-ticker.C:
			if l.comp.Animating() {
				l.comp.Tick()
			}
		}
	}
}

func (l *Loop) run(it item) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered from panic in compositor loop",
				zap.Any("panic", r),
				zap.Stringer("kind", it.ev.Kind))
		}
	}()

	if it.fn != nil {
		it.fn()
		l.comp.drain()
		return
	}
	l.comp.Dispatch(it.ev)
}

// Close stops the loop. Later Post calls report false and Call returns
// ErrLoopClosed.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}
