package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/resilience"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// WebhookConfig configures the webhook sink
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
	QueueSize  int
	Failures   uint32        // consecutive failed deliveries before the endpoint is skipped
	Cooldown   time.Duration // how long a failing endpoint is skipped
}

// Webhook posts notifications as JSON to an HTTP endpoint. Delivery happens
// on a worker goroutine; when the queue is full or the endpoint keeps
// failing, notifications are dropped.
type Webhook struct {
	client  *resty.Client
	url     string
	queue   chan types.Notification
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewWebhook creates a sink. Run must be called to deliver anything.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json")

	w := &Webhook{
		client: client,
		url:    cfg.URL,
		queue:  make(chan types.Notification, cfg.QueueSize),
		logger: logger.Named("webhook"),
	}
	w.breaker = resilience.New("webhook", resilience.Settings{
		Failures: cfg.Failures,
		Cooldown: cfg.Cooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			w.logger.Info("Webhook circuit changed",
				zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	return w
}

// WithMetrics adds metrics tracking to the webhook
func (w *Webhook) WithMetrics(metrics *monitoring.Metrics) *Webhook {
	w.metrics = metrics
	return w
}

// OnNotification enqueues n without blocking
func (w *Webhook) OnNotification(n types.Notification) {
	select {
	case w.queue <- n:
	default:
		w.logger.Warn("Webhook queue full, dropping notification",
			zap.String("kind", string(n.Kind)), zap.String("id", n.ID))
		w.metrics.RecordDropped("webhook_full")
	}
}

// Run delivers queued notifications until ctx is cancelled
func (w *Webhook) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-w.queue:
			err := w.breaker.Do(func() error { return w.deliver(ctx, n) })
			switch {
			case errors.Is(err, resilience.ErrCircuitOpen):
				w.logger.Debug("Webhook circuit open, dropping notification", zap.String("kind", string(n.Kind)))
				w.metrics.RecordDropped("webhook_open")
			case err != nil:
				w.logger.Warn("Webhook delivery failed", zap.String("kind", string(n.Kind)), zap.Error(err))
			}
		}
	}
}

func (w *Webhook) deliver(ctx context.Context, n types.Notification) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(n).
		Post(w.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	return nil
}
