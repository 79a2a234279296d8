package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can run without a registry.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Instance metrics
	InstancesActive prometheus.Gauge
	Starts          *prometheus.CounterVec
	Terminations    *prometheus.CounterVec
	Evictions       *prometheus.CounterVec

	// Loop metrics
	EventsProcessed  *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Transitions      prometheus.Gauge

	// Window metrics
	WindowsTracked prometheus.Gauge

	// Memory metrics
	PressureLevel prometheus.Gauge
	MemoryUsed    prometheus.Gauge

	// WebSocket metrics
	WSConnections *prometheus.GaugeVec
	WSMessages    *prometheus.CounterVec

	// Notification metrics
	Notifications *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON state endpoint
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	ActiveInstances int64   `json:"active_instances"`
	EventsProcessed int64   `json:"events_processed"`
	EventsDropped   int64   `json:"events_dropped"`
	Evictions       int64   `json:"evictions"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on reg. Use a fresh
// prometheus.NewRegistry() per process so tests can build several.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_http_requests_total",
			Help: "Total number of control API requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shell_http_request_duration_seconds",
			Help:    "Control API request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	m.InstancesActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "shell_instances_active",
		Help: "Number of running application instances",
	})
	m.Starts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_app_starts_total",
			Help: "Application start requests by result",
		},
		[]string{"result"},
	)
	m.Terminations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_app_terminations_total",
			Help: "Application terminations by kind",
		},
		[]string{"kind"},
	)
	m.Evictions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_evictions_total",
			Help: "Instances killed under memory pressure",
		},
		[]string{"level"},
	)

	m.EventsProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_loop_events_total",
			Help: "Events dispatched by the compositor loop",
		},
		[]string{"kind"},
	)
	m.EventsDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_loop_events_dropped_total",
			Help: "Events dropped before reaching the loop",
		},
		[]string{"reason"},
	)
	m.DispatchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shell_loop_dispatch_duration_seconds",
			Help:    "Time spent dispatching one event",
			Buckets: []float64{.00001, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"kind"},
	)
	m.Transitions = factory.NewGauge(prometheus.GaugeOpts{
		Name: "shell_transitions_running",
		Help: "Animations currently in flight",
	})

	m.WindowsTracked = factory.NewGauge(prometheus.GaugeOpts{
		Name: "shell_windows_tracked",
		Help: "Window handles known to the router",
	})

	m.PressureLevel = factory.NewGauge(prometheus.GaugeOpts{
		Name: "shell_memory_pressure_level",
		Help: "Memory pressure level (0 normal, 1 low, 2 critical)",
	})
	m.MemoryUsed = factory.NewGauge(prometheus.GaugeOpts{
		Name: "shell_memory_used_ratio",
		Help: "Fraction of system memory in use",
	})

	m.WSConnections = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shell_ws_connections",
			Help: "Number of active WebSocket connections",
		},
		[]string{"endpoint"},
	)
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_ws_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"endpoint", "direction", "type"},
	)

	m.Notifications = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_notifications_total",
			Help: "Notifications published by kind",
		},
		[]string{"kind"},
	)

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shell_uptime_seconds",
			Help: "Shell uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records a control API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetInstancesActive sets the number of running instances
func (m *Metrics) SetInstancesActive(count int) {
	if m == nil {
		return
	}
	m.InstancesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveInstances = int64(count)
	m.mu.Unlock()
}

// RecordStart records a start request result
func (m *Metrics) RecordStart(result string) {
	if m == nil {
		return
	}
	m.Starts.WithLabelValues(result).Inc()
}

// RecordTermination records an instance leaving the registry
func (m *Metrics) RecordTermination(kind string) {
	if m == nil {
		return
	}
	m.Terminations.WithLabelValues(kind).Inc()
}

// RecordEviction records a pressure eviction
func (m *Metrics) RecordEviction(level string) {
	if m == nil {
		return
	}
	m.Evictions.WithLabelValues(level).Inc()
	m.mu.Lock()
	m.snapshot.Evictions++
	m.mu.Unlock()
}

// RecordEvent records one dispatched loop event
func (m *Metrics) RecordEvent(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(kind).Inc()
	m.DispatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.EventsProcessed++
	m.mu.Unlock()
}

// RecordDropped records an event that never reached the loop
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.EventsDropped++
	m.mu.Unlock()
}

// SetTransitions sets the number of running animations
func (m *Metrics) SetTransitions(count int) {
	if m == nil {
		return
	}
	m.Transitions.Set(float64(count))
}

// SetWindowsTracked sets the number of routed window handles
func (m *Metrics) SetWindowsTracked(count int) {
	if m == nil {
		return
	}
	m.WindowsTracked.Set(float64(count))
}

// SetPressure records the current pressure level
func (m *Metrics) SetPressure(level int) {
	if m == nil {
		return
	}
	m.PressureLevel.Set(float64(level))
}

// SetMemoryUsed records the used memory ratio
func (m *Metrics) SetMemoryUsed(ratio float64) {
	if m == nil {
		return
	}
	m.MemoryUsed.Set(ratio)
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(endpoint, direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(endpoint, direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections(endpoint string) {
	if m == nil {
		return
	}
	m.WSConnections.WithLabelValues(endpoint).Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections(endpoint string) {
	if m == nil {
		return
	}
	m.WSConnections.WithLabelValues(endpoint).Dec()
}

// RecordNotification records a published notification
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind).Inc()
}

// GetSnapshot returns the current counter values
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
