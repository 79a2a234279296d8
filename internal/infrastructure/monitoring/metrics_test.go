package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordStart("ok")
		m.RecordEvent("window_added", time.Millisecond)
		m.SetInstancesActive(3)
		NewTimer(m, "x").Stop()
	})
	assert.Equal(t, Snapshot{}, m.GetSnapshot())
}

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	w := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordStart("busy")
	m.RecordStart("busy")
	m.RecordEviction("critical")
	m.RecordDropped("queue_closed")
	m.SetInstancesActive(2)

	body := scrape(t, reg)
	assert.Contains(t, body, `shell_app_starts_total{result="busy"} 2`)
	assert.Contains(t, body, `shell_evictions_total{level="critical"} 1`)
	assert.Contains(t, body, "shell_uptime_seconds")

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.ActiveInstances)
	assert.Equal(t, int64(1), snap.Evictions)
	assert.Equal(t, int64(1), snap.EventsDropped)
}

func TestSeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/api/instances/:pid", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	for _, pid := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/instances/"+pid, nil)
		router.ServeHTTP(w, req)
	}

	assert.Contains(t, scrape(t, reg), `shell_http_requests_total{method="GET",path="/api/instances/:pid",status="404"} 2`)
	assert.Equal(t, int64(2), m.GetSnapshot().TotalErrors)
}
