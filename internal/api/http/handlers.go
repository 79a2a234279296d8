package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/catalog"
	"github.com/ilixi/ilixi-sub001/internal/domain/compositor"
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/config"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// DefaultCallTimeout bounds how long a request waits for the compositor loop
const DefaultCallTimeout = 2 * time.Second

// OptionsStore holds the live compositor options
type OptionsStore interface {
	Options() config.Options
	ApplyOptions(ctx context.Context, opts config.Options) error
}

// Handlers serves the control API. Everything that touches compositor or
// supervisor state runs on the compositor loop through Loop.Call.
type Handlers struct {
	loop     *compositor.Loop
	comp     *compositor.Compositor
	catalog  *catalog.Catalog
	options  OptionsStore
	gatherer prometheus.Gatherer
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	timeout  time.Duration
}

// NewHandlers creates the API handlers
func NewHandlers(loop *compositor.Loop, comp *compositor.Compositor, cat *catalog.Catalog, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		loop:    loop,
		comp:    comp,
		catalog: cat,
		logger:  logger.Named("api"),
		timeout: DefaultCallTimeout,
	}
}

// WithOptions enables GET and POST /api/options
func (h *Handlers) WithOptions(store OptionsStore) *Handlers {
	h.options = store
	return h
}

// WithMetrics enables /metrics and the metrics snapshot in /health
func (h *Handlers) WithMetrics(metrics *monitoring.Metrics, gatherer prometheus.Gatherer) *Handlers {
	h.metrics = metrics
	h.gatherer = gatherer
	return h
}

// Register mounts every route on r
func (h *Handlers) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.GET("/apps", h.ListApps)
		api.POST("/apps/:name/start", h.StartApp)

		api.GET("/instances", h.ListInstances)
		api.DELETE("/instances/:pid", h.KillInstance)

		api.GET("/state", h.State)
		api.POST("/launcher", h.ToggleLauncher)
		api.POST("/back", h.Back)

		api.POST("/switcher", h.ToggleSwitcher)
		api.POST("/switcher/next", h.SwitcherNext)
		api.POST("/switcher/select", h.SwitcherSelect)

		api.POST("/osk", h.OSK)
		api.POST("/osk/key", h.OSKKey)

		api.GET("/options", h.GetOptions)
		api.POST("/options", h.SetOptions)
		api.POST("/pressure", h.SetPressure)

		api.POST("/logs", h.StreamLogs)
	}
}

// call runs fn on the compositor loop and writes an error response when the
// loop cannot take it
func (h *Handlers) call(c *gin.Context, fn func()) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.loop.Call(ctx, fn); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.logger.Warn("Compositor call failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return false
	}
	return true
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status": "healthy",
		"apps":   h.catalog.Len(),
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// AppInfo is the catalog entry as shown to overlays
type AppInfo struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Author   string `json:"author,omitempty"`
	Category string `json:"category"`
	Version  int    `json:"version"`
	Icon     string `json:"icon,omitempty"`
	Role     string `json:"role"`
	Multiple bool   `json:"multiple"`
}

// ListApps lists the catalog. The catalog is immutable, so no loop call is
// needed.
func (h *Handlers) ListApps(c *gin.Context) {
	defs := h.catalog.List()
	apps := make([]AppInfo, 0, len(defs))
	for _, d := range defs {
		apps = append(apps, AppInfo{
			ID:       d.ID,
			Name:     d.Name,
			Author:   d.Author,
			Category: d.Category,
			Version:  d.Version,
			Icon:     d.Icon,
			Role:     d.Role().String(),
			Multiple: d.Flags.Has(types.AppMultiple),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "apps": apps})
}

// StartApp starts an application by name, or brings its running instance
// forward
func (h *Handlers) StartApp(c *gin.Context) {
	name := c.Param("name")

	var (
		result supervisor.Result
		err    error
	)
	if !h.call(c, func() { result, err = h.comp.StartApplication(name, false) }) {
		return
	}

	switch result {
	case supervisor.ResultOK, supervisor.ResultBusy:
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result.String()})
	case supervisor.ResultNotFound:
		c.JSON(http.StatusNotFound, gin.H{"success": false, "result": result.String(), "error": errString(err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "result": result.String(), "error": errString(err)})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ListInstances lists running instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var snap compositor.Snapshot
	if !h.call(c, func() { snap = h.comp.Snapshot() }) {
		return
	}
	instances := snap.Instances
	if instances == nil {
		instances = []compositor.InstanceInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "instances": instances})
}

// KillInstance terminates an instance
func (h *Handlers) KillInstance(c *gin.Context) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil || pid <= 0 {
		fail(c, http.StatusBadRequest, errors.New("invalid pid"))
		return
	}

	if !h.call(c, func() { err = h.comp.KillInstance(pid) }) {
		return
	}
	switch {
	case errors.Is(err, supervisor.ErrInstanceNotFound):
		fail(c, http.StatusNotFound, err)
	case err != nil:
		fail(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "pid": pid})
	}
}

// State returns the compositor state
func (h *Handlers) State(c *gin.Context) {
	var snap compositor.Snapshot
	if !h.call(c, func() { snap = h.comp.Snapshot() }) {
		return
	}
	c.JSON(http.StatusOK, snap)
}

type visibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// ToggleLauncher shows or hides the launcher
func (h *Handlers) ToggleLauncher(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	var visible bool
	if !h.call(c, func() {
		h.comp.ToggleLauncher(*req.Visible)
		visible = h.comp.LauncherVisible()
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "visible": visible})
}

// Back delivers the back key
func (h *Handlers) Back(c *gin.Context) {
	if !h.call(c, h.comp.SendBackKey) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ToggleSwitcher shows or hides the switcher
func (h *Handlers) ToggleSwitcher(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	var visible bool
	if !h.call(c, func() {
		h.comp.ToggleSwitcher(*req.Visible)
		visible = h.comp.SwitcherVisible()
	}) {
		return
	}
	// showing is refused with fewer than two running instances
	c.JSON(http.StatusOK, gin.H{"success": visible == *req.Visible, "visible": visible})
}

// SwitcherNext moves the switcher selection
func (h *Handlers) SwitcherNext(c *gin.Context) {
	var selected *supervisor.Instance
	if !h.call(c, func() { selected = h.comp.SwitcherNext() }) {
		return
	}
	if selected == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "selected": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "selected": selected.PID, "app": selected.Name()})
}

// SwitcherSelect shows the selected instance and closes the switcher
func (h *Handlers) SwitcherSelect(c *gin.Context) {
	if !h.call(c, h.comp.SwitcherSelect) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type oskRequest struct {
	Visible *bool       `json:"visible" binding:"required"`
	PID     int         `json:"pid"`
	Target  *types.Rect `json:"target"`
}

// OSK shows the keyboard for a text field of the foreground instance, or
// hides it
func (h *Handlers) OSK(c *gin.Context) {
	var req oskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if *req.Visible && req.Target == nil {
		fail(c, http.StatusBadRequest, errors.New("target is required to show the keyboard"))
		return
	}

	var (
		err     error
		visible bool
	)
	if !h.call(c, func() {
		if *req.Visible {
			err = h.comp.ShowOSK(*req.Target, req.PID)
		} else {
			h.comp.ToggleOSK(false)
		}
		visible = h.comp.OSKVisible()
	}) {
		return
	}

	switch {
	case errors.Is(err, compositor.ErrNotForeground):
		fail(c, http.StatusConflict, err)
	case errors.Is(err, compositor.ErrNoKeyboard):
		fail(c, http.StatusNotFound, err)
	case err != nil:
		fail(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "visible": visible})
	}
}

// OSKKey forwards a key from the keyboard to the target instance
func (h *Handlers) OSKKey(c *gin.Context) {
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	var err error
	if !h.call(c, func() { err = h.comp.SendOSKInput(req.Key) }) {
		return
	}
	if err != nil {
		fail(c, http.StatusConflict, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetOptions returns the live options
func (h *Handlers) GetOptions(c *gin.Context) {
	if h.options == nil {
		fail(c, http.StatusNotImplemented, errors.New("options are not configurable"))
		return
	}
	c.JSON(http.StatusOK, h.options.Options())
}

// SetOptions replaces the live options. Fields missing from the body keep
// their current value.
func (h *Handlers) SetOptions(c *gin.Context) {
	if h.options == nil {
		fail(c, http.StatusNotImplemented, errors.New("options are not configurable"))
		return
	}

	opts := h.options.Options()
	if err := c.ShouldBindJSON(&opts); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := opts.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.options.ApplyOptions(ctx, opts); err != nil {
		fail(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

// SetPressure injects a memory pressure level, as a low memory daemon would
func (h *Handlers) SetPressure(c *gin.Context) {
	var req struct {
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	level, err := types.ParsePressureLevel(req.Level)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}

	if !h.loop.Post(types.Event{Kind: types.EventPressureChanged, Level: level}) {
		fail(c, http.StatusServiceUnavailable, errors.New("event queue full"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "level": level.String()})
}
