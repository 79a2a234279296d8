package compositor

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/notify"
	"github.com/ilixi/ilixi-sub001/internal/domain/pressure"
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/domain/transition"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

var (
	ErrNotForeground = errors.New("instance is not in the foreground")
	ErrNoKeyboard    = errors.New("no on-screen keyboard application")
)

// WindowForgetter drops the window handles of a dead instance
type WindowForgetter interface {
	Forget(pid int) []types.WindowHandle
}

// PressureHandler reacts to memory pressure levels
type PressureHandler interface {
	Handle(level types.PressureLevel) (pressure.Candidate, bool)
}

type record struct {
	inst  *supervisor.Instance
	view  *View
	thumb *Thumbnail
}

// Compositor owns which instance is in the foreground, the launcher,
// switcher and keyboard overlays, and every view animation.
//
// It is not safe for concurrent use. All methods must run on the loop
// goroutine; other goroutines go through Loop.Call.
type Compositor struct {
	cfg       Config
	settings  Settings
	sup       *supervisor.Supervisor
	ws        types.WindowSystem
	clock     transition.Clock
	engine    *transition.Engine
	publisher notify.Publisher
	router    WindowForgetter
	governor  PressureHandler
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	state    State
	switcher Switcher
	records  map[int]*record

	pending  []types.Event
	draining bool
}

// New creates a compositor driving ws for the instances of sup
func New(cfg Config, sup *supervisor.Supervisor, ws types.WindowSystem, clock transition.Clock, logger *zap.Logger) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ws == nil {
		ws = types.NopWindowSystem{}
	}
	if clock == nil {
		clock = transition.SystemClock{}
	}
	return &Compositor{
		cfg:      cfg,
		settings: cfg.Settings,
		sup:      sup,
		ws:       ws,
		clock:    clock,
		engine:   transition.NewEngine(clock),
		logger:   logger.Named("compositor"),
		records:  make(map[int]*record),
	}
}

// WithPublisher sets where UI notifications go
func (c *Compositor) WithPublisher(p notify.Publisher) *Compositor {
	c.publisher = p
	return c
}

// WithRouter sets the router whose handles are dropped on teardown
func (c *Compositor) WithRouter(r WindowForgetter) *Compositor {
	c.router = r
	return c
}

// WithGovernor sets the handler for pressure events
func (c *Compositor) WithGovernor(g PressureHandler) *Compositor {
	c.governor = g
	return c
}

// WithMetrics adds metrics tracking to the compositor
func (c *Compositor) WithMetrics(metrics *monitoring.Metrics) *Compositor {
	c.metrics = metrics
	return c
}

// Settings returns the active options
func (c *Compositor) Settings() Settings {
	return c.settings
}

// ApplySettings replaces the options. Running animations keep their timing.
func (c *Compositor) ApplySettings(s Settings) {
	c.settings = s
	c.logger.Info("Settings applied",
		zap.Bool("animations", s.Animations),
		zap.Duration("show", s.ShowDuration),
		zap.Duration("hide", s.HideDuration))
}

// Current returns the foreground instance
func (c *Compositor) Current() *supervisor.Instance { return c.state.current }

// Previous returns the instance shown before the current one
func (c *Compositor) Previous() *supervisor.Instance { return c.state.previous }

// SwitcherVisible reports whether the switcher overlay is up
func (c *Compositor) SwitcherVisible() bool { return c.state.switcherVisible }

// LauncherVisible reports whether home is the foreground
func (c *Compositor) LauncherVisible() bool { return c.state.launcherVisible }

// OSKVisible reports whether the keyboard is shown
func (c *Compositor) OSKVisible() bool { return c.state.oskVisible }

// OSKTargetPID returns the instance the keyboard types into, or 0
func (c *Compositor) OSKTargetPID() int { return c.state.oskTargetPID }

// Switcher returns the switcher model
func (c *Compositor) Switcher() *Switcher { return &c.switcher }

// View returns the view of pid
func (c *Compositor) View(pid int) (*View, bool) {
	rec, ok := c.records[pid]
	if !ok || rec.view == nil {
		return nil, false
	}
	return rec.view, true
}

// Tick advances running animations
func (c *Compositor) Tick() {
	c.engine.Tick()
	c.metrics.SetTransitions(c.engine.Active())
}

// Animating reports whether any animation is in flight
func (c *Compositor) Animating() bool {
	return c.engine.Active() > 0
}

// Settle jumps every running animation to its end
func (c *Compositor) Settle() {
	c.engine.Complete()
	c.metrics.SetTransitions(0)
}

func (c *Compositor) readyView(inst *supervisor.Instance) *View {
	if inst == nil {
		return nil
	}
	rec, ok := c.records[inst.PID]
	if !ok || rec.view == nil || !rec.view.ready {
		return nil
	}
	return rec.view
}

// ShowInstance brings inst to the foreground and hides the previous one.
// A nil instance or one without a ready view shows the launcher instead.
func (c *Compositor) ShowInstance(inst *supervisor.Instance) {
	c.hideSwitcher(false)

	view := c.readyView(inst)
	if view == nil {
		c.ToggleLauncher(true)
		return
	}
	if inst == c.state.current {
		return
	}

	now := c.clock.Now()
	old := c.state.current
	if oldView := c.readyView(old); oldView != nil {
		if c.state.oskVisible {
			c.hideOSK()
			c.hideView(oldView, c.settings.HideProps|AnimPosition, c.state.oskRestore)
		} else {
			c.hideView(oldView, c.settings.HideProps, oldView.Position())
		}
		old.MarkVisible(now)
	} else if c.state.oskVisible {
		c.hideOSK()
	}
	c.state.oskVisible = false
	c.state.oskTargetPID = 0

	c.state.previous = old
	c.state.current = inst
	c.showView(view, c.settings.ShowProps, view.region.Pos())
	inst.MarkVisible(now)

	c.state.launcherVisible = inst == c.state.home
	if c.settings.SyncGrace > 0 {
		c.ws.SuspendSync(c.settings.SyncGrace)
	}

	c.logger.Debug("Foreground changed", zap.String("app", inst.Name()), zap.Int("pid", inst.PID))
	c.publish(types.Notification{Kind: types.NotifyAppFocusChanged, App: inst.Name(), PID: inst.PID})
	c.publish(types.Notification{
		Kind:    types.NotifyBackKeyAvailable,
		App:     inst.Name(),
		PID:     inst.PID,
		Visible: types.Bool(inst.Def.Flags.Has(types.AppUsesBack)),
	})
	c.publish(types.Notification{Kind: types.NotifyLauncherVisibility, Visible: types.Bool(c.state.launcherVisible)})
}

// ToggleLauncher shows home, or hides it by returning to the previous
// instance. Without a home view, showing brings the current instance back.
func (c *Compositor) ToggleLauncher(show bool) {
	if show {
		if home := c.state.home; c.readyView(home) != nil {
			c.ShowInstance(home)
			return
		}
		c.hideSwitcher(false)
		c.showCurrent()
		return
	}

	if !c.state.launcherVisible {
		return
	}
	if prev := c.state.previous; c.readyView(prev) != nil {
		c.ShowInstance(prev)
	}
}

// ToggleSwitcher shows or hides the switcher overlay. Showing needs at
// least two live instances and one thumbnail. It reports whether the
// switcher is visible afterwards.
func (c *Compositor) ToggleSwitcher(show bool) bool {
	if !show {
		c.hideSwitcher(true)
		return false
	}
	if c.state.switcherVisible {
		return true
	}
	if c.switcher.Len() == 0 || c.sup.Registry().Len() < 2 {
		c.logger.Debug("Switcher has nothing to show",
			zap.Int("thumbnails", c.switcher.Len()),
			zap.Int("instances", c.sup.Registry().Len()))
		return false
	}

	c.ToggleOSK(false)
	if c.state.launcherVisible {
		c.state.launcherVisible = false
		if v := c.readyView(c.state.home); v != nil {
			c.hideView(v, c.settings.HideProps, v.Position())
		}
		c.publish(types.Notification{Kind: types.NotifyLauncherVisibility, Visible: types.Bool(false)})
	}

	c.state.switcherVisible = true
	if cur := c.state.current; cur != nil {
		c.switcher.selectPID(cur.PID)
	}
	c.publish(types.Notification{Kind: types.NotifySwitcherVisibility, Visible: types.Bool(true)})
	return true
}

// hideSwitcher drops the overlay. With restore the foreground instance is
// brought back on screen.
func (c *Compositor) hideSwitcher(restore bool) {
	if !c.state.switcherVisible {
		return
	}
	c.state.switcherVisible = false
	c.publish(types.Notification{Kind: types.NotifySwitcherVisibility, Visible: types.Bool(false)})
	if !restore {
		return
	}

	if !c.showCurrent() {
		c.ToggleLauncher(true)
		return
	}
	if cur := c.state.current; cur == c.state.home && !c.state.launcherVisible {
		c.state.launcherVisible = true
		c.publish(types.Notification{Kind: types.NotifyLauncherVisibility, Visible: types.Bool(true)})
	}
}

// showCurrent puts the current instance back on screen and focuses it. It
// reports false when there is no current view.
func (c *Compositor) showCurrent() bool {
	v := c.readyView(c.state.current)
	if v == nil {
		return false
	}
	if !v.visible || v.hiding {
		c.showView(v, c.settings.ShowProps, v.region.Pos())
	} else {
		v.focus()
	}
	return true
}

// SwitcherNext moves the switcher selection forward
func (c *Compositor) SwitcherNext() *supervisor.Instance {
	if !c.state.switcherVisible {
		return nil
	}
	if t := c.switcher.next(); t != nil {
		return t.inst
	}
	return nil
}

// SwitcherSelect shows the selected instance and closes the switcher
func (c *Compositor) SwitcherSelect() {
	if !c.state.switcherVisible {
		return
	}
	if t := c.switcher.Selected(); t != nil {
		c.ShowInstance(t.inst)
		return
	}
	c.hideSwitcher(true)
}

// SendBackKey forwards back to applications that handle it and otherwise
// navigates between home and the previous instance
func (c *Compositor) SendBackKey() {
	cur := c.state.current
	if cur != nil && cur.Def.Flags.Has(types.AppUsesBack) {
		if v := c.readyView(cur); v != nil {
			if h, ok := v.firstWindow(); ok {
				c.ws.SendKey(h, "back")
				return
			}
		}
	}
	if c.state.launcherVisible {
		c.ToggleLauncher(false)
		return
	}
	c.ToggleLauncher(true)
}

// StartApplication starts name. A busy single-instance application is
// brought to the foreground instead, unless it is being auto-started.
func (c *Compositor) StartApplication(name string, autoStart bool) (supervisor.Result, error) {
	res, inst, err := c.sup.Start(name)
	if res == supervisor.ResultBusy && !autoStart {
		c.ShowInstance(inst)
	}
	return res, err
}

// AutoStart starts every auto-start definition in catalog order
func (c *Compositor) AutoStart() {
	for _, def := range c.sup.Catalog().AutoStart() {
		if _, err := c.StartApplication(def.Name, true); err != nil {
			c.logger.Warn("Auto-start failed", zap.String("app", def.Name), zap.Error(err))
		}
	}
}

// KillInstance stops pid with SIGTERM and tears down its visuals
func (c *Compositor) KillInstance(pid int) error {
	return c.terminate(pid, c.sup.Stop)
}

// Evict kills pid with SIGKILL. It implements pressure.Evictor.
func (c *Compositor) Evict(pid int) error {
	return c.terminate(pid, c.sup.Kill)
}

func (c *Compositor) terminate(pid int, signal func(int) error) error {
	inst, ok := c.sup.Instance(pid)
	if !ok {
		return fmt.Errorf("%w: pid %d", supervisor.ErrInstanceNotFound, pid)
	}
	c.release(inst)
	err := signal(pid)
	c.drain()
	return err
}

// release clears every reference to inst and queues the teardown of its
// thumbnail, switcher entry and view
func (c *Compositor) release(inst *supervisor.Instance) {
	if inst == c.state.osk && c.state.oskVisible {
		if v := c.readyView(c.state.current); v != nil {
			c.slideView(v, c.state.oskRestore)
		}
		c.state.oskVisible = false
		c.state.oskTargetPID = 0
	}
	if inst == c.state.current && c.state.oskVisible {
		c.hideOSK()
		c.state.oskVisible = false
	}
	c.state.forget(inst)

	if c.router != nil {
		c.router.Forget(inst.PID)
	}
	c.follow(types.Event{Kind: types.EventSwitcherRemove, PID: inst.PID})
	c.follow(types.Event{Kind: types.EventThumbnailRemove, PID: inst.PID})
	c.follow(types.Event{Kind: types.EventViewTeardown, PID: inst.PID})
}

// Candidates lists eviction candidates. It implements pressure.Evictor.
func (c *Compositor) Candidates() []pressure.Candidate {
	now := c.clock.Now()
	instances := c.sup.Instances()
	out := make([]pressure.Candidate, 0, len(instances))
	for _, inst := range instances {
		cand := pressure.Candidate{
			PID:         inst.PID,
			App:         inst.Name(),
			System:      inst.Def.IsSystem(),
			LastVisible: inst.LastVisible(),
		}
		if v := c.readyView(inst); v != nil && v.visible && !v.hiding {
			cand.Visible = true
			cand.LastVisible = now
		}
		out = append(out, cand)
	}
	return out
}

func (c *Compositor) showView(v *View, props AnimProps, to types.Point) {
	if !v.ready || v.showing {
		return
	}

	// A hidden view starts from the show origin, one interrupted mid-hide
	// continues from where it is.
	if !v.visible {
		if props.Has(AnimOpacity) {
			v.SetProperty(transition.Opacity, 0)
		}
		if props.Has(AnimZoom) {
			v.SetProperty(transition.Zoom, showZoomFrom)
		}
	}

	var tweens []transition.Tween
	if props.Has(AnimOpacity) {
		tweens = append(tweens, transition.To(transition.Opacity, 1, opacityEasing))
	} else {
		v.SetProperty(transition.Opacity, 1)
	}
	if props.Has(AnimZoom) {
		tweens = append(tweens, transition.To(transition.Zoom, 1, zoomEasing))
	} else {
		v.SetProperty(transition.Zoom, 1)
	}
	if props.Has(AnimPosition) {
		tweens = append(tweens,
			transition.To(transition.X, float64(to.X), positionEasing),
			transition.To(transition.Y, float64(to.Y), positionEasing))
	}

	v.showing, v.hiding = true, false
	v.setVisible(true)
	v.focus()

	c.engine.Start(v, c.animation(c.settings.showDuration(), tweens).Then(func() {
		v.showing = false
		c.notifyVisibility(v.inst, true)
	}))
}

func (c *Compositor) hideView(v *View, props AnimProps, to types.Point) {
	if !v.ready || v.hiding || !v.visible {
		return
	}

	var tweens []transition.Tween
	if props.Has(AnimOpacity) {
		tweens = append(tweens, transition.To(transition.Opacity, 0, opacityEasing))
	}
	if props.Has(AnimZoom) {
		tweens = append(tweens, transition.To(transition.Zoom, hideZoomTo, zoomEasing))
	}
	if props.Has(AnimPosition) {
		tweens = append(tweens,
			transition.To(transition.X, float64(to.X), positionEasing),
			transition.To(transition.Y, float64(to.Y), positionEasing))
	}

	v.showing, v.hiding = false, true
	c.engine.Start(v, c.animation(c.settings.hideDuration(), tweens).Then(func() {
		v.hiding = false
		v.setVisible(false)
	}))
}

// slideView moves v to the given origin. A show in flight is carried to its
// end values so its completion still fires.
func (c *Compositor) slideView(v *View, to types.Point) {
	if !v.ready || v.hiding {
		return
	}

	tweens := []transition.Tween{
		transition.To(transition.X, float64(to.X), positionEasing),
		transition.To(transition.Y, float64(to.Y), positionEasing),
	}
	var done func()
	if v.showing {
		tweens = append(tweens,
			transition.To(transition.Opacity, 1, opacityEasing),
			transition.To(transition.Zoom, 1, zoomEasing))
		done = func() {
			v.showing = false
			c.notifyVisibility(v.inst, true)
		}
	}
	c.engine.Start(v, c.animation(c.settings.slideDuration(), tweens).Then(done))
}

func (c *Compositor) animation(d time.Duration, tweens []transition.Tween) *transition.Animation {
	if len(tweens) == 0 {
		d = 0
	}
	return transition.NewAnimation(d, tweens...)
}

func (c *Compositor) notifyVisibility(inst *supervisor.Instance, visible bool) {
	if inst == nil || !inst.Def.Flags.Has(types.AppVisibilityNotify) {
		return
	}
	c.publish(types.Notification{
		Kind:    types.NotifyAppVisibility,
		App:     inst.Name(),
		PID:     inst.PID,
		Visible: types.Bool(visible),
	})
}

func (c *Compositor) publish(n types.Notification) {
	if c.publisher != nil {
		c.publisher.Publish(n)
	}
}
