package compositor

import (
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/infrastructure/monitoring"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Dispatch handles ev and every follow-up event it produces
func (c *Compositor) Dispatch(ev types.Event) {
	c.follow(ev)
	c.drain()
}

func (c *Compositor) follow(ev types.Event) {
	c.pending = append(c.pending, ev)
}

func (c *Compositor) drain() {
	if c.draining {
		return
	}
	c.draining = true
	defer func() { c.draining = false }()

	for len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		c.handle(ev)
	}
}

func (c *Compositor) handle(ev types.Event) {
	timer := monitoring.NewTimer(c.metrics, ev.Kind.String())
	defer timer.Stop()

	switch ev.Kind {
	case types.EventWindowAdded:
		c.windowAdded(ev)
	case types.EventWindowRemoved:
		c.windowRemoved(ev)
	case types.EventWindowConfig:
		if rec := c.records[ev.PID]; rec != nil {
			rec.view.configure(ev.Handle, ev.Bounds, ev.Fields)
		}
	case types.EventWindowRestack:
		if rec := c.records[ev.PID]; rec != nil {
			rec.view.restack(ev.Handle, ev.Relative, ev.Order)
		}
	case types.EventViewReady:
		c.viewReady(ev.PID)
	case types.EventThumbnailAdd:
		c.thumbnailAdd(ev)
	case types.EventThumbnailRemove:
		c.thumbnailRemove(ev)
	case types.EventSwitcherAdd:
		if rec := c.records[ev.PID]; rec != nil && rec.thumb != nil {
			c.switcher.add(rec.thumb)
		}
	case types.EventSwitcherRemove:
		if c.switcher.remove(ev.PID) && c.switcher.Len() == 0 {
			c.hideSwitcher(true)
		}
	case types.EventViewTeardown:
		c.viewTeardown(ev.PID)
	case types.EventProcessExited:
		c.processEnded(ev, supervisor.Exited)
	case types.EventProcessCrashed:
		c.processEnded(ev, supervisor.Crashed)
	case types.EventKillRequest:
		if err := c.KillInstance(ev.PID); err != nil {
			c.logger.Debug("Kill request ignored", zap.Int("pid", ev.PID), zap.Error(err))
		}
	case types.EventPressureChanged:
		if c.governor != nil {
			c.governor.Handle(ev.Level)
		}
	default:
		c.logger.Warn("Unknown event", zap.Stringer("kind", ev.Kind))
	}
}

func (c *Compositor) windowAdded(ev types.Event) {
	inst, ok := c.sup.Instance(ev.PID)
	if !ok {
		c.logger.Debug("Window of unknown instance", zap.Int("pid", ev.PID), zap.Uint32("handle", uint32(ev.Handle)))
		return
	}
	inst.AddWindow(ev.Handle)

	rec := c.records[inst.PID]
	if rec == nil {
		rec = c.newRecord(inst)
	}
	first := rec.view.addWindow(ev.Handle, ev.Bounds)

	if inst.Def.Role() == types.RoleDefault {
		c.follow(types.Event{Kind: types.EventThumbnailAdd, PID: inst.PID, Handle: ev.Handle})
	}
	if first {
		c.follow(types.Event{Kind: types.EventViewReady, PID: inst.PID})
	}
}

func (c *Compositor) newRecord(inst *supervisor.Instance) *record {
	geo := c.cfg.Geometry
	region, origin := geo.App, geo.App.Pos()

	switch inst.Def.Role() {
	case types.RoleStatusBar:
		region, origin = geo.StatusBar, geo.StatusBar.Pos()
		c.state.statusBar = inst
	case types.RoleOSK:
		region = geo.OSK
		origin = types.Point{X: geo.OSK.X, Y: geo.Screen.Bottom()}
		c.state.osk = inst
	case types.RoleHome:
		c.state.home = inst
	}

	rec := &record{inst: inst, view: newView(inst, c.ws, region, origin)}
	c.records[inst.PID] = rec
	return rec
}

func (c *Compositor) windowRemoved(ev types.Event) {
	rec := c.records[ev.PID]
	if rec == nil {
		return
	}
	rec.inst.RemoveWindow(ev.Handle)
	rec.view.removeWindow(ev.Handle)
	if rec.thumb != nil {
		c.follow(types.Event{Kind: types.EventThumbnailRemove, PID: ev.PID, Handle: ev.Handle})
	}
}

// viewReady runs once the first window of an instance has arrived and
// decides whether the instance comes to the foreground
func (c *Compositor) viewReady(pid int) {
	rec := c.records[pid]
	if rec == nil || rec.view.ready {
		return
	}
	rec.view.ready = true
	inst := rec.inst

	switch inst.Def.Role() {
	case types.RoleStatusBar:
		c.showView(rec.view, AnimOpacity, rec.view.region.Pos())
	case types.RoleOSK:
		c.ToggleOSK(true)
	case types.RoleHome:
		c.ShowInstance(inst)
	default:
		if inst.Def.Flags.Has(types.AppAutoStart) {
			c.notifyVisibility(inst, false)
			return
		}
		c.ShowInstance(inst)
	}
}

func (c *Compositor) thumbnailAdd(ev types.Event) {
	rec := c.records[ev.PID]
	if rec == nil {
		return
	}
	if rec.thumb == nil {
		rec.thumb = &Thumbnail{inst: rec.inst}
		c.follow(types.Event{Kind: types.EventSwitcherAdd, PID: ev.PID})
	}
	rec.thumb.addWindow(ev.Handle)
}

func (c *Compositor) thumbnailRemove(ev types.Event) {
	rec := c.records[ev.PID]
	if rec == nil || rec.thumb == nil {
		return
	}
	if ev.Handle == 0 {
		rec.thumb = nil
		return
	}
	rec.thumb.removeWindow(ev.Handle)
}

func (c *Compositor) viewTeardown(pid int) {
	if rec := c.records[pid]; rec != nil {
		c.engine.Cancel(rec.view)
		delete(c.records, pid)
	}
	if c.state.current == nil {
		c.ToggleLauncher(true)
	}
}

// processEnded handles the one exit event of an instance. Instances already
// stopped through the compositor were released then and are skipped.
func (c *Compositor) processEnded(ev types.Event, kind supervisor.TerminationKind) {
	inst, reaped := c.sup.Reap(ev.PID, ev.Gen, kind)
	if !reaped {
		c.logger.Debug("Exit of released instance", zap.Int("pid", ev.PID), zap.Stringer("kind", ev.Kind))
		return
	}

	fields := []zap.Field{
		zap.String("app", inst.Name()),
		zap.Int("pid", inst.PID),
		zap.Int("status", ev.Status),
		zap.String("signal", ev.Signal),
	}
	if kind == supervisor.Crashed {
		c.logger.Warn("Instance terminated abnormally", fields...)
		c.publish(types.Notification{
			Kind:   types.NotifyAppCrashed,
			App:    inst.Name(),
			PID:    inst.PID,
			Reason: ev.Signal,
		})
	} else {
		c.logger.Info("Instance exited", fields...)
	}

	c.release(inst)
}
