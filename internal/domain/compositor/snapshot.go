package compositor

import (
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
)

// Snapshot copies the current state for readers outside the loop
func (c *Compositor) Snapshot() Snapshot {
	snap := Snapshot{
		Current:         c.info(c.state.current),
		Previous:        c.info(c.state.previous),
		SwitcherVisible: c.state.switcherVisible,
		LauncherVisible: c.state.launcherVisible,
		OSKVisible:      c.state.oskVisible,
		OSKTargetPID:    c.state.oskTargetPID,
	}
	for _, inst := range c.switcher.Instances() {
		snap.Switcher = append(snap.Switcher, inst.PID)
	}
	for _, inst := range c.sup.Instances() {
		snap.Instances = append(snap.Instances, *c.info(inst))
	}
	return snap
}

func (c *Compositor) info(inst *supervisor.Instance) *InstanceInfo {
	if inst == nil {
		return nil
	}
	info := &InstanceInfo{
		PID:     inst.PID,
		App:     inst.Name(),
		Role:    inst.Def.Role().String(),
		Windows: inst.Windows(),
	}
	if rec, ok := c.records[inst.PID]; ok {
		pos := rec.view.Position()
		info.Position = &pos
		info.Visible = rec.view.visible && !rec.view.hiding
		info.Opacity = rec.view.opacity
	}
	return info
}
