package compositor

import (
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// State is the foreground and overlay state. switcherVisible and
// launcherVisible are never both true; oskTargetPID is nonzero only while
// current is set and has that pid.
type State struct {
	current  *supervisor.Instance
	previous *supervisor.Instance

	switcherVisible bool
	launcherVisible bool

	oskTargetPID int
	oskOffset    int
	oskVisible   bool
	oskRestore   types.Point

	statusBar *supervisor.Instance
	home      *supervisor.Instance
	osk       *supervisor.Instance
}

// forget clears every reference to inst
func (s *State) forget(inst *supervisor.Instance) (wasCurrent bool) {
	if s.current == inst {
		s.current = nil
		s.oskTargetPID = 0
		wasCurrent = true
	}
	if s.previous == inst {
		s.previous = nil
	}
	if s.statusBar == inst {
		s.statusBar = nil
	}
	if s.home == inst {
		s.home = nil
		s.launcherVisible = false
	}
	if s.osk == inst {
		s.osk = nil
		s.oskVisible = false
	}
	return wasCurrent
}

// InstanceInfo describes an instance in a state snapshot
type InstanceInfo struct {
	PID      int                  `json:"pid"`
	App      string               `json:"app"`
	Role     string               `json:"role"`
	Visible  bool                 `json:"visible"`
	Windows  []types.WindowHandle `json:"windows"`
	Position *types.Point         `json:"position,omitempty"`
	Opacity  float64              `json:"opacity"`
}

// Snapshot is a copy of the compositor state safe to hand to other goroutines
type Snapshot struct {
	Current         *InstanceInfo  `json:"current,omitempty"`
	Previous        *InstanceInfo  `json:"previous,omitempty"`
	SwitcherVisible bool           `json:"switcher_visible"`
	LauncherVisible bool           `json:"launcher_visible"`
	OSKVisible      bool           `json:"osk_visible"`
	OSKTargetPID    int            `json:"osk_target_pid"`
	Switcher        []int          `json:"switcher"`
	Instances       []InstanceInfo `json:"instances"`
}
