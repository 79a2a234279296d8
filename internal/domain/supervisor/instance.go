package supervisor

import (
	"sync/atomic"
	"time"

	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Instance is one running process of a definition.
//
// Window membership and the last-visible time are owned by the compositor
// loop and must only be touched from it.
type Instance struct {
	PID     int
	Gen     uint64 // unique per supervisor; tells apart instances sharing a reused pid
	Def     *types.AppDefinition
	Started time.Time

	proc   Process
	done   chan struct{}
	exited atomic.Bool
	term   atomic.Pointer[Termination]

	windows     []types.WindowHandle
	lastVisible time.Time
}

func newInstance(proc Process, def *types.AppDefinition, started time.Time, gen uint64) *Instance {
	return &Instance{
		PID:     proc.PID(),
		Gen:     gen,
		Def:     def,
		Started: started,
		proc:    proc,
		done:    make(chan struct{}),
	}
}

// Name returns the definition name
func (i *Instance) Name() string {
	return i.Def.Name
}

// Alive reports whether the process is still running
func (i *Instance) Alive() bool {
	return !i.exited.Load() && i.proc.Alive()
}

// Done is closed once the process has been reaped
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Termination returns how the process ended, or nil while it runs
func (i *Instance) Termination() *Termination {
	return i.term.Load()
}

func (i *Instance) markExited(t Termination) {
	i.term.Store(&t)
	if !i.exited.Swap(true) {
		close(i.done)
	}
}

// AddWindow appends h to the ordered window set. It reports whether h was new.
func (i *Instance) AddWindow(h types.WindowHandle) bool {
	if i.HasWindow(h) {
		return false
	}
	i.windows = append(i.windows, h)
	return true
}

// RemoveWindow drops h. It reports whether h was present.
func (i *Instance) RemoveWindow(h types.WindowHandle) bool {
	for idx, w := range i.windows {
		if w == h {
			i.windows = append(i.windows[:idx], i.windows[idx+1:]...)
			return true
		}
	}
	return false
}

// HasWindow reports whether h belongs to the instance
func (i *Instance) HasWindow(h types.WindowHandle) bool {
	for _, w := range i.windows {
		if w == h {
			return true
		}
	}
	return false
}

// Windows returns a copy of the window set in arrival order
func (i *Instance) Windows() []types.WindowHandle {
	return append([]types.WindowHandle(nil), i.windows...)
}

// FirstWindow returns the oldest window
func (i *Instance) FirstWindow() (types.WindowHandle, bool) {
	if len(i.windows) == 0 {
		return 0, false
	}
	return i.windows[0], true
}

// MarkVisible records t as the last time the instance was on screen
func (i *Instance) MarkVisible(t time.Time) {
	i.lastVisible = t
}

// LastVisible returns the last time the instance was on screen. Instances
// never shown report their start time.
func (i *Instance) LastVisible() time.Time {
	if i.lastVisible.IsZero() {
		return i.Started
	}
	return i.lastVisible
}
