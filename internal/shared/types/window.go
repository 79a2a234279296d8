package types

import "time"

// WindowHandle identifies a top level window in the window system
type WindowHandle uint32

// ConfigFields marks which fields of a window configuration request are set
type ConfigFields uint32

const (
	ConfigPosition ConfigFields = 1 << 0
	ConfigSize     ConfigFields = 1 << 1
	ConfigOpacity  ConfigFields = 1 << 2
	ConfigStacking ConfigFields = 1 << 3
	ConfigKeepSize ConfigFields = 1 << 4 // Requester asks that its bounds are not overridden
)

// Has reports whether all bits of f are set
func (c ConfigFields) Has(f ConfigFields) bool {
	return c&f == f
}

// StackOrder is the restack direction relative to another window
type StackOrder int

const (
	StackAbove StackOrder = iota
	StackBelow
)

// String returns the string representation of the order
func (o StackOrder) String() string {
	if o == StackBelow {
		return "below"
	}
	return "above"
}

// WindowSystem is the command side of the window-system bridge. Calls are
// fire-and-forget; implementations must not block the caller.
type WindowSystem interface {
	Configure(h WindowHandle, bounds Rect)
	Focus(h WindowHandle)
	SetOpacity(h WindowHandle, opacity float64)
	SetPosition(h WindowHandle, p Point)
	SetScale(h WindowHandle, scale float64)
	SetVisible(h WindowHandle, visible bool)
	SendKey(h WindowHandle, key string)
	SuspendSync(d time.Duration)
}

// NopWindowSystem discards every command
type NopWindowSystem struct{}

func (NopWindowSystem) Configure(WindowHandle, Rect)     {}
func (NopWindowSystem) Focus(WindowHandle)               {}
func (NopWindowSystem) SetOpacity(WindowHandle, float64) {}
func (NopWindowSystem) SetPosition(WindowHandle, Point)  {}
func (NopWindowSystem) SetScale(WindowHandle, float64)   {}
func (NopWindowSystem) SetVisible(WindowHandle, bool)    {}
func (NopWindowSystem) SendKey(WindowHandle, string)     {}
func (NopWindowSystem) SuspendSync(time.Duration)        {}
