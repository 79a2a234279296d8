package compositor

import (
	"math"

	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/domain/transition"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

var (
	opacityEasing  = transition.Ease(transition.Sine, transition.In)
	zoomEasing     = transition.Ease(transition.Quad, transition.In)
	positionEasing = transition.Ease(transition.Cubic, transition.Out)
)

const (
	showZoomFrom = 0.8
	hideZoomTo   = 2.0
)

type viewWindow struct {
	handle types.WindowHandle
	offset types.Point // window origin relative to the view origin
	bounds types.Rect
}

// View is the full-screen visual of one instance. It mirrors its animated
// properties onto every window it holds.
type View struct {
	inst   *supervisor.Instance
	ws     types.WindowSystem
	region types.Rect

	windows []viewWindow

	opacity float64
	zoom    float64
	x, y    float64
	visible bool
	ready   bool
	showing bool
	hiding  bool
}

func newView(inst *supervisor.Instance, ws types.WindowSystem, region types.Rect, origin types.Point) *View {
	return &View{
		inst:   inst,
		ws:     ws,
		region: region,
		zoom:   1,
		x:      float64(origin.X),
		y:      float64(origin.Y),
	}
}

// Property implements transition.Target
func (v *View) Property(p transition.Property) float64 {
	switch p {
	case transition.Zoom:
		return v.zoom
	case transition.X:
		return v.x
	case transition.Y:
		return v.y
	default:
		return v.opacity
	}
}

// SetProperty implements transition.Target
func (v *View) SetProperty(p transition.Property, val float64) {
	switch p {
	case transition.Opacity:
		v.opacity = val
		for _, w := range v.windows {
			v.ws.SetOpacity(w.handle, val)
		}
	case transition.Zoom:
		v.zoom = val
		for _, w := range v.windows {
			v.ws.SetScale(w.handle, val)
		}
	case transition.X:
		v.x = val
		v.pushPositions()
	case transition.Y:
		v.y = val
		v.pushPositions()
	}
}

// Position returns the view origin rounded to pixels
func (v *View) Position() types.Point {
	return types.Point{X: int(math.Round(v.x)), Y: int(math.Round(v.y))}
}

// Opacity returns the current opacity in [0,1]
func (v *View) Opacity() float64 { return v.opacity }

// Zoom returns the current scale factor
func (v *View) Zoom() float64 { return v.zoom }

// Visible reports whether the view is on screen
func (v *View) Visible() bool { return v.visible }

// Ready reports whether the first window has arrived
func (v *View) Ready() bool { return v.ready }

// Windows returns the handles shown by the view in stacking order
func (v *View) Windows() []types.WindowHandle {
	out := make([]types.WindowHandle, 0, len(v.windows))
	for _, w := range v.windows {
		out = append(out, w.handle)
	}
	return out
}

func (v *View) setVisible(visible bool) {
	v.visible = visible
	for _, w := range v.windows {
		v.ws.SetVisible(w.handle, visible)
	}
}

func (v *View) pushPositions() {
	origin := v.Position()
	for _, w := range v.windows {
		v.ws.SetPosition(w.handle, types.Point{X: origin.X + w.offset.X, Y: origin.Y + w.offset.Y})
	}
}

// addWindow attaches h and syncs it to the view's current state. It reports
// whether this was the first window.
func (v *View) addWindow(h types.WindowHandle, bounds types.Rect) bool {
	for _, w := range v.windows {
		if w.handle == h {
			return false
		}
	}
	first := len(v.windows) == 0
	w := viewWindow{
		handle: h,
		bounds: bounds,
		offset: types.Point{X: bounds.X - v.region.X, Y: bounds.Y - v.region.Y},
	}
	v.windows = append(v.windows, w)

	origin := v.Position()
	v.ws.SetOpacity(h, v.opacity)
	v.ws.SetScale(h, v.zoom)
	v.ws.SetPosition(h, types.Point{X: origin.X + w.offset.X, Y: origin.Y + w.offset.Y})
	v.ws.SetVisible(h, v.visible)
	return first
}

func (v *View) removeWindow(h types.WindowHandle) bool {
	for i, w := range v.windows {
		if w.handle == h {
			v.windows = append(v.windows[:i], v.windows[i+1:]...)
			return true
		}
	}
	return false
}

// configure records new bounds reported by the window system
func (v *View) configure(h types.WindowHandle, bounds types.Rect, fields types.ConfigFields) bool {
	for i := range v.windows {
		w := &v.windows[i]
		if w.handle != h {
			continue
		}
		if fields.Has(types.ConfigPosition) {
			w.bounds.X, w.bounds.Y = bounds.X, bounds.Y
			w.offset = types.Point{X: bounds.X - v.region.X, Y: bounds.Y - v.region.Y}
		}
		if fields.Has(types.ConfigSize) {
			w.bounds.W, w.bounds.H = bounds.W, bounds.H
		}
		return true
	}
	return false
}

// restack moves h next to relative in the view's stacking order
func (v *View) restack(h, relative types.WindowHandle, order types.StackOrder) bool {
	from := -1
	for i, w := range v.windows {
		if w.handle == h {
			from = i
			break
		}
	}
	if from < 0 {
		return false
	}
	moved := v.windows[from]
	v.windows = append(v.windows[:from], v.windows[from+1:]...)

	to := len(v.windows)
	for i, w := range v.windows {
		if w.handle == relative {
			to = i
			if order == types.StackAbove {
				to = i + 1
			}
			break
		}
	}
	v.windows = append(v.windows, viewWindow{})
	copy(v.windows[to+1:], v.windows[to:])
	v.windows[to] = moved
	return true
}

func (v *View) focus() {
	if len(v.windows) > 0 {
		v.ws.Focus(v.windows[0].handle)
	}
}

func (v *View) firstWindow() (types.WindowHandle, bool) {
	if len(v.windows) == 0 {
		return 0, false
	}
	return v.windows[0].handle, true
}
