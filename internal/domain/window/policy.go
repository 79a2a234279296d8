package window

import (
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Geometry holds the fixed screen regions reserved per role
type Geometry struct {
	Screen    types.Rect
	StatusBar types.Rect
	OSK       types.Rect
	App       types.Rect
}

// DefaultGeometry lays out a screen with a bar strip on top, the keyboard
// strip at the bottom and the application region in between
func DefaultGeometry(width, height, barHeight, oskHeight int) Geometry {
	return Geometry{
		Screen:    types.Rect{W: width, H: height},
		StatusBar: types.Rect{W: width, H: barHeight},
		OSK:       types.Rect{Y: height - oskHeight, W: width, H: oskHeight},
		App:       types.Rect{Y: barHeight, W: width, H: height - barHeight},
	}
}

// grant decides the bounds of a new window. first reports whether the
// window is the first one of its instance.
func (g Geometry) grant(def *types.AppDefinition, requested types.Rect, fields types.ConfigFields, first bool) types.Rect {
	if def.Flags.Has(types.AppAllowGeometry) || fields.Has(types.ConfigKeepSize) {
		return requested
	}
	switch def.Role() {
	case types.RoleStatusBar:
		return g.StatusBar
	case types.RoleOSK:
		return g.OSK
	default:
		if first {
			return g.App
		}
		return requested
	}
}

// filterReconfigure drops position changes from applications that may not
// place their own windows
func filterReconfigure(def *types.AppDefinition, fields types.ConfigFields) types.ConfigFields {
	if def != nil && def.Flags.Has(types.AppAllowGeometry) {
		return fields
	}
	return fields &^ types.ConfigPosition
}
