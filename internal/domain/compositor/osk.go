package compositor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// ShowOSK asks for the keyboard on behalf of pid, whose focused input sits at
// target. Only the foreground instance may ask. The keyboard application is
// started when it is not running yet.
func (c *Compositor) ShowOSK(target types.Rect, pid int) error {
	cur := c.state.current
	if cur == nil || cur.PID != pid {
		return fmt.Errorf("%w: pid %d", ErrNotForeground, pid)
	}
	c.state.oskTargetPID = pid
	c.state.oskOffset = c.oskOffset(target)

	if osk := c.state.osk; osk != nil {
		if c.readyView(osk) != nil {
			c.ToggleOSK(true)
		}
		return nil
	}

	def := c.oskDefinition()
	if def == nil {
		return ErrNoKeyboard
	}
	res, _, err := c.sup.Start(def.Name)
	if res != supervisor.ResultOK && res != supervisor.ResultBusy {
		return err
	}
	c.logger.Debug("Keyboard requested", zap.Int("pid", pid), zap.Int("offset", c.state.oskOffset))
	return nil
}

// oskOffset returns how far the foreground view must move up so that target
// stays above the keyboard strip
func (c *Compositor) oskOffset(target types.Rect) int {
	strip := c.cfg.Geometry.OSK
	if target.Bottom() <= strip.Y {
		return 0
	}
	off := target.Bottom() - strip.Y
	if limit := c.cfg.Geometry.App.H - strip.H; off > limit {
		off = max(limit, 0)
	}
	return off
}

func (c *Compositor) oskDefinition() *types.AppDefinition {
	cat := c.sup.Catalog()
	if c.cfg.OSKApp != "" {
		if def, ok := cat.Lookup(c.cfg.OSKApp); ok {
			return def
		}
	}
	for _, def := range cat.List() {
		if def.Role() == types.RoleOSK {
			return def
		}
	}
	return nil
}

// ToggleOSK shows or hides the keyboard for the current target. Showing
// slides the foreground view up by the recorded offset; hiding slides it
// back to where it was. It reports whether anything changed.
func (c *Compositor) ToggleOSK(show bool) bool {
	oskView := c.readyView(c.state.osk)
	cur := c.state.current
	curView := c.readyView(cur)
	if oskView == nil || curView == nil || c.state.oskTargetPID == 0 || cur.PID != c.state.oskTargetPID {
		return false
	}

	if show {
		if !c.state.oskVisible {
			c.state.oskRestore = curView.Position()
		}
		c.state.oskVisible = true
		c.slideView(curView, types.Point{
			X: c.state.oskRestore.X,
			Y: c.state.oskRestore.Y - c.state.oskOffset,
		})
		c.showView(oskView, AnimPosition, c.cfg.Geometry.OSK.Pos())
		c.hideSwitcher(true)
		return true
	}

	if !c.state.oskVisible {
		return false
	}
	c.slideView(curView, c.state.oskRestore)
	c.hideOSK()
	c.state.oskVisible = false
	c.state.oskTargetPID = 0
	return true
}

// hideOSK slides the keyboard below the screen
func (c *Compositor) hideOSK() {
	v := c.readyView(c.state.osk)
	if v == nil {
		return
	}
	c.hideView(v, AnimPosition, types.Point{X: c.cfg.Geometry.OSK.X, Y: c.cfg.Geometry.Screen.Bottom()})
}

// SendOSKInput delivers a key from the keyboard to the foreground instance.
// Enter closes the keyboard.
func (c *Compositor) SendOSKInput(key string) error {
	cur := c.state.current
	v := c.readyView(cur)
	if v == nil {
		return fmt.Errorf("%w: no foreground instance", ErrNotForeground)
	}
	if h, ok := v.firstWindow(); ok {
		c.ws.SendKey(h, key)
	}
	if isEnter(key) {
		c.ToggleOSK(false)
	}
	return nil
}

func isEnter(key string) bool {
	switch strings.ToLower(key) {
	case "enter", "return", "\n", "\r":
		return true
	}
	return false
}
