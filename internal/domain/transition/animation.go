package transition

import (
	"time"
)

// Clock supplies the current time. Tests use a manual clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now
func (SystemClock) Now() time.Time { return time.Now() }

// Animation is a group of tweens sharing a duration
type Animation struct {
	Duration   time.Duration
	Tweens     []Tween
	OnFinished func()

	start    time.Time
	finished bool
}

// NewAnimation creates an animation from tweens
func NewAnimation(d time.Duration, tweens ...Tween) *Animation {
	return &Animation{Duration: d, Tweens: tweens}
}

// Then sets the completion callback and returns the animation
func (a *Animation) Then(fn func()) *Animation {
	a.OnFinished = fn
	return a
}

// Finished reports whether the animation has reached its end
func (a *Animation) Finished() bool {
	return a.finished
}

func (a *Animation) progress(now time.Time) float64 {
	if a.Duration <= 0 {
		return 1
	}
	p := float64(now.Sub(a.start)) / float64(a.Duration)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// apply writes tween values for progress p to the target
func (a *Animation) apply(t Target, p float64) {
	for _, tw := range a.Tweens {
		t.SetProperty(tw.Property, tw.Value(p))
	}
}

type running struct {
	target Target
	anim   *Animation
}

// Engine drives running animations. It is not safe for concurrent use; the
// compositor loop owns it.
type Engine struct {
	clock   Clock
	running map[Target]*running
	order   []Target
}

// NewEngine creates an engine reading time from clock
func NewEngine(clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		clock:   clock,
		running: make(map[Target]*running),
	}
}

// Start runs anim on target. A running animation on the same target is
// cancelled without firing its callback. Zero duration animations complete
// immediately.
func (e *Engine) Start(t Target, anim *Animation) {
	e.Cancel(t)

	anim.start = e.clock.Now()
	anim.finished = false
	for i := range anim.Tweens {
		if anim.Tweens[i].fromCurrent {
			anim.Tweens[i].From = t.Property(anim.Tweens[i].Property)
		}
	}
	anim.apply(t, 0)

	if anim.Duration <= 0 {
		e.finish(t, anim)
		return
	}

	e.running[t] = &running{target: t, anim: anim}
	e.order = append(e.order, t)
}

// Cancel stops any animation on target, leaving its properties at their
// current values. It reports whether something was cancelled.
func (e *Engine) Cancel(t Target) bool {
	if _, ok := e.running[t]; !ok {
		return false
	}
	delete(e.running, t)
	e.removeOrder(t)
	return true
}

// Running reports whether target has an animation in flight
func (e *Engine) Running(t Target) bool {
	_, ok := e.running[t]
	return ok
}

// Active returns the number of running animations
func (e *Engine) Active() int {
	return len(e.running)
}

// Tick advances every running animation to the clock's current time and
// fires completion callbacks in start order.
func (e *Engine) Tick() {
	now := e.clock.Now()
	targets := append([]Target(nil), e.order...)
	for _, t := range targets {
		r, ok := e.running[t]
		if !ok {
			continue
		}
		p := r.anim.progress(now)
		r.anim.apply(t, p)
		if p >= 1 {
			delete(e.running, t)
			e.removeOrder(t)
			e.finish(t, r.anim)
		}
	}
}

// Complete jumps every running animation to its end
func (e *Engine) Complete() {
	targets := append([]Target(nil), e.order...)
	for _, t := range targets {
		r, ok := e.running[t]
		if !ok {
			continue
		}
		delete(e.running, t)
		e.removeOrder(t)
		r.anim.apply(t, 1)
		e.finish(t, r.anim)
	}
}

func (e *Engine) finish(t Target, a *Animation) {
	if a.finished {
		return
	}
	a.apply(t, 1)
	a.finished = true
	if a.OnFinished != nil {
		a.OnFinished()
	}
}

func (e *Engine) removeOrder(t Target) {
	for i, o := range e.order {
		if o == t {
			e.order = append(e.order[:i], e.order[i+1:]...)
			return
		}
	}
}
