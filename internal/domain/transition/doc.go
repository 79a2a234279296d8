// Package transition animates view properties over time.
//
// An Animation is a set of Tweens sharing one duration. The Engine drives
// every running animation from a single clock and is ticked by the
// compositor loop once per frame.
//
// Guarantees:
//   - at elapsed >= duration every tween holds exactly its end value
//   - OnFinished fires once per animation, never for a cancelled one
//   - starting an animation on a busy target cancels the old one and the
//     new tweens continue from the property's current value
//
// Example Usage:
//
//	eng := transition.NewEngine(transition.SystemClock{})
//	eng.Start(view, transition.NewAnimation(300*time.Millisecond,
//	    transition.To(transition.Opacity, 1, transition.Ease(transition.Sine, transition.In)),
//	))
//	for eng.Active() > 0 {
//	    eng.Tick()
//	}
package transition
