package transition

// Property is an animatable attribute of a view
type Property int

const (
	Opacity Property = iota
	Zoom
	X
	Y
)

func (p Property) String() string {
	switch p {
	case Zoom:
		return "zoom"
	case X:
		return "x"
	case Y:
		return "y"
	default:
		return "opacity"
	}
}

// Target is anything whose properties can be animated
type Target interface {
	Property(p Property) float64
	SetProperty(p Property, v float64)
}

// Tween interpolates one property between two values
type Tween struct {
	Property Property
	From     float64
	To       float64
	Easing   Easing

	fromCurrent bool
}

// FromTo creates a tween with an explicit start value
func FromTo(p Property, from, to float64, e Easing) Tween {
	return Tween{Property: p, From: from, To: to, Easing: e}
}

// To creates a tween that starts from the property's value at the moment the
// animation is started
func To(p Property, to float64, e Easing) Tween {
	return Tween{Property: p, To: to, Easing: e, fromCurrent: true}
}

// Value returns the interpolated value at normalized progress p
func (t Tween) Value(p float64) float64 {
	if p >= 1 {
		return t.To
	}
	if p <= 0 {
		return t.From
	}
	e := t.Easing
	if e == nil {
		e = Ease(Linear, In)
	}
	return t.From + (t.To-t.From)*e(p)
}
