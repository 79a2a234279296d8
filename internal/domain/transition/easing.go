package transition

import (
	"fmt"
	"math"
	"strings"
)

// Easing maps normalized progress in [0,1] to normalized value. Every easing
// returns 0 at 0 and 1 at 1; back and elastic overshoot in between.
type Easing func(p float64) float64

// Family is an easing curve family
type Family int

const (
	Linear Family = iota
	Quad
	Cubic
	Quart
	Quint
	Sine
	Expo
	Circle
	Back
	Bounce
	Elastic
)

var familyNames = []string{"linear", "quad", "cubic", "quart", "quint", "sine", "expo", "circle", "back", "bounce", "elastic"}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return "unknown"
}

// Mode selects which end of the curve is eased
type Mode int

const (
	In Mode = iota
	Out
	InOut
)

func (m Mode) String() string {
	switch m {
	case Out:
		return "out"
	case InOut:
		return "in-out"
	default:
		return "in"
	}
}

const (
	backC1 = 1.70158
	backC2 = backC1 * 1.525
	backC3 = backC1 + 1
)

// Ease returns the easing function for a family and mode
func Ease(f Family, m Mode) Easing {
	var in Easing
	switch f {
	case Linear:
		return func(p float64) float64 { return p }
	case Quad:
		in = power(2)
	case Cubic:
		in = power(3)
	case Quart:
		in = power(4)
	case Quint:
		in = power(5)
	case Sine:
		in = func(p float64) float64 { return 1 - math.Cos(p*math.Pi/2) }
	case Expo:
		in = func(p float64) float64 {
			if p <= 0 {
				return 0
			}
			return math.Pow(2, 10*p-10)
		}
	case Circle:
		in = func(p float64) float64 { return 1 - math.Sqrt(1-p*p) }
	case Back:
		return backEase(m)
	case Bounce:
		in = func(p float64) float64 { return 1 - bounceOut(1-p) }
	case Elastic:
		return elasticEase(m)
	default:
		return func(p float64) float64 { return p }
	}
	return derive(in, m)
}

// derive builds out and in-out variants by reflecting an in curve
func derive(in Easing, m Mode) Easing {
	switch m {
	case Out:
		return func(p float64) float64 { return 1 - in(1-p) }
	case InOut:
		return func(p float64) float64 {
			if p < 0.5 {
				return in(2*p) / 2
			}
			return 1 - in(2-2*p)/2
		}
	default:
		return in
	}
}

func power(n float64) Easing {
	return func(p float64) float64 { return math.Pow(p, n) }
}

func bounceOut(p float64) float64 {
	const n1, d1 = 7.5625, 2.75
	switch {
	case p < 1/d1:
		return n1 * p * p
	case p < 2/d1:
		p -= 1.5 / d1
		return n1*p*p + 0.75
	case p < 2.5/d1:
		p -= 2.25 / d1
		return n1*p*p + 0.9375
	default:
		p -= 2.625 / d1
		return n1*p*p + 0.984375
	}
}

func backEase(m Mode) Easing {
	switch m {
	case Out:
		return func(p float64) float64 {
			q := p - 1
			return 1 + backC3*q*q*q + backC1*q*q
		}
	case InOut:
		return func(p float64) float64 {
			if p < 0.5 {
				return (4 * p * p * ((backC2+1)*2*p - backC2)) / 2
			}
			q := 2*p - 2
			return (q*q*((backC2+1)*q+backC2) + 2) / 2
		}
	default:
		return func(p float64) float64 { return backC3*p*p*p - backC1*p*p }
	}
}

func elasticEase(m Mode) Easing {
	const c4 = 2 * math.Pi / 3
	const c5 = 2 * math.Pi / 4.5
	edges := func(f Easing) Easing {
		return func(p float64) float64 {
			if p <= 0 {
				return 0
			}
			if p >= 1 {
				return 1
			}
			return f(p)
		}
	}
	switch m {
	case Out:
		return edges(func(p float64) float64 {
			return math.Pow(2, -10*p)*math.Sin((p*10-0.75)*c4) + 1
		})
	case InOut:
		return edges(func(p float64) float64 {
			if p < 0.5 {
				return -(math.Pow(2, 20*p-10) * math.Sin((20*p-11.125)*c5)) / 2
			}
			return math.Pow(2, -20*p+10)*math.Sin((20*p-11.125)*c5)/2 + 1
		})
	default:
		return edges(func(p float64) float64 {
			return -math.Pow(2, 10*p-10) * math.Sin((p*10-10.75)*c4)
		})
	}
}

// ParseEasing parses names of the form "family-mode", e.g. "sine-in",
// "cubic-out" or "quad-in-out". A bare family name means in.
func ParseEasing(name string) (Easing, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, fam := range familyNames {
		if !strings.HasPrefix(name, fam) {
			continue
		}
		switch strings.TrimPrefix(name, fam) {
		case "", "-in":
			return Ease(Family(i), In), nil
		case "-out":
			return Ease(Family(i), Out), nil
		case "-in-out":
			return Ease(Family(i), InOut), nil
		}
	}
	return nil, fmt.Errorf("unknown easing %q", name)
}
