package view

import (
	"fmt"
	"math"
	"strings"
)

// Easing maps linear progress in [0,1] onto eased progress. Every kind is
// monotonic with Apply(0) == 0 and Apply(1) == 1.
type Easing int

const (
	Linear Easing = iota
	EaseIn
	EaseOut
	EaseInOut
	Exponential
)

var easingNames = [...]string{
	Linear:      "linear",
	EaseIn:      "ease-in",
	EaseOut:     "ease-out",
	EaseInOut:   "ease-in-out",
	Exponential: "exponential",
}

func (e Easing) String() string {
	if e < 0 || int(e) >= len(easingNames) {
		return fmt.Sprintf("Easing(%d)", int(e))
	}
	return easingNames[e]
}

// ParseEasing accepts the names returned by String, case-insensitively.
func ParseEasing(s string) (Easing, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range easingNames {
		if name == s {
			return Easing(i), nil
		}
	}
	return Linear, fmt.Errorf("unknown easing %q", s)
}

// Apply eases alpha, clamping it to [0,1] first.
func (e Easing) Apply(alpha float64) float64 {
	switch {
	case alpha <= 0 || math.IsNaN(alpha):
		return 0
	case alpha >= 1:
		return 1
	}
	switch e {
	case EaseIn:
		return 1 - math.Cos(alpha*math.Pi/2)
	case EaseOut:
		return math.Sin(alpha * math.Pi / 2)
	case EaseInOut:
		return (1 - math.Cos(alpha*math.Pi)) / 2
	case Exponential:
		return (math.Exp2(10*alpha) - 1) / 1023
	default:
		return alpha
	}
}
