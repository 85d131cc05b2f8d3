package effects

import (
	"fmt"
	"strings"

	"github.com/ivlev/pihat/internal/hal"
)

// Easing maps linear progress in [0,1] onto eased progress in [0,1].
type Easing func(t float64) float64

// Linear is the identity easing.
func Linear(t float64) float64 { return t }

// EaseInOutCubic starts and ends slowly.
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

// EaseOutQuad decelerates towards the end.
func EaseOutQuad(t float64) float64 {
	return 1 - pow(1-t, 2)
}

// ParseEasing resolves an easing by name. Empty means linear.
func ParseEasing(name string) (Easing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return Linear, nil
	case "ease-in-out", "cubic", "ease-in-out-cubic":
		return EaseInOutCubic, nil
	case "ease-out", "ease-out-quad":
		return EaseOutQuad, nil
	}
	return nil, hal.InvalidInput("easing", fmt.Sprintf("unknown easing %q", name))
}

func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}
