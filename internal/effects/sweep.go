package effects

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/transition"
)

// Direction is the edge a sweep grows from.
type Direction int

const (
	FromLeft Direction = iota
	FromRight
	FromTop
	FromBottom
	InsideOut
)

var directionNames = map[Direction]string{
	FromLeft:   "from-left",
	FromRight:  "from-right",
	FromTop:    "from-top",
	FromBottom: "from-bottom",
	InsideOut:  "inside-out",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts the names printed by Direction.String, with or
// without dashes. An empty string means FromLeft.
func ParseDirection(s string) (Direction, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if norm == "" {
		return FromLeft, nil
	}
	for d, name := range directionNames {
		if norm == name || norm == strings.ReplaceAll(name, "-", "") {
			return d, nil
		}
	}
	return 0, hal.InvalidInput("direction", fmt.Sprintf("unknown sweep direction %q", s))
}

// SweepRect returns the region of a w x h area uncovered at step. The
// region grows by 1/steps of the area each step and covers all of it on the
// last step.
func SweepRect(d Direction, w, h, step, steps int) image.Rectangle {
	ratio := math.Min(float64(step+1)/float64(steps), 1)
	sw := int(ratio * float64(w))
	sh := int(ratio * float64(h))

	switch d {
	case FromRight:
		return image.Rect(w-sw, 0, w, h)
	case FromTop:
		return image.Rect(0, 0, w, sh)
	case FromBottom:
		return image.Rect(0, h-sh, w, h)
	case InsideOut:
		x, y := (w-sw)/2, (h-sh)/2
		return image.Rect(x, y, x+sw, y+sh)
	default:
		return image.Rect(0, 0, sw, h)
	}
}

// Sweep reveals the source image over the current contents of the target,
// drawing only the growing region.
type Sweep struct {
	Direction Direction
}

func (s Sweep) DrawFrame(target hal.Surface, from, _ image.Image, f transition.Frame) error {
	r := SweepRect(s.Direction, f.Width, f.Height, f.Step, f.Steps)
	if r.Empty() {
		return nil
	}
	return target.Draw(Crop(from, r), r.Min.Add(target.Bounds().Min))
}
