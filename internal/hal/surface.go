// Package hal holds the contracts shared by the drivers and the transition
// engine: the drawable Surface and the error taxonomy.
package hal

import (
	"image"
	"sync"
)

// Surface is anything frames can be drawn onto: an LCD panel, a terminal,
// a recorder or an in-memory framebuffer.
//
// Draw places frame so that frame.Bounds().Min lands on at. Pixels outside
// Bounds are clipped.
type Surface interface {
	Bounds() image.Rectangle
	Draw(frame image.Image, at image.Point) error
}

// SharedSurface serialises access to a Surface that several goroutines draw
// onto. The lock is held only for a single Draw.
type SharedSurface struct {
	mu sync.Mutex
	s  Surface
}

// Shared wraps s. Wrapping an already shared surface returns it unchanged.
func Shared(s Surface) *SharedSurface {
	if ss, ok := s.(*SharedSurface); ok {
		return ss
	}
	return &SharedSurface{s: s}
}

func (s *SharedSurface) Bounds() image.Rectangle {
	return s.s.Bounds()
}

func (s *SharedSurface) Draw(frame image.Image, at image.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.Draw(frame, at)
}

// Unwrap returns the underlying surface.
func (s *SharedSurface) Unwrap() Surface {
	return s.s
}
