package softgl

import (
	"math"
	"sync/atomic"
	"time"
)

// Shape is one animated primitive of the demo scene.
type Shape struct {
	X, Y   float64 // Centre, pixels
	VX, VY float64 // Velocity, pixels per second
	Angle  float64 // Radians
	Spin   float64 // Radians per second
	Size   float64
	Hue    float64 // Degrees
	Circle bool
}

// Snapshot is the immutable scene state published by one assembly pass.
type Snapshot struct {
	Pass    int64
	Elapsed time.Duration
	Shapes  []Shape
}

// Scene bounces shapes around the window. Update runs on the assembly
// goroutine and publishes a fresh Snapshot; the pipeline draws the latest
// published one, so the two never share mutable state.
type Scene struct {
	width, height float64
	shapes        []Shape

	passes   atomic.Int64
	snapshot atomic.Pointer[Snapshot]
}

// NewScene lays out n shapes deterministically over a width x height area.
func NewScene(width, height, n int) *Scene {
	s := &Scene{width: float64(width), height: float64(height)}
	for i := 0; i < n; i++ {
		f := float64(i)
		size := 6 + math.Mod(f*7, 18)
		s.shapes = append(s.shapes, Shape{
			X:      size + math.Mod(f*53, math.Max(s.width-2*size, 1)),
			Y:      size + math.Mod(f*31, math.Max(s.height-2*size, 1)),
			VX:     40 + math.Mod(f*17, 60),
			VY:     30 + math.Mod(f*23, 50),
			Spin:   1 + math.Mod(f, 3),
			Size:   size,
			Hue:    math.Mod(f*47, 360),
			Circle: i%2 == 1,
		})
	}
	return s
}

// Update advances every shape by elapsed and publishes the result.
func (s *Scene) Update(elapsed time.Duration) {
	dt := elapsed.Seconds()
	for i := range s.shapes {
		sh := &s.shapes[i]
		sh.X, sh.VX = bounce(sh.X+sh.VX*dt, sh.VX, sh.Size, s.width-sh.Size)
		sh.Y, sh.VY = bounce(sh.Y+sh.VY*dt, sh.VY, sh.Size, s.height-sh.Size)
		sh.Angle = math.Mod(sh.Angle+sh.Spin*dt, 2*math.Pi)
	}

	shapes := make([]Shape, len(s.shapes))
	copy(shapes, s.shapes)
	s.snapshot.Store(&Snapshot{
		Pass:    s.passes.Add(1),
		Elapsed: elapsed,
		Shapes:  shapes,
	})
}

// Snapshot returns the latest published state, or nil before the first pass.
func (s *Scene) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Scene) Passes() int64 {
	return s.passes.Load()
}

// bounce reflects pos into [lo, hi], flipping the velocity on contact.
func bounce(pos, vel, lo, hi float64) (float64, float64) {
	if hi <= lo {
		return lo, 0
	}
	switch {
	case pos < lo:
		return lo + (lo - pos), math.Abs(vel)
	case pos > hi:
		return hi - (pos - hi), -math.Abs(vel)
	default:
		return pos, vel
	}
}
