package carcontrol

import (
	"fmt"
	"math"
	"sync"
)

// DirectionFromDelta picks the dominant axis of a drag and returns the
// matching direction. Ties go to the vertical axis.
//
// Positive dy (a downward drag in screen coordinates) maps to Forward.
func DirectionFromDelta(dx, dy float64) Direction {
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy > 0 {
		return Forward
	}
	return Backward
}

// RotationAngle returns atan2(dy, dx) in degrees, in (-180, 180].
func RotationAngle(dx, dy float64) float64 {
	return math.Atan2(dy, dx) * (180 / math.Pi)
}

// Stick tracks a drag-gesture joystick: the direction of the latest drag
// and the angle of the latest rotation drag.
//
// Stick is display-only. Nothing it computes is sent to the car.
type Stick struct {
	mu        sync.RWMutex
	direction Direction
	rotation  float64
}

// NewStick returns a stick at rest.
func NewStick() *Stick {
	return &Stick{direction: Neutral}
}

// Drag updates the direction from a drag delta and returns it.
func (s *Stick) Drag(dx, dy float64) Direction {
	d := DirectionFromDelta(dx, dy)
	s.mu.Lock()
	s.direction = d
	s.mu.Unlock()
	return d
}

// Rotate updates the rotation angle from a drag delta and returns it.
func (s *Stick) Rotate(dx, dy float64) float64 {
	a := RotationAngle(dx, dy)
	s.mu.Lock()
	s.rotation = a
	s.mu.Unlock()
	return a
}

// Reset returns the stick to Neutral and 0°.
func (s *Stick) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.direction = Neutral
	s.rotation = 0
}

// Direction returns the last drag direction.
func (s *Stick) Direction() Direction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direction
}

// Rotation returns the last rotation angle in degrees.
func (s *Stick) Rotation() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotation
}

// String renders the two readout lines.
func (s *Stick) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("Direction: %s\nRotation: %.2f°", s.direction, s.rotation)
}
