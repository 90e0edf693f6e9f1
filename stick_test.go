package carcontrol

import (
	"math"
	"testing"
)

func TestDirectionFromDelta(t *testing.T) {
	tests := []struct {
		dx, dy float64
		want   Direction
	}{
		{10, 2, Right},
		{-10, 2, Left},
		{2, 10, Forward},
		{2, -10, Backward},
		{0, 0, Backward},
		{5, 5, Forward},
		{-5, -5, Backward},
	}

	for _, tt := range tests {
		if got := DirectionFromDelta(tt.dx, tt.dy); got != tt.want {
			t.Errorf("DirectionFromDelta(%v, %v) = %v, want %v", tt.dx, tt.dy, got, tt.want)
		}
	}
}

func TestRotationAngle(t *testing.T) {
	tests := []struct {
		dx, dy float64
		want   float64
	}{
		{1, 0, 0},
		{0, 1, 90},
		{0, -1, -90},
		{1, 1, 45},
	}

	for _, tt := range tests {
		if got := RotationAngle(tt.dx, tt.dy); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RotationAngle(%v, %v) = %v, want %v", tt.dx, tt.dy, got, tt.want)
		}
	}

	if got := RotationAngle(-1, 0); math.Abs(math.Abs(got)-180) > 1e-9 {
		t.Errorf("RotationAngle(-1, 0) = %v, want ±180", got)
	}
}

func TestStickStartsNeutral(t *testing.T) {
	s := NewStick()
	if s.Direction() != Neutral {
		t.Errorf("Direction() = %v, want Neutral", s.Direction())
	}
	if s.Rotation() != 0 {
		t.Errorf("Rotation() = %v, want 0", s.Rotation())
	}
}

func TestStickDragAndRotate(t *testing.T) {
	s := NewStick()
	s.Drag(-10, 2)
	s.Rotate(0, 1)

	want := "Direction: Left\nRotation: 90.00°"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	s.Reset()
	if s.Direction() != Neutral || s.Rotation() != 0 {
		t.Errorf("after Reset: %v %v", s.Direction(), s.Rotation())
	}
}
