package carcontrol

import (
	"fmt"
	"strings"
)

// Direction is a movement command understood by the car.
type Direction int

const (
	Neutral Direction = iota
	Forward
	Backward
	Left
	Right
	Rotate
)

// Directions lists every transmittable direction in button order.
var Directions = []Direction{Forward, Left, Rotate, Right, Backward}

var directionLabels = map[Direction]string{
	Neutral:  "Neutral",
	Forward:  "Forward",
	Backward: "Backward",
	Left:     "Left",
	Right:    "Right",
	Rotate:   "Rotate",
}

var directionGlyphs = map[Direction]string{
	Neutral:  "·",
	Forward:  "↑",
	Backward: "↓",
	Left:     "←",
	Right:    "→",
	Rotate:   "⟳",
}

// String returns the direction label, which is also its wire payload.
func (d Direction) String() string {
	if s, ok := directionLabels[d]; ok {
		return s
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Glyph returns the arrow drawn on the direction's button.
func (d Direction) Glyph() string {
	if s, ok := directionGlyphs[d]; ok {
		return s
	}
	return "?"
}

// Payload returns the exact bytes written to the peripheral.
// There is no delimiter, checksum or acknowledgement.
func (d Direction) Payload() []byte {
	return []byte(d.String())
}

// IsValid reports whether d is one of the defined directions.
func (d Direction) IsValid() bool {
	_, ok := directionLabels[d]
	return ok
}

// Transmittable reports whether d is ever sent to the car.
// Neutral is a display state only.
func (d Direction) Transmittable() bool {
	return d.IsValid() && d != Neutral
}

// ParseDirection parses a label (case-insensitive) or a button glyph.
func ParseDirection(s string) (Direction, error) {
	s = strings.TrimSpace(s)
	for d, label := range directionLabels {
		if strings.EqualFold(s, label) || s == directionGlyphs[d] {
			return d, nil
		}
	}
	return Neutral, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}
