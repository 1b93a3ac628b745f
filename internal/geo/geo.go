package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
)

// The simulated world is a local planar frame measured in meters and aligned
// with EPSG:3857, so positions stay interpretable as projected coordinates
// once an anchor offsets them into the real world.

// ErrInvalidBounds is returned when the simulation area is degenerate.
var ErrInvalidBounds = errors.New("invalid simulation bounds")

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Bounds is the rectangular simulation area with its origin at (0,0).
type Bounds struct {
	Width  float64
	Height float64
}

// Validate rejects non-positive or non-finite dimensions.
func (b Bounds) Validate() error {
	if !IsFinite(geom.XY{X: b.Width, Y: b.Height}) {
		return ErrInvalidBounds
	}
	if b.Width <= 0 || b.Height <= 0 {
		return ErrInvalidBounds
	}
	return nil
}

// Contains reports whether p lies inside the area, boundary included.
func (b Bounds) Contains(p geom.XY) bool {
	return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y <= b.Height
}

// IsFinite reports whether both components are real numbers.
func IsFinite(v geom.XY) bool {
	if math.IsNaN(v.X) || math.IsInf(v.X, 0) {
		return false
	}
	if math.IsNaN(v.Y) || math.IsInf(v.Y, 0) {
		return false
	}
	return true
}

// UnitToward returns the unit vector pointing from one position to another,
// or the zero vector when both positions coincide.
func UnitToward(from, to geom.XY) geom.XY {
	d := to.Sub(from)
	if d.Length() == 0 {
		return geom.XY{}
	}
	return d.Unit()
}

// Heading returns the direction of travel in radians from the +X axis,
// normalized to [0, 2*pi). A stationary vehicle keeps heading 0.
func Heading(v geom.XY) float64 {
	if v.X == 0 && v.Y == 0 {
		return 0
	}
	h := math.Atan2(v.Y, v.X)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}
