package geo

import (
	"errors"
	"math"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"
)

func TestBoundsValidate_Valid(t *testing.T) {
	b := Bounds{Width: 1000, Height: 700}

	if err := b.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBoundsValidate_Degenerate(t *testing.T) {
	cases := []Bounds{
		{Width: 0, Height: 700},
		{Width: 1000, Height: 0},
		{Width: -5, Height: 700},
		{Width: math.NaN(), Height: 700},
		{Width: 1000, Height: math.Inf(1)},
	}

	for _, b := range cases {
		err := b.Validate()
		if err == nil {
			t.Errorf("expected error for %+v", b)
		}
		if !errors.Is(err, ErrInvalidBounds) {
			t.Errorf("expected ErrInvalidBounds for %+v, got %v", b, err)
		}
	}
}

func TestBoundsContains_EdgesAndOutside(t *testing.T) {
	b := Bounds{Width: 100, Height: 50}

	if !b.Contains(geom.XY{X: 0, Y: 0}) {
		t.Error("expected origin to be inside")
	}
	if !b.Contains(geom.XY{X: 100, Y: 50}) {
		t.Error("expected far corner to be inside")
	}
	if b.Contains(geom.XY{X: 100.01, Y: 25}) {
		t.Error("expected point past the right wall to be outside")
	}
	if b.Contains(geom.XY{X: 50, Y: -0.01}) {
		t.Error("expected point below the bottom wall to be outside")
	}
}

func TestUnitToward_Direction(t *testing.T) {
	u := UnitToward(geom.XY{X: 1, Y: 1}, geom.XY{X: 4, Y: 5})

	if math.Abs(u.Length()-1) > 1e-12 {
		t.Errorf("expected unit length, got %f", u.Length())
	}
	if math.Abs(u.X-0.6) > 1e-12 || math.Abs(u.Y-0.8) > 1e-12 {
		t.Errorf("expected (0.6, 0.8), got (%f, %f)", u.X, u.Y)
	}
}

func TestUnitToward_Coincident(t *testing.T) {
	u := UnitToward(geom.XY{X: 3, Y: 3}, geom.XY{X: 3, Y: 3})

	if u.X != 0 || u.Y != 0 {
		t.Errorf("expected zero vector, got (%f, %f)", u.X, u.Y)
	}
}

func TestHeading_Quadrants(t *testing.T) {
	cases := []struct {
		v    geom.XY
		want float64
	}{
		{geom.XY{X: 1, Y: 0}, 0},
		{geom.XY{X: 0, Y: 1}, math.Pi / 2},
		{geom.XY{X: -1, Y: 0}, math.Pi},
		{geom.XY{X: 0, Y: -1}, 3 * math.Pi / 2},
	}

	for _, c := range cases {
		got := Heading(c.v)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("heading of (%f,%f): expected %f, got %f", c.v.X, c.v.Y, c.want, got)
		}
	}
}

func TestHeading_Stationary(t *testing.T) {
	if h := Heading(geom.XY{}); h != 0 {
		t.Errorf("expected 0 for stationary, got %f", h)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(geom.XY{X: 1, Y: -2}) {
		t.Error("expected finite vector to pass")
	}
	if IsFinite(geom.XY{X: math.NaN(), Y: 0}) {
		t.Error("expected NaN component to fail")
	}
	if IsFinite(geom.XY{X: 0, Y: math.Inf(-1)}) {
		t.Error("expected Inf component to fail")
	}
}

func TestNewAnchor_RejectsOutOfRange(t *testing.T) {
	cases := []struct {
		lon, lat float64
	}{
		{181, 0},
		{-181, 0},
		{0, 86},
		{0, -86},
		{math.NaN(), 0},
	}

	for _, c := range cases {
		_, err := NewAnchor(c.lon, c.lat)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("expected ErrInvalidCoordinates for (%f,%f), got %v", c.lon, c.lat, err)
		}
	}
}

func TestAnchorGeographic_OriginRoundTrip(t *testing.T) {
	anchor, err := NewAnchor(-83.0458, 42.3314)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lon, lat := anchor.Geographic(geom.XY{})
	if math.Abs(lon-(-83.0458)) > 1e-6 {
		t.Errorf("expected longitude -83.0458, got %f", lon)
	}
	if math.Abs(lat-42.3314) > 1e-6 {
		t.Errorf("expected latitude 42.3314, got %f", lat)
	}
}

func TestAnchorGeographic_OffsetsMoveEastAndNorth(t *testing.T) {
	anchor, err := NewAnchor(-83.0458, 42.3314)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lon0, lat0 := anchor.Geographic(geom.XY{})
	lon1, lat1 := anchor.Geographic(geom.XY{X: 500, Y: 500})

	if lon1 <= lon0 {
		t.Errorf("expected +X to move east: %f -> %f", lon0, lon1)
	}
	if lat1 <= lat0 {
		t.Errorf("expected +Y to move north: %f -> %f", lat0, lat1)
	}
}
