package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Web Mercator degrades past these latitudes.
const maxAnchorLatitude = 85.0

// Anchor ties the planar frame to a geographic origin so broadcast positions
// can carry GPS-style coordinates. The origin is stored in EPSG:3857 meters.
type Anchor struct {
	originX float64
	originY float64
}

// NewAnchor builds an anchor from an EPSG:4326 longitude and latitude.
func NewAnchor(longitude, latitude float64) (Anchor, error) {
	if math.Abs(longitude) > 180 || math.Abs(latitude) > maxAnchorLatitude {
		return Anchor{}, ErrInvalidCoordinates
	}
	if !IsFinite(geom.XY{X: longitude, Y: latitude}) {
		return Anchor{}, ErrInvalidCoordinates
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return Anchor{originX: x, originY: y}, nil
}

// Geographic converts a planar position back to EPSG:4326.
func (a Anchor) Geographic(p geom.XY) (longitude, latitude float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	longitude, latitude, _ = f(a.originX+p.X, a.originY+p.Y, 0)
	return longitude, latitude
}
