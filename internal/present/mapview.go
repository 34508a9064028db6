package present

import (
	"github.com/golang/geo/s2"
	polyline "github.com/twpayne/go-polyline"

	"routeplanner/internal/geo"
)

// Bounds is the lat/lng rectangle enclosing a set of points, for fitting a
// map viewport.
type Bounds struct {
	South     float64 `json:"south"`
	West      float64 `json:"west"`
	North     float64 `json:"north"`
	East      float64 `json:"east"`
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
}

// BoundsOf returns the bounding rectangle of points. Rectangles crossing the
// antimeridian have West > East.
func BoundsOf(points []geo.Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	lo, hi, c := rect.Lo(), rect.Hi(), rect.Center()
	return Bounds{
		South:     lo.Lat.Degrees(),
		West:      lo.Lng.Degrees(),
		North:     hi.Lat.Degrees(),
		East:      hi.Lng.Degrees(),
		CenterLat: c.Lat.Degrees(),
		CenterLng: c.Lng.Degrees(),
	}
}

// Polyline encodes the tour path, depot to depot, in the Google encoded
// polyline format.
func Polyline(points []geo.Point, order []int) string {
	coords := make([][]float64, 0, len(order))
	for _, idx := range order {
		coords = append(coords, []float64{points[idx].Lat, points[idx].Lng})
	}
	return string(polyline.EncodeCoords(coords))
}
