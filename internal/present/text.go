// Package present renders solved tours for people and map clients.
package present

import (
	"fmt"
	"io"
	"strings"

	"routeplanner/internal/geo"
	"routeplanner/internal/opt"
)

// Stop is one visit of a tour in visiting order.
type Stop struct {
	Seq     int     `json:"seq"`
	PointID int     `json:"pointId"`
	Label   string  `json:"label,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	// LegKm is the distance from the previous stop; 0 for the first.
	LegKm float64 `json:"legKm"`
	// CumulativeKm is the distance travelled when arriving here.
	CumulativeKm float64 `json:"cumulativeKm"`
	Role         string  `json:"role,omitempty"` // start, return
}

// Stops expands res.Order into Stops using the points it was solved for.
func Stops(points []geo.Point, res opt.Result) []Stop {
	out := make([]Stop, 0, len(res.Order))
	cum := 0.0
	for i, idx := range res.Order {
		p := points[idx]
		leg := 0.0
		if i > 0 {
			leg = geo.Haversine(points[res.Order[i-1]], p)
		}
		cum += leg
		s := Stop{Seq: i + 1, PointID: idx, Label: p.Label, Lat: p.Lat, Lng: p.Lng, LegKm: leg, CumulativeKm: cum}
		switch {
		case i == 0:
			s.Role = "start"
		case i == len(res.Order)-1:
			s.Role = "return"
		}
		out = append(out, s)
	}
	return out
}

// Text writes the numbered stop list and the total distance.
//
//	1. Antipolo Cathedral (Start)
//	2. Pinto Art Museum
//	...
//	5. Antipolo Cathedral (Return)
//	Total Distance: 31.42 km
func Text(w io.Writer, points []geo.Point, res opt.Result) error {
	var b strings.Builder
	last := len(res.Order) - 1
	for i, idx := range res.Order {
		fmt.Fprintf(&b, "%d. %s", i+1, label(points[idx]))
		switch i {
		case 0:
			b.WriteString(" (Start)")
		case last:
			b.WriteString(" (Return)")
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Total Distance: %.2f km\n", res.TotalDistance)
	if res.Optimal {
		fmt.Fprintf(&b, "Solver: %s (optimal)\n", res.Algorithm)
	} else {
		fmt.Fprintf(&b, "Solver: %s (heuristic, %d passes)\n", res.Algorithm, res.Passes)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func label(p geo.Point) string {
	if p.Label != "" {
		return p.Label
	}
	return fmt.Sprintf("Point %d (%.4f, %.4f)", p.ID, p.Lat, p.Lng)
}
