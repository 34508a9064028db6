// Package integrations defines sources that supply already-geocoded stops.
package integrations

import (
	"context"

	"routeplanner/internal/geo"
)

// PointSource yields the stops of one tour request. Geocoding, if any,
// happens before a source is read; sources only carry coordinates.
type PointSource interface {
	Name() string
	FetchPoints(ctx context.Context) ([]geo.Point, error)
}
