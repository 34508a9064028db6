// Package model holds the request and record types shared by the API and the stores.
package model

import (
	"time"

	"routeplanner/internal/geo"
	"routeplanner/internal/opt"
	"routeplanner/internal/present"
)

// PointIn is one stop of a tour request. Coordinates are already geocoded;
// Label is carried through untouched. Range checks happen in the geo package
// so they surface as invalid-coordinate errors.
type PointIn struct {
	Label string   `json:"label,omitempty" yaml:"label,omitempty" validate:"max=200"`
	Lat   *float64 `json:"lat" yaml:"lat" validate:"required"`
	Lng   *float64 `json:"lng" yaml:"lng" validate:"required"`
}

// TourRequest asks for the shortest closed tour over Points from Depot.
type TourRequest struct {
	Label           string    `json:"label,omitempty" yaml:"label,omitempty" validate:"max=200"`
	Depot           int       `json:"depot" yaml:"depot"`
	Points          []PointIn `json:"points" yaml:"points" validate:"dive"`
	Mode            string    `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=auto exact heuristic"`
	ExactMaxN       int       `json:"exactMaxN,omitempty" yaml:"exactMaxN,omitempty" validate:"gte=0,lte=16"`
	MaxTwoOptPasses int       `json:"maxTwoOptPasses,omitempty" yaml:"maxTwoOptPasses,omitempty" validate:"gte=0"`
}

// GeoPoints converts the request points into solver points, IDs by position.
func (r TourRequest) GeoPoints() []geo.Point {
	out := make([]geo.Point, len(r.Points))
	for i, p := range r.Points {
		out[i] = geo.Point{ID: i, Label: p.Label}
		if p.Lat != nil {
			out[i].Lat = *p.Lat
		}
		if p.Lng != nil {
			out[i].Lng = *p.Lng
		}
	}
	return out
}

// Tour is a solved and stored tour.
type Tour struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	Label     string         `json:"label,omitempty"`
	Depot     int            `json:"depot"`
	Points    []geo.Point    `json:"points"`
	Result    opt.Result     `json:"result"`
	Stops     []present.Stop `json:"stops,omitempty"`
	Polyline  string         `json:"polyline,omitempty"`
	Bounds    present.Bounds `json:"bounds"`
	Cached    bool           `json:"cached,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Subscription registers a webhook URL for tour events.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"-"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"-"`
	URL      string   `json:"url" validate:"required,url"`
	Events   []string `json:"events" validate:"required,min=1,dive,oneof=tour.solved tour.deleted"`
	Secret   string   `json:"secret,omitempty"`
}

// Event types emitted to subscribers and stream listeners.
const (
	EventTourSolved  = "tour.solved"
	EventTourDeleted = "tour.deleted"
)
