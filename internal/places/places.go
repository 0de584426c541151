// Package places finds nearby venues through the Google Maps web services
// and builds the map links shown on place cards.
package places

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrNoAPIKey is returned when no Google Maps key is configured.
	ErrNoAPIKey = errors.New("google maps api key not configured")
	// ErrNoStaticMap is returned by finders that cannot render maps.
	ErrNoStaticMap = errors.New("static maps not supported")
)

// Origin is a geocoded search centre.
type Origin struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is one venue returned by a nearby search.
type Place struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	// Rating is 0 when the venue has no rating.
	Rating float64 `json:"rating"`
	// PriceLevel is -1 when unknown.
	PriceLevel     int      `json:"price_level"`
	Types          []string `json:"types"`
	Vicinity       string   `json:"vicinity"`
	OpenNow        *bool    `json:"open_now,omitempty"`
	Lat            float64  `json:"lat,omitempty"`
	Lng            float64  `json:"lng,omitempty"`
	HasLocation    bool     `json:"has_location"`
	MapsLink       string   `json:"maps_link"`
	DirectionsLink string   `json:"directions_link"`
}

// Finder looks up open venues matching keyword within radius metres of
// location.
type Finder interface {
	Find(ctx context.Context, location, keyword string, radius int) ([]Place, error)
}

// Mapper renders a static map image URL marking found around location.
type Mapper interface {
	StaticMap(ctx context.Context, location string, found []Place) (string, error)
}

// Search runs f and degrades any failure to an empty result. Missing
// configuration is logged at debug level, everything else at warn.
func Search(ctx context.Context, f Finder, location, keyword string, radius int) []Place {
	found, err := f.Find(ctx, location, keyword, radius)
	if err != nil {
		if errors.Is(err, ErrNoAPIKey) {
			slog.Debug("places search skipped", "reason", err)
		} else {
			slog.Warn("places search failed", "location", location, "keyword", keyword, "error", err)
		}
		return []Place{}
	}
	if found == nil {
		return []Place{}
	}
	return found
}
