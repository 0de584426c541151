package places

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/concierge/internal/storage"
)

// CacheStore is the subset of storage.Store used for caching.
type CacheStore interface {
	GetGeocode(ctx context.Context, location string, maxAge time.Duration) (storage.Geocode, error)
	PutGeocode(ctx context.Context, location string, lat, lng float64) error
	GetPlaceSearch(ctx context.Context, location, keyword string, radius int, maxAge time.Duration) (storage.PlaceSearch, error)
	PutPlaceSearch(ctx context.Context, ps storage.PlaceSearch) error
}

// CachedFinder serves repeated searches from SQLite. Only successful
// lookups are cached; failures always reach the wrapped Finder again.
type CachedFinder struct {
	next  Finder
	store CacheStore
	ttl   time.Duration
}

// NewCachedFinder wraps next. A ttl <= 0 keeps entries forever.
func NewCachedFinder(next Finder, store CacheStore, ttl time.Duration) *CachedFinder {
	return &CachedFinder{next: next, store: store, ttl: ttl}
}

// Find returns the cached result when fresh, otherwise asks the wrapped
// Finder and stores its answer.
func (f *CachedFinder) Find(ctx context.Context, location, keyword string, radius int) ([]Place, error) {
	ps, err := f.store.GetPlaceSearch(ctx, location, keyword, radius, f.ttl)
	switch {
	case err == nil:
		var cached []Place
		jerr := json.Unmarshal([]byte(ps.Payload), &cached)
		if jerr == nil {
			return cached, nil
		}
		slog.Warn("discarding unreadable cached search", "location", location, "error", jerr)
	case !errors.Is(err, storage.ErrNotFound):
		slog.Warn("place cache read failed", "error", err)
	}

	found, err := f.next.Find(ctx, location, keyword, radius)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(found)
	if err != nil {
		return found, nil
	}
	if err := f.store.PutPlaceSearch(ctx, storage.PlaceSearch{
		Location: location,
		Keyword:  keyword,
		Radius:   radius,
		Payload:  string(payload),
	}); err != nil {
		slog.Warn("place cache write failed", "error", err)
	}
	return found, nil
}

// Search is Find with failures degraded to an empty slice.
func (f *CachedFinder) Search(ctx context.Context, location, keyword string, radius int) []Place {
	return Search(ctx, f, location, keyword, radius)
}

// StaticMap delegates to the wrapped Finder when it can render maps.
func (f *CachedFinder) StaticMap(ctx context.Context, location string, found []Place) (string, error) {
	m, ok := f.next.(Mapper)
	if !ok {
		return "", ErrNoStaticMap
	}
	return m.StaticMap(ctx, location, found)
}

// StoreGeocodeCache adapts a CacheStore to GeocodeCache.
type StoreGeocodeCache struct {
	Store CacheStore
	TTL   time.Duration
}

// GetGeocode implements GeocodeCache.
func (c StoreGeocodeCache) GetGeocode(ctx context.Context, location string) (Origin, bool) {
	g, err := c.Store.GetGeocode(ctx, location, c.TTL)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("geocode cache read failed", "error", err)
		}
		return Origin{}, false
	}
	return Origin{Lat: g.Lat, Lng: g.Lng}, true
}

// PutGeocode implements GeocodeCache.
func (c StoreGeocodeCache) PutGeocode(ctx context.Context, location string, o Origin) {
	if err := c.Store.PutGeocode(ctx, location, o.Lat, o.Lng); err != nil {
		slog.Warn("geocode cache write failed", "error", err)
	}
}
