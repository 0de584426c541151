package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}

func searchKey(location, keyword string, radius int) string {
	return fmt.Sprintf("%s|%s|%d", normalizeLocation(location), strings.ToLower(strings.TrimSpace(keyword)), radius)
}

// --- Geocodes ---

// PutGeocode stores or refreshes the coordinates for location.
func (s *Store) PutGeocode(ctx context.Context, location string, lat, lng float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (location, lat, lng, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET lat = excluded.lat, lng = excluded.lng, created_at = excluded.created_at`,
		normalizeLocation(location), lat, lng, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("saving geocode for %q: %w", location, err)
	}
	return nil
}

// GetGeocode returns cached coordinates no older than maxAge. A maxAge of
// zero or less disables expiry.
func (s *Store) GetGeocode(ctx context.Context, location string, maxAge time.Duration) (Geocode, error) {
	g := Geocode{Location: normalizeLocation(location)}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT lat, lng, created_at FROM geocode_cache WHERE location = ?`, g.Location,
	).Scan(&g.Lat, &g.Lng, &createdAt)
	if err == sql.ErrNoRows {
		return Geocode{}, ErrNotFound
	}
	if err != nil {
		return Geocode{}, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return Geocode{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.expired(g.CreatedAt, maxAge) {
		return Geocode{}, ErrNotFound
	}
	return g, nil
}

// --- Place searches ---

// PutPlaceSearch stores or refreshes a nearby-search response.
func (s *Store) PutPlaceSearch(ctx context.Context, ps PlaceSearch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO place_searches (cache_key, location, keyword, radius, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload_json = excluded.payload_json, created_at = excluded.created_at`,
		searchKey(ps.Location, ps.Keyword, ps.Radius), normalizeLocation(ps.Location), ps.Keyword, ps.Radius,
		ps.Payload, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("saving place search: %w", err)
	}
	return nil
}

// GetPlaceSearch returns a cached response no older than maxAge. A maxAge of
// zero or less disables expiry.
func (s *Store) GetPlaceSearch(ctx context.Context, location, keyword string, radius int, maxAge time.Duration) (PlaceSearch, error) {
	var ps PlaceSearch
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT location, keyword, radius, payload_json, created_at
		FROM place_searches WHERE cache_key = ?`, searchKey(location, keyword, radius),
	).Scan(&ps.Location, &ps.Keyword, &ps.Radius, &ps.Payload, &createdAt)
	if err == sql.ErrNoRows {
		return PlaceSearch{}, ErrNotFound
	}
	if err != nil {
		return PlaceSearch{}, err
	}
	if ps.CreatedAt, err = parseTime(createdAt); err != nil {
		return PlaceSearch{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.expired(ps.CreatedAt, maxAge) {
		return PlaceSearch{}, ErrNotFound
	}
	return ps, nil
}

// PruneCache deletes cached geocodes and searches older than maxAge and
// reports how many rows were removed.
func (s *Store) PruneCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := formatTime(s.now().Add(-maxAge))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning prune transaction: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"geocode_cache", "place_searches"} {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, cutoff)
		if err != nil {
			return 0, fmt.Errorf("pruning %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return total, nil
}

func (s *Store) expired(createdAt time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && s.now().Sub(createdAt) > maxAge
}
