package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist or has expired.
var ErrNotFound = errors.New("not found")

// Geocode is a cached location lookup.
type Geocode struct {
	Location  string
	Lat       float64
	Lng       float64
	CreatedAt time.Time
}

// PlaceSearch is a cached nearby-search response. Payload holds the JSON
// encoded result list exactly as the places client produced it.
type PlaceSearch struct {
	Location  string
	Keyword   string
	Radius    int
	Payload   string
	CreatedAt time.Time
}

// Job is a unit of background work.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
