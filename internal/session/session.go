// Package session keeps the per-user state of the concierge: behaviour,
// threads, ad rationing and the location being explored. Sessions live only
// in memory and expire after a period of inactivity.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/concierge/internal/ads"
	"github.com/kalambet/concierge/internal/behavior"
	"github.com/kalambet/concierge/internal/thread"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Session is one user's conversation state. Callers must hold the session
// lock (Lock/Unlock) while reading or mutating any of its fields.
type Session struct {
	ID        string
	CreatedAt time.Time

	Location        string
	CurrentThreadID string

	Behavior *behavior.Store
	Choices  *behavior.ChoiceTracker
	Threads  *thread.Registry
	Ads      *ads.Manager
	Clock    behavior.Clock

	mu       sync.Mutex
	lastSeen time.Time
}

// Lock serialises work on the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// CurrentThread returns the thread the next chat turn continues, if any.
// Completed and archived threads are never continued.
func (s *Session) CurrentThread() (*thread.Thread, bool) {
	if s.CurrentThreadID == "" {
		return nil, false
	}
	t, err := s.Threads.Get(s.CurrentThreadID)
	if err != nil || t.Status != thread.StatusActive {
		return nil, false
	}
	return t, true
}

// Reset clears the learned behaviour. Threads are kept.
func (s *Session) Reset() {
	s.Behavior.Clear()
}

// Options configures a Manager.
type Options struct {
	// DefaultLocation is used when a session is created without one.
	DefaultLocation string
	// IdleTimeout expires sessions not touched for this long. Zero disables
	// expiry.
	IdleTimeout time.Duration
	// NewAds builds the ad manager for a new session. Nil uses the built-in
	// inventory.
	NewAds func() *ads.Manager
	// Clock defaults to the system clock.
	Clock behavior.Clock
}

// Manager is the process-wide registry of sessions. It is safe for
// concurrent use; the sessions it hands out are not, see Session.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager.
func NewManager(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = behavior.SystemClock()
	}
	if opts.NewAds == nil {
		opts.NewAds = func() *ads.Manager { return ads.NewManager(nil, 0, nil) }
	}
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// Create starts a session exploring location, or the default location when
// location is empty.
func (m *Manager) Create(location string) *Session {
	if location == "" {
		location = m.opts.DefaultLocation
	}
	now := m.opts.Clock.Now()
	store := behavior.NewStore()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Location:  location,
		Behavior:  store,
		Choices:   behavior.NewChoiceTracker(store, m.opts.Clock),
		Threads:   thread.NewRegistry(m.opts.Clock.Now),
		Ads:       m.opts.NewAds(),
		Clock:     m.opts.Clock,
		lastSeen:  now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Debug("session created", "id", s.ID, "location", location)
	return s
}

// Get returns the session with id and marks it as recently used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.lastSeen = m.opts.Clock.Now()
	return s, nil
}

// Delete ends a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs lists the live session ids.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Sweep removes sessions idle for longer than the idle timeout and returns
// how many were removed.
func (m *Manager) Sweep() int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := m.opts.Clock.Now().Add(-m.opts.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Info("expired idle sessions", "count", n)
			}
		}
	}
}
