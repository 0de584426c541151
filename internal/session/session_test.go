package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/concierge/internal/ads"
	"github.com/kalambet/concierge/internal/thread"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *manualClock {
	return &manualClock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func TestCreate_DefaultLocation(t *testing.T) {
	m := NewManager(Options{DefaultLocation: "Baguio, Philippines", Clock: newClock()})

	s := m.Create("")
	assert.Equal(t, "Baguio, Philippines", s.Location)
	assert.NotEmpty(t, s.ID)
	assert.NotNil(t, s.Behavior)
	assert.NotNil(t, s.Threads)
	assert.NotNil(t, s.Ads)

	other := m.Create("Kyoto")
	assert.Equal(t, "Kyoto", other.Location)
	assert.NotEqual(t, s.ID, other.ID)
	assert.Equal(t, 2, m.Len())
	assert.ElementsMatch(t, []string{s.ID, other.ID}, m.IDs())
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(Options{Clock: newClock()})
	a := m.Create("Lisbon")
	b := m.Create("Lisbon")

	a.Behavior.RecordInteraction("romantic wine bar", "", a.Clock.Now())
	a.Choices.Accept("restaurant", "liked it")
	a.Threads.Create(thread.TypeGeneral, "hello")

	assert.Equal(t, "romantic", a.Behavior.DominantPersona())
	assert.Equal(t, "general", b.Behavior.DominantPersona())
	assert.Empty(t, b.Behavior.Choices().Chosen)
	assert.Equal(t, 0, b.Threads.Len())
}

func TestGet(t *testing.T) {
	m := NewManager(Options{Clock: newClock()})
	s := m.Create("Rome")

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	m := NewManager(Options{Clock: newClock()})
	s := m.Create("Rome")

	require.NoError(t, m.Delete(s.ID))
	assert.ErrorIs(t, m.Delete(s.ID), ErrNotFound)
	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweep_ExpiresIdleSessions(t *testing.T) {
	clock := newClock()
	m := NewManager(Options{Clock: clock, IdleTimeout: time.Hour})

	stale := m.Create("a")
	fresh := m.Create("b")

	clock.advance(45 * time.Minute)
	_, err := m.Get(fresh.ID)
	require.NoError(t, err)

	clock.advance(30 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	_, err = m.Get(stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestSweep_DisabledWithoutTimeout(t *testing.T) {
	clock := newClock()
	m := NewManager(Options{Clock: clock})
	m.Create("a")

	clock.advance(1000 * time.Hour)
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestCurrentThread(t *testing.T) {
	m := NewManager(Options{Clock: newClock()})
	s := m.Create("Baguio")

	_, ok := s.CurrentThread()
	assert.False(t, ok)

	th := s.Threads.Create(thread.TypeFood, "Food in Baguio")
	s.CurrentThreadID = th.ID
	got, ok := s.CurrentThread()
	require.True(t, ok)
	assert.Same(t, th, got)

	s.CurrentThreadID = "gone"
	_, ok = s.CurrentThread()
	assert.False(t, ok)
}

func TestCurrentThread_SkipsInactive(t *testing.T) {
	m := NewManager(Options{Clock: newClock()})
	s := m.Create("Baguio")

	done := s.Threads.Create(thread.TypeFood, "Food in Baguio")
	require.NoError(t, done.MarkCompleted())
	s.CurrentThreadID = done.ID
	_, ok := s.CurrentThread()
	assert.False(t, ok, "completed thread continued")

	gone := s.Threads.Create(thread.TypeActivities, "Activities in Baguio")
	require.NoError(t, gone.Archive())
	s.CurrentThreadID = gone.ID
	_, ok = s.CurrentThread()
	assert.False(t, ok, "archived thread continued")
}

func TestReset_KeepsThreads(t *testing.T) {
	m := NewManager(Options{Clock: newClock()})
	s := m.Create("Baguio")
	s.Behavior.RecordInteraction("museum", "", s.Clock.Now())
	s.Threads.Create(thread.TypeGeneral, "x")

	s.Reset()
	assert.Equal(t, "general", s.Behavior.DominantPersona())
	assert.Equal(t, 1, s.Threads.Len())
}

func TestNewAdsPerSession(t *testing.T) {
	calls := 0
	m := NewManager(Options{
		Clock: newClock(),
		NewAds: func() *ads.Manager {
			calls++
			return ads.NewManager(nil, 1, nil)
		},
	})
	a := m.Create("x")
	b := m.Create("y")

	assert.Equal(t, 2, calls)
	assert.NotSame(t, a.Ads, b.Ads)
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(Options{Clock: newClock(), IdleTimeout: time.Hour})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := m.Create("x")
			s.Lock()
			s.Behavior.RecordInteraction("food", "", s.Clock.Now())
			s.Unlock()
			_, _ = m.Get(s.ID)
			m.Sweep()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.Len())
}
