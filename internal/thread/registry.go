package thread

import (
	"time"

	"github.com/google/uuid"
)

// Registry owns the threads of one session, keyed by id. Like the rest of a
// session's state it is not safe for concurrent use.
type Registry struct {
	byID  map[string]*Thread
	order []string
	now   func() time.Time
	newID func() string
}

// NewRegistry creates an empty registry. A nil now uses time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		byID:  make(map[string]*Thread),
		now:   now,
		newID: func() string { return uuid.New().String() },
	}
}

// Create starts a new active thread.
func (r *Registry) Create(kind, title string) *Thread {
	t := newThread(r.newID(), kind, title, r.now)
	r.byID[t.ID] = t
	r.order = append(r.order, t.ID)
	return t
}

// Get returns the thread with the given id.
func (r *Registry) Get(id string) (*Thread, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// Len reports how many threads exist, in any status.
func (r *Registry) Len() int {
	return len(r.order)
}

// List returns every thread in creation order.
func (r *Registry) List() []*Thread {
	out := make([]*Thread, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Active returns the last n active threads in creation order.
func (r *Registry) Active(n int) []*Thread {
	return r.lastWithStatus(StatusActive, n)
}

// Completed returns the last n completed threads in creation order.
func (r *Registry) Completed(n int) []*Thread {
	return r.lastWithStatus(StatusCompleted, n)
}

func (r *Registry) lastWithStatus(s Status, n int) []*Thread {
	var matched []*Thread
	for _, id := range r.order {
		if t := r.byID[id]; t.Status == s {
			matched = append(matched, t)
		}
	}
	if n >= 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched
}
