package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/concierge/internal/behavior"
	"github.com/kalambet/concierge/internal/concierge"
	"github.com/kalambet/concierge/internal/jobs"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/places"
	"github.com/kalambet/concierge/internal/session"
	"github.com/kalambet/concierge/internal/thread"
)

const (
	defaultThreadLimit = 5
	maxPlacesRadius    = 50000
)

type sessionHandlerFunc func(w http.ResponseWriter, r *http.Request, s *session.Session)

// withSession resolves {id} and holds the session lock for the duration of
// the handler, so requests for one session run one at a time.
func withSession(deps AppDeps, h sessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}
		s.Lock()
		defer s.Unlock()
		h(w, r, s)
	}
}

type sessionView struct {
	ID              string             `json:"id"`
	Location        string             `json:"location"`
	CurrentThreadID string             `json:"current_thread_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	Greeting        string             `json:"greeting,omitempty"`
	Insights        concierge.Insights `json:"insights"`
}

func viewSession(deps AppDeps, s *session.Session) sessionView {
	return sessionView{
		ID:              s.ID,
		Location:        s.Location,
		CurrentThreadID: s.CurrentThreadID,
		CreatedAt:       s.CreatedAt,
		Insights:        deps.Concierge.Insights(s),
	}
}

type locationRequest struct {
	Location string `json:"location"`
}

func handleCreateSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req locationRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}

		s := deps.Sessions.Create(strings.TrimSpace(req.Location))
		s.Lock()
		defer s.Unlock()

		prefetch(deps, r, s.Location)
		view := viewSession(deps, s)
		view.Greeting = deps.Concierge.Proactive(s)
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleGetSession(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		writeJSON(w, http.StatusOK, viewSession(deps, s))
	}
}

func handlePatchSession(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req locationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		loc := strings.TrimSpace(req.Location)
		if loc == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "location is required")
			return
		}
		if loc != s.Location {
			s.Location = loc
			prefetch(deps, r, loc)
		}
		writeJSON(w, http.StatusOK, viewSession(deps, s))
	}
}

func handleDeleteSession(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusNotFound, "not_found_error", "session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// prefetch queues a cache warm-up of the quick-action searches for location.
// Failure only costs latency later, so it is logged and ignored.
func prefetch(deps AppDeps, r *http.Request, location string) {
	if deps.Jobs == nil || location == "" {
		return
	}
	if err := jobs.EnqueuePrefetch(r.Context(), deps.Jobs, location, concierge.PrefetchKeywords(), concierge.QuickActionRadius); err != nil {
		slog.Warn("queueing places prefetch failed", "location", location, "error", err)
	}
}

type chatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

func handleChat(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		reply, err := deps.Concierge.Respond(r.Context(), s, req.ThreadID, req.Message)
		switch {
		case errors.Is(err, concierge.ErrEmptyInput):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		case errors.Is(err, thread.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found_error", "thread not found")
			return
		case errors.Is(err, thread.ErrInvalidTransition):
			httpError(w, http.StatusConflict, "conflict_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "chat failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, replyView{
			ThreadID: reply.Thread.ID,
			Title:    reply.Thread.DisplayTitle(),
			Persona:  reply.Persona,
			Message:  reply.Message,
		})
	}
}

type replyView struct {
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
	Persona  string `json:"persona"`
	Message  string `json:"message"`
}

func handleQuickAction(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		res, err := deps.Concierge.QuickAction(r.Context(), s, chi.URLParam(r, "action"))
		if errors.Is(err, concierge.ErrUnknownAction) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v (want one of %s)", err, strings.Join(concierge.QuickActions, ", "))
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "quick action failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type choiceRequest struct {
	Type     string `json:"type"`
	Accepted bool   `json:"accepted"`
	Detail   string `json:"detail"`
}

func handleRecordChoice(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req choiceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Type) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type is required")
			return
		}
		if req.Accepted {
			s.Choices.Accept(req.Type, req.Detail)
		} else {
			s.Choices.Skip(req.Type, req.Detail)
		}
		writeJSON(w, http.StatusOK, deps.Concierge.Insights(s))
	}
}

func handleProactive(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		writeJSON(w, http.StatusOK, map[string]string{"message": deps.Concierge.Proactive(s)})
	}
}

type personaView struct {
	Persona       string          `json:"persona"`
	Profile       persona.Profile `json:"profile"`
	Scores        map[string]int  `json:"scores"`
	PreferredTime string          `json:"preferred_time"`
}

func handleSessionPersona(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		writeJSON(w, http.StatusOK, personaView{
			Persona:       s.Behavior.DominantPersona(),
			Profile:       deps.Concierge.Profile(s),
			Scores:        s.Behavior.Scores(),
			PreferredTime: s.Behavior.PreferredTime(),
		})
	}
}

func handleInsights(deps AppDeps) sessionHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		writeJSON(w, http.StatusOK, deps.Concierge.Insights(s))
	}
}

func handleGetBehavior(w http.ResponseWriter, r *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, s.Behavior.Snapshot())
}

func handleResetBehavior(w http.ResponseWriter, r *http.Request, s *session.Session) {
	s.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func handleListThreads(w http.ResponseWriter, r *http.Request, s *session.Session) {
	limit := defaultThreadLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid limit %q", v)
			return
		}
		limit = n
	}

	var list []*thread.Thread
	switch status := r.URL.Query().Get("status"); status {
	case "", string(thread.StatusActive):
		list = s.Threads.Active(limit)
	case string(thread.StatusCompleted):
		list = s.Threads.Completed(limit)
	case "all":
		list = s.Threads.List()
	default:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid status %q", status)
		return
	}

	out := make([]thread.Summary, len(list))
	for i, t := range list {
		out[i] = t.Summarize()
	}
	writeJSON(w, http.StatusOK, out)
}

type threadView struct {
	thread.Summary
	Timeline []thread.Entry `json:"timeline"`
}

func lookupThread(w http.ResponseWriter, r *http.Request, s *session.Session) (*thread.Thread, bool) {
	t, err := s.Threads.Get(chi.URLParam(r, "tid"))
	if err != nil {
		httpError(w, http.StatusNotFound, "not_found_error", "thread not found")
		return nil, false
	}
	return t, true
}

func handleGetThread(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := lookupThread(w, r, s)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, threadView{Summary: t.Summarize(), Timeline: t.Timeline()})
}

type threadPatch struct {
	Status thread.Status `json:"status"`
}

func handlePatchThread(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := lookupThread(w, r, s)
	if !ok {
		return
	}
	var req threadPatch
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	switch req.Status {
	case thread.StatusCompleted:
		err = t.MarkCompleted()
	case thread.StatusArchived:
		err = t.Archive()
	default:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "status must be completed or archived")
		return
	}
	if errors.Is(err, thread.ErrInvalidTransition) {
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
		return
	}
	if t.ID == s.CurrentThreadID && t.Status != thread.StatusActive {
		s.CurrentThreadID = ""
	}
	writeJSON(w, http.StatusOK, t.Summarize())
}

func handleSelectThread(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := lookupThread(w, r, s)
	if !ok {
		return
	}
	if t.Status != thread.StatusActive {
		httpError(w, http.StatusConflict, "conflict_error", "thread is %s and cannot be continued", t.Status)
		return
	}
	s.CurrentThreadID = t.ID
	writeJSON(w, http.StatusOK, t.Summarize())
}

func handleListPersonas(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags := append(append([]string(nil), behavior.Personas...), behavior.General)
		out := make([]persona.Profile, 0, len(tags))
		for _, tag := range tags {
			out = append(out, deps.Catalog.Lookup(tag))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type placesView struct {
	Places       []places.Place `json:"places"`
	StaticMapURL string         `json:"static_map_url,omitempty"`
}

func handlePlaces(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		location := strings.TrimSpace(q.Get("location"))
		keyword := strings.TrimSpace(q.Get("keyword"))
		if location == "" || keyword == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "location and keyword are required")
			return
		}
		radius := deps.Radius
		if v := q.Get("radius"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxPlacesRadius {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "radius must be between 1 and %d", maxPlacesRadius)
				return
			}
			radius = n
		}
		found := deps.Concierge.Nearby(r.Context(), location, keyword, radius)
		writeJSON(w, http.StatusOK, placesView{
			Places:       found,
			StaticMapURL: deps.Concierge.StaticMap(r.Context(), location, found),
		})
	}
}
