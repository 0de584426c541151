// Package api exposes the concierge over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/concierge/internal/concierge"
	"github.com/kalambet/concierge/internal/jobs"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/proxy"
	"github.com/kalambet/concierge/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ModelLister lists the models the completion backend offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]proxy.Model, error)
}

// AppDeps holds everything the HTTP handlers need.
type AppDeps struct {
	Sessions  *session.Manager
	Concierge *concierge.Concierge
	Catalog   *persona.Catalog
	Token     string

	// Jobs, when set, receives a cache warm-up whenever a session's
	// location is set.
	Jobs jobs.Enqueuer
	// Radius is the default search radius for /places and prefetching.
	Radius int
	// Models is optional; without it /models returns 404.
	Models ModelLister
}

// NewAppHandler returns the concierge REST API. Everything except /health
// requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Radius <= 0 {
		deps.Radius = 1000
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/personas", handleListPersonas(deps))
		r.Get("/places", handlePlaces(deps))
		r.Get("/models", handleModels(deps))

		r.Post("/sessions", handleCreateSession(deps))
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", withSession(deps, handleGetSession(deps)))
			r.Patch("/", withSession(deps, handlePatchSession(deps)))
			r.Delete("/", handleDeleteSession(deps))

			r.Post("/chat", withSession(deps, handleChat(deps)))
			r.Post("/quick-actions/{action}", withSession(deps, handleQuickAction(deps)))
			r.Post("/choices", withSession(deps, handleRecordChoice(deps)))
			r.Get("/proactive", withSession(deps, handleProactive(deps)))
			r.Get("/persona", withSession(deps, handleSessionPersona(deps)))
			r.Get("/insights", withSession(deps, handleInsights(deps)))
			r.Get("/behavior", withSession(deps, handleGetBehavior))
			r.Delete("/behavior", withSession(deps, handleResetBehavior))

			r.Get("/threads", withSession(deps, handleListThreads))
			r.Get("/threads/{tid}", withSession(deps, handleGetThread))
			r.Patch("/threads/{tid}", withSession(deps, handlePatchThread))
			r.Post("/threads/{tid}/select", withSession(deps, handleSelectThread))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleModels(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Models == nil {
			httpError(w, http.StatusNotFound, "not_found_error", "model listing not available for this backend")
			return
		}
		models, err := deps.Models.ListModels(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to list models: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, proxy.ModelList{Object: "list", Data: models})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for requests whose body may be absent.
// An empty body, including a chunked one, leaves v untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
