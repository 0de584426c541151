package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/concierge/internal/behavior"
	"github.com/kalambet/concierge/internal/concierge"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions  *session.Manager
	Concierge *concierge.Concierge
	Catalog   *persona.Catalog
	Radius    int
}

// mcpState remembers the session used by tool calls that do not name one.
// An MCP client over stdio is a single user, so one default session is
// enough.
type mcpState struct {
	deps MCPDeps

	mu        sync.Mutex
	defaultID string
}

// session returns the session named by the call's session_id argument, or
// the default session, creating it on first use.
func (st *mcpState) session(req mcp.CallToolRequest) (*session.Session, error) {
	if id := req.GetString("session_id", ""); id != "" {
		return st.deps.Sessions.Get(id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.defaultID != "" {
		if s, err := st.deps.Sessions.Get(st.defaultID); err == nil {
			return s, nil
		}
	}
	s := st.deps.Sessions.Create("")
	st.defaultID = s.ID
	return s, nil
}

// NewMCPServer creates an MCP server with the concierge tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Radius <= 0 {
		deps.Radius = 1000
	}
	st := &mcpState{deps: deps}

	s := server.NewMCPServer(
		"concierge",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("concierge: a travel concierge that learns the traveller's style from conversation and recommends places nearby."),
		server.WithRecovery(),
	)

	sessionArg := mcp.WithString("session_id", mcp.Description("Session to use; omit for the default session"))

	s.AddTool(
		mcp.NewTool("recommend",
			mcp.WithDescription("Ask the concierge for recommendations. The reply adapts to the persona learned from earlier turns."),
			mcp.WithString("message", mcp.Description("What the traveller is asking for"), mcp.Required()),
			mcp.WithString("location", mcp.Description("Location being explored; changes the session's location when set")),
			sessionArg,
		),
		mcpRecommend(st),
	)

	s.AddTool(
		mcp.NewTool("quick_action",
			mcp.WithDescription("Run a one-tap starter: food, activities or itinerary."),
			mcp.WithString("action", mcp.Description("food, activities or itinerary"), mcp.Required()),
			sessionArg,
		),
		mcpQuickAction(st),
	)

	s.AddTool(
		mcp.NewTool("record_choice",
			mcp.WithDescription("Record that the traveller accepted or skipped a suggestion."),
			mcp.WithString("type", mcp.Description("Suggestion type, e.g. restaurant or museum"), mcp.Required()),
			mcp.WithBoolean("accepted", mcp.Description("true if taken, false if skipped"), mcp.Required()),
			mcp.WithString("detail", mcp.Description("Free-text note")),
			sessionArg,
		),
		mcpRecordChoice(st),
	)

	s.AddTool(
		mcp.NewTool("persona",
			mcp.WithDescription("Show the persona and travel profile learned so far."),
			sessionArg,
		),
		mcpPersona(st),
	)

	s.AddTool(
		mcp.NewTool("proactive_message",
			mcp.WithDescription("Generate an unprompted greeting with a suggestion for the current location."),
			sessionArg,
		),
		mcpProactive(st),
	)

	s.AddTool(
		mcp.NewTool("nearby_places",
			mcp.WithDescription("Search open places near a location."),
			mcp.WithString("location", mcp.Description("Address or place name"), mcp.Required()),
			mcp.WithString("keyword", mcp.Description("What to look for, e.g. coffee"), mcp.Required()),
			mcp.WithNumber("radius", mcp.Description("Search radius in metres")),
		),
		mcpNearbyPlaces(st),
	)

	s.AddResource(
		mcp.NewResource(
			"concierge://personas",
			"Persona Catalog",
			mcp.WithResourceDescription("All persona profiles as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourcePersonas(deps),
	)

	return s
}

func mcpRecommend(st *mcpState) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		s, err := st.session(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		s.Lock()
		defer s.Unlock()
		if loc := strings.TrimSpace(req.GetString("location", "")); loc != "" {
			s.Location = loc
		}
		reply, err := st.deps.Concierge.Respond(ctx, s, "", message)
		if err != nil {
			return mcpError(fmt.Sprintf("recommend failed: %v", err)), nil
		}
		return mcpText(reply.Message), nil
	}
}

func mcpQuickAction(st *mcpState) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action, err := req.RequireString("action")
		if err != nil {
			return mcpError("action is required"), nil
		}
		s, err := st.session(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		s.Lock()
		defer s.Unlock()
		res, err := st.deps.Concierge.QuickAction(ctx, s, action)
		if errors.Is(err, concierge.ErrUnknownAction) {
			return mcpError(fmt.Sprintf("unknown action %q: want one of %s", action, strings.Join(concierge.QuickActions, ", "))), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("quick action failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpRecordChoice(st *mcpState) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := req.RequireString("type")
		if err != nil || strings.TrimSpace(kind) == "" {
			return mcpError("type is required"), nil
		}
		accepted, err := req.RequireBool("accepted")
		if err != nil {
			return mcpError("accepted is required"), nil
		}
		s, err := st.session(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		s.Lock()
		defer s.Unlock()
		detail := req.GetString("detail", "")
		verb := "skipped"
		if accepted {
			s.Choices.Accept(kind, detail)
			verb = "accepted"
		} else {
			s.Choices.Skip(kind, detail)
		}
		chosen, total := s.Behavior.LearningProgress()
		return mcpText(fmt.Sprintf("Recorded %s %s (%d/%d preferences captured)", verb, kind, chosen, total)), nil
	}
}

func mcpPersona(st *mcpState) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := st.session(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		s.Lock()
		defer s.Unlock()
		return mcpJSON(struct {
			SessionID string             `json:"session_id"`
			Location  string             `json:"location"`
			Profile   persona.Profile    `json:"profile"`
			Insights  concierge.Insights `json:"insights"`
		}{
			SessionID: s.ID,
			Location:  s.Location,
			Profile:   st.deps.Concierge.Profile(s),
			Insights:  st.deps.Concierge.Insights(s),
		})
	}
}

func mcpProactive(st *mcpState) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := st.session(req)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		s.Lock()
		defer s.Unlock()
		return mcpText(st.deps.Concierge.Proactive(s)), nil
	}
}

func mcpNearbyPlaces(st *mcpState) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		location, err := req.RequireString("location")
		if err != nil {
			return mcpError("location is required"), nil
		}
		keyword, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}
		radius := req.GetInt("radius", st.deps.Radius)
		if radius <= 0 {
			radius = st.deps.Radius
		}
		if radius > maxPlacesRadius {
			radius = maxPlacesRadius
		}
		return mcpJSON(st.deps.Concierge.Nearby(ctx, location, keyword, radius))
	}
}

func mcpResourcePersonas(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tags := append(append([]string(nil), behavior.Personas...), behavior.General)
		profiles := make([]persona.Profile, 0, len(tags))
		for _, tag := range tags {
			profiles = append(profiles, deps.Catalog.Lookup(tag))
		}

		b, err := json.Marshal(profiles)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal personas: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
