package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/concierge/internal/ads"
	"github.com/kalambet/concierge/internal/behavior"
	"github.com/kalambet/concierge/internal/concierge"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/places"
	"github.com/kalambet/concierge/internal/session"
)

// --- helpers ---

func newTestMCPState(t *testing.T, comp concierge.Completer) (*mcpState, *fakeFinder) {
	t.Helper()
	cat := persona.Default()
	finder := &fakeFinder{found: []places.Place{{ID: "p1", Name: "Good Taste", PriceLevel: 1}}}
	sessions := session.NewManager(session.Options{
		DefaultLocation: "Baguio, Philippines",
		Clock:           fixedClock{t: time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)},
		NewAds:          func() *ads.Manager { return ads.NewManager(nil, 5, zeroRand{}) },
	})
	return &mcpState{deps: MCPDeps{
		Sessions:  sessions,
		Concierge: concierge.New(cat, persona.NewGenerator(cat, zeroRand{}), finder, comp, concierge.Options{}),
		Catalog:   cat,
		Radius:    1000,
	}}, finder
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}
	return result
}

// --- tests ---

func TestMCPTool_Recommend(t *testing.T) {
	st, _ := newTestMCPState(t, &fakeCompleter{reply: "Try the ube jam at Good Shepherd."})

	result := callTool(t, mcpRecommend(st), "recommend", map[string]interface{}{
		"message":  "what local food should I taste?",
		"location": "Baguio",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Try the ube jam at Good Shepherd." {
		t.Errorf("text = %q", got)
	}

	s, err := st.deps.Sessions.Get(st.defaultID)
	if err != nil {
		t.Fatalf("default session missing: %v", err)
	}
	if s.Location != "Baguio" {
		t.Errorf("Location = %q", s.Location)
	}
	if s.Behavior.DominantPersona() != behavior.Foodie {
		t.Errorf("persona = %q, want foodie", s.Behavior.DominantPersona())
	}
}

func TestMCPTool_Recommend_MissingMessage(t *testing.T) {
	st, _ := newTestMCPState(t, nil)
	result := callTool(t, mcpRecommend(st), "recommend", map[string]interface{}{})
	if !result.IsError {
		t.Error("expected error result")
	}
}

func TestMCPTool_DefaultSessionReused(t *testing.T) {
	st, _ := newTestMCPState(t, &fakeCompleter{reply: "ok"})

	callTool(t, mcpRecommend(st), "recommend", map[string]interface{}{"message": "one"})
	first := st.defaultID
	callTool(t, mcpRecommend(st), "recommend", map[string]interface{}{"message": "two"})

	if st.defaultID != first {
		t.Errorf("default session changed: %s -> %s", first, st.defaultID)
	}
	if n := st.deps.Sessions.Len(); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
}

func TestMCPTool_ExplicitSession(t *testing.T) {
	st, _ := newTestMCPState(t, &fakeCompleter{reply: "ok"})
	s := st.deps.Sessions.Create("Rome")

	result := callTool(t, mcpProactive(st), "proactive_message", map[string]interface{}{"session_id": s.ID})
	if !strings.Contains(toolText(t, result), "Rome") {
		t.Errorf("greeting = %q", toolText(t, result))
	}

	result = callTool(t, mcpProactive(st), "proactive_message", map[string]interface{}{"session_id": "missing"})
	if !result.IsError {
		t.Error("expected error for unknown session")
	}
}

func TestMCPTool_RecordChoice(t *testing.T) {
	st, _ := newTestMCPState(t, nil)
	h := mcpRecordChoice(st)

	result := callTool(t, h, "record_choice", map[string]interface{}{
		"type":     "restaurant",
		"accepted": true,
		"detail":   "liked it",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Recorded accepted restaurant (1/1 preferences captured)" {
		t.Errorf("text = %q", got)
	}

	result = callTool(t, h, "record_choice", map[string]interface{}{"type": "museum", "accepted": false})
	if got := toolText(t, result); got != "Recorded skipped museum (1/2 preferences captured)" {
		t.Errorf("text = %q", got)
	}

	s, _ := st.deps.Sessions.Get(st.defaultID)
	log := s.Behavior.Choices()
	if len(log.Chosen) != 1 || len(log.Skipped) != 1 {
		t.Errorf("choices = %+v", log)
	}

	if r := callTool(t, h, "record_choice", map[string]interface{}{"type": "x"}); !r.IsError {
		t.Error("expected error without accepted")
	}
	if r := callTool(t, h, "record_choice", map[string]interface{}{"accepted": true}); !r.IsError {
		t.Error("expected error without type")
	}
}

func TestMCPTool_Persona(t *testing.T) {
	st, _ := newTestMCPState(t, &fakeCompleter{reply: "ok"})
	callTool(t, mcpRecommend(st), "recommend", map[string]interface{}{"message": "museum and history tour"})

	result := callTool(t, mcpPersona(st), "persona", nil)
	var got struct {
		SessionID string             `json:"session_id"`
		Profile   persona.Profile    `json:"profile"`
		Insights  concierge.Insights `json:"insights"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Profile.Tag != behavior.Cultural || got.Insights.Persona != behavior.Cultural {
		t.Errorf("persona = %+v", got)
	}
	if got.Insights.PreferredTime != behavior.Morning {
		t.Errorf("preferred time = %q", got.Insights.PreferredTime)
	}
}

func TestMCPTool_QuickAction(t *testing.T) {
	st, finder := newTestMCPState(t, nil)

	result := callTool(t, mcpQuickAction(st), "quick_action", map[string]interface{}{"action": "food"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var res concierge.QuickResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(res.Places) != 1 || res.Places[0].Name != "Good Taste" {
		t.Errorf("places = %+v", res.Places)
	}
	if len(finder.queries) != 1 || finder.queries[0] != "Baguio, Philippines|restaurant" {
		t.Errorf("queries = %v", finder.queries)
	}

	result = callTool(t, mcpQuickAction(st), "quick_action", map[string]interface{}{"action": "karaoke"})
	if !result.IsError || !strings.Contains(toolText(t, result), "itinerary") {
		t.Errorf("unknown action result = %+v", result)
	}
}

func TestMCPTool_NearbyPlaces(t *testing.T) {
	st, finder := newTestMCPState(t, nil)

	result := callTool(t, mcpNearbyPlaces(st), "nearby_places", map[string]interface{}{
		"location": "Baguio",
		"keyword":  "coffee",
		"radius":   500,
	})
	var got []places.Place
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("places = %+v", got)
	}
	if finder.queries[0] != "Baguio|coffee" {
		t.Errorf("queries = %v", finder.queries)
	}

	result = callTool(t, mcpNearbyPlaces(st), "nearby_places", map[string]interface{}{"location": "Baguio"})
	if !result.IsError {
		t.Error("expected error without keyword")
	}
}

func TestMCPResource_Personas(t *testing.T) {
	st, _ := newTestMCPState(t, nil)
	handler := mcpResourcePersonas(st.deps)

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "concierge://personas"},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var profiles []persona.Profile
	if err := json.Unmarshal([]byte(text.Text), &profiles); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(profiles) != 7 {
		t.Errorf("profiles = %d, want 7", len(profiles))
	}
}

func TestMCPServer_Registers(t *testing.T) {
	st, _ := newTestMCPState(t, nil)
	if s := NewMCPServer(st.deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	st, _ := newTestMCPState(t, &fakeCompleter{reply: "ok"})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			callTool(t, mcpRecommend(st), "recommend", map[string]interface{}{"message": "hidden hike"})
		}()
		go func() {
			defer wg.Done()
			callTool(t, mcpRecordChoice(st), "record_choice", map[string]interface{}{"type": "trail", "accepted": true})
		}()
	}
	wg.Wait()

	if n := st.deps.Sessions.Len(); n != 1 {
		t.Fatalf("sessions = %d, want 1", n)
	}
	s, _ := st.deps.Sessions.Get(st.defaultID)
	chosen, total := s.Behavior.LearningProgress()
	if chosen != 10 || total != 10 {
		t.Errorf("progress = %d/%d", chosen, total)
	}
	if got := s.Behavior.Scores()[behavior.Explorer]; got != 10 {
		t.Errorf("explorer score = %d, want 10", got)
	}
}
