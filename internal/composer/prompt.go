// Package composer turns a session's accumulated behaviour and persona into
// the context handed to the text-generation backend.
package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/concierge/internal/behavior"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/proxy"
)

// recentChoices is how many skipped and chosen types a context carries.
const recentChoices = 3

const noneDetected = "None detected"

// PromptContext is everything the language model is told about the user for
// one request. It is built without any I/O.
type PromptContext struct {
	Location        string   `json:"location"`
	Tone            string   `json:"tone"`
	SuggestionFocus string   `json:"suggestion_focus"`
	PreferredTime   string   `json:"preferred_time"`
	RecentSkipped   []string `json:"recent_skipped"`
	RecentChosen    []string `json:"recent_chosen"`
	GreetingStyle   string   `json:"greeting_style"`
	Query           string   `json:"query"`
}

// Build assembles a PromptContext for query from the persona profile and the
// session's behaviour store. Recent choice types are oldest first.
func Build(query, location string, p persona.Profile, store *behavior.Store) PromptContext {
	return PromptContext{
		Location:        location,
		Tone:            p.Tone,
		SuggestionFocus: p.SuggestionFocus,
		PreferredTime:   store.PreferredTime(),
		RecentSkipped:   store.RecentSkippedTypes(recentChoices),
		RecentChosen:    store.RecentChosenTypes(recentChoices),
		GreetingStyle:   p.Greeting,
		Query:           query,
	}
}

// Render produces the instruction prompt for pc as a single user message.
func Render(pc PromptContext) []proxy.Message {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an AI Travel Concierge for %s with a %s personality.\n\n", pc.Location, pc.Tone)

	sb.WriteString("User's demonstrated preferences:\n")
	fmt.Fprintf(&sb, "- Preferred time: %s\n", pc.PreferredTime)
	fmt.Fprintf(&sb, "- Often skips: %s\n", joinOrNone(pc.RecentSkipped))
	fmt.Fprintf(&sb, "- Usually chooses: %s\n", joinOrNone(pc.RecentChosen))
	fmt.Fprintf(&sb, "- Focus areas: %s\n\n", pc.SuggestionFocus)

	fmt.Fprintf(&sb, "Current query: %q\n\n", pc.Query)

	sb.WriteString("Respond as a proactive travel concierge who:\n")
	sb.WriteString("1. Addresses their specific needs with personality\n")
	sb.WriteString("2. References their past preferences subtly\n")
	sb.WriteString("3. Offers 2-3 specific, actionable suggestions\n")
	sb.WriteString("4. Asks a follow-up question to continue helping\n")
	fmt.Fprintf(&sb, "5. Uses %s tone\n\n", pc.GreetingStyle)

	sb.WriteString("Keep response to 2-3 paragraphs. Be conversational, not robotic.")

	return []proxy.Message{{Role: "user", Content: sb.String()}}
}

// ItineraryQuery is the query sent on behalf of the full-day-plan quick action.
func ItineraryQuery(location string) string {
	return "Create a full day itinerary in " + location
}

func joinOrNone(types []string) string {
	if len(types) == 0 {
		return noneDetected
	}
	return strings.Join(types, ", ")
}
