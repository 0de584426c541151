package behavior

import "time"

// Persona tags in canonical order. The order is significant: it pins the
// tie-break of DominantPersona and the evaluation order of keyword rules.
const (
	Foodie   = "foodie"
	Romantic = "romantic"
	Explorer = "explorer"
	Cultural = "cultural"
	Budget   = "budget"
	Luxury   = "luxury"

	// General is returned when no persona has scored yet.
	General = "general"
)

// Personas lists the persona tags in canonical order.
var Personas = []string{Foodie, Romantic, Explorer, Cultural, Budget, Luxury}

// Time-of-day buckets used by the timing histogram.
const (
	Morning   = "morning"
	Afternoon = "afternoon"
	Evening   = "evening"

	// AnyTime is returned by PreferredTime when nothing has been recorded.
	AnyTime = "any"
)

// TimesOfDay lists the timing buckets in canonical order.
var TimesOfDay = []string{Morning, Afternoon, Evening}

// InteractionRecord is one recorded conversation turn.
type InteractionRecord struct {
	At       time.Time `json:"at"`
	Query    string    `json:"query"`
	Response string    `json:"response"`
}

// ChoiceRecord is a single accept or skip of a suggestion.
type ChoiceRecord struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// ChoiceLog holds accepted and skipped suggestions in the order they happened.
type ChoiceLog struct {
	Chosen  []ChoiceRecord `json:"chosen"`
	Skipped []ChoiceRecord `json:"skipped"`
}

// Snapshot is a read-only copy of everything a Store has accumulated, plus
// the derived classifier outputs.
type Snapshot struct {
	Interactions    []InteractionRecord `json:"interactions"`
	Scores          map[string]int      `json:"scores"`
	Timing          map[string]int      `json:"timing"`
	Choices         ChoiceLog           `json:"choices"`
	DominantPersona string              `json:"dominant_persona"`
	PreferredTime   string              `json:"preferred_time"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return realClock{} }
