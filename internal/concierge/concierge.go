// Package concierge orchestrates one turn of the travel concierge: it reads
// the session's learned behaviour, asks the completion backend for a reply,
// pulls nearby places and ads, and files everything into conversation
// threads.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kalambet/concierge/internal/ads"
	"github.com/kalambet/concierge/internal/behavior"
	"github.com/kalambet/concierge/internal/composer"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/places"
	"github.com/kalambet/concierge/internal/session"
	"github.com/kalambet/concierge/internal/thread"
)

// Quick actions.
const (
	ActionFood       = "food"
	ActionActivities = "activities"
	ActionItinerary  = "itinerary"
)

// QuickActionRadius is the search radius, in metres, of the food and
// activities quick actions. Cache warm-ups must use the same radius.
const QuickActionRadius = 2000

const (
	quickActionPlaces = 4
	chatTitleRunes    = 30

	defaultMaxTokens   = 400
	defaultTemperature = 0.8
)

// Messages shown when the completion backend cannot answer.
const (
	NotConfiguredReply = "I need API access to assist you properly."
	fallbackReply      = "I'm having trouble connecting right now, but I'm here to help you explore %s!"
)

var (
	// ErrEmptyInput is returned for a chat turn with no text.
	ErrEmptyInput = errors.New("empty message")
	// ErrUnknownAction is returned for a quick action other than food,
	// activities or itinerary.
	ErrUnknownAction = errors.New("unknown quick action")
)

// QuickActions lists the supported quick actions.
var QuickActions = []string{ActionFood, ActionActivities, ActionItinerary}

var actionKeywords = map[string]string{
	ActionFood:       "restaurant",
	ActionActivities: "attraction",
}

// PrefetchKeywords returns the place searches run by the quick actions, in
// QuickActions order.
func PrefetchKeywords() []string {
	var out []string
	for _, a := range QuickActions {
		if kw, ok := actionKeywords[a]; ok {
			out = append(out, kw)
		}
	}
	return out
}

// Options tunes completion requests.
type Options struct {
	// MaxTokens <= 0 uses 400.
	MaxTokens int
	// Temperature nil uses 0.8. Zero is a valid setting and asks for
	// deterministic replies.
	Temperature *float64
}

// Concierge is shared by all sessions. It holds no per-user state.
type Concierge struct {
	catalog     *persona.Catalog
	greeter     *persona.Generator
	finder      places.Finder
	completer   Completer
	maxTokens   int
	temperature float64
}

// New creates a Concierge. A nil completer makes every reply the
// not-configured apology; a nil finder yields no places.
func New(catalog *persona.Catalog, greeter *persona.Generator, finder places.Finder, completer Completer, opts Options) *Concierge {
	c := &Concierge{
		catalog:     catalog,
		greeter:     greeter,
		finder:      finder,
		completer:   completer,
		maxTokens:   opts.MaxTokens,
		temperature: defaultTemperature,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if opts.Temperature != nil {
		c.temperature = *opts.Temperature
	}
	return c
}

// Reply is the result of a chat turn.
type Reply struct {
	Thread  *thread.Thread `json:"thread"`
	Persona string         `json:"persona"`
	Message string         `json:"message"`
}

// Respond answers input within the session. The turn goes to threadID when
// set, otherwise to the session's current thread, otherwise to a new general
// thread titled after the input. Only active threads take new turns: an
// explicit completed or archived thread fails with
// thread.ErrInvalidTransition. The caller must hold the session lock.
func (c *Concierge) Respond(ctx context.Context, s *session.Session, threadID, input string) (Reply, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reply{}, ErrEmptyInput
	}

	var t *thread.Thread
	if threadID != "" {
		found, err := s.Threads.Get(threadID)
		if err != nil {
			return Reply{}, fmt.Errorf("thread %s: %w", threadID, err)
		}
		if found.Status != thread.StatusActive {
			return Reply{}, fmt.Errorf("thread %s is %s: %w", threadID, found.Status, thread.ErrInvalidTransition)
		}
		t = found
	} else if cur, ok := s.CurrentThread(); ok {
		t = cur
	} else {
		t = s.Threads.Create(thread.TypeGeneral, truncateRunes(input, chatTitleRunes))
	}
	s.CurrentThreadID = t.ID

	t.AddMessage("user", input, nil)

	tag := s.Behavior.DominantPersona()
	response := c.generate(ctx, input, s.Location, c.catalog.Lookup(tag), s.Behavior)

	t.AddMessage("assistant", response, map[string]string{"persona": tag})
	s.Behavior.RecordInteraction(input, response, s.Clock.Now())

	return Reply{Thread: t, Persona: tag, Message: response}, nil
}

// QuickResult is what a quick action produced.
type QuickResult struct {
	Thread  *thread.Thread `json:"thread"`
	Message string         `json:"message"`
	Places  []places.Place `json:"places"`
	Ad      *ads.Ad        `json:"ad,omitempty"`
	// StaticMapURL is a map image of Places, empty when none are located
	// or maps are unavailable.
	StaticMapURL string `json:"static_map_url,omitempty"`
}

// QuickAction runs one of the one-tap starters in a new thread and records
// it as an accepted suggestion. The caller must hold the session lock.
func (c *Concierge) QuickAction(ctx context.Context, s *session.Session, action string) (QuickResult, error) {
	var (
		found    []places.Place
		response string
	)
	location := s.Location

	switch action {
	case ActionFood:
		found = c.nearby(ctx, location, actionKeywords[action], QuickActionRadius)
		response = fmt.Sprintf("Here are some amazing %s spots I found for you in %s!", action, location)
	case ActionActivities:
		found = c.nearby(ctx, location, actionKeywords[action], QuickActionRadius)
		response = fmt.Sprintf("Exciting %s awaiting you in %s!", action, location)
	case ActionItinerary:
		p := c.catalog.Lookup(s.Behavior.DominantPersona())
		response = c.generate(ctx, composer.ItineraryQuery(location), location, p, s.Behavior)
	default:
		return QuickResult{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	t := s.Threads.Create(action, fmt.Sprintf("%s in %s", capitalize(action), location))
	t.AddMessage("assistant", response, nil)

	if len(found) > quickActionPlaces {
		found = found[:quickActionPlaces]
	}
	for _, p := range found {
		t.AddCard(thread.CardPlace, p)
	}

	res := QuickResult{Thread: t, Message: response, Places: found}
	res.StaticMapURL = c.StaticMap(ctx, location, found)
	if ad, ok := s.Ads.ContextualAd(response, action); ok {
		t.AddCard(thread.CardAd, ad)
		res.Ad = &ad
	}

	s.Behavior.RecordInteraction("Quick action: "+action, response, s.Clock.Now())
	s.Choices.Accept(action, "Used quick action for "+action)
	s.CurrentThreadID = t.ID

	return res, nil
}

// Proactive writes the greeting shown before the user has said anything.
func (c *Concierge) Proactive(s *session.Session) string {
	p := c.catalog.Lookup(s.Behavior.DominantPersona())
	return c.greeter.Generate(s.Location, p, s.Clock.Now())
}

// Profile returns the persona the session currently reads as.
func (c *Concierge) Profile(s *session.Session) persona.Profile {
	return c.catalog.Lookup(s.Behavior.DominantPersona())
}

// Insights summarises what the session has learned so far.
type Insights struct {
	Persona       string                  `json:"persona"`
	TopInterests  []behavior.Interest     `json:"top_interests"`
	PreferredTime string                  `json:"preferred_time"`
	RecentChoices []behavior.ChoiceRecord `json:"recent_choices"`
	Chosen        int                     `json:"chosen"`
	Total         int                     `json:"total"`
}

// Insights builds the travel-profile summary for s.
func (c *Concierge) Insights(s *session.Session) Insights {
	chosen, total := s.Behavior.LearningProgress()
	return Insights{
		Persona:       s.Behavior.DominantPersona(),
		TopInterests:  s.Behavior.TopInterests(3),
		PreferredTime: s.Behavior.PreferredTime(),
		RecentChoices: s.Behavior.RecentChoices(3),
		Chosen:        chosen,
		Total:         total,
	}
}

// Nearby searches open places around location. Failures yield an empty list.
func (c *Concierge) Nearby(ctx context.Context, location, keyword string, radius int) []places.Place {
	return c.nearby(ctx, location, keyword, radius)
}

// StaticMap returns a map image URL marking found around location. It is
// empty when no place has coordinates or the finder cannot draw maps.
func (c *Concierge) StaticMap(ctx context.Context, location string, found []places.Place) string {
	m, ok := c.finder.(places.Mapper)
	if !ok || !slices.ContainsFunc(found, func(p places.Place) bool { return p.HasLocation }) {
		return ""
	}
	u, err := m.StaticMap(ctx, location, found)
	switch {
	case errors.Is(err, places.ErrNoAPIKey), errors.Is(err, places.ErrNoStaticMap):
		slog.Debug("static map skipped", "reason", err)
		return ""
	case err != nil:
		slog.Warn("static map failed", "location", location, "error", err)
		return ""
	}
	return u
}

func (c *Concierge) nearby(ctx context.Context, location, keyword string, radius int) []places.Place {
	if c.finder == nil {
		return []places.Place{}
	}
	return places.Search(ctx, c.finder, location, keyword, radius)
}

// generate asks the completer for a reply and never fails: missing
// configuration and backend errors turn into canned replies.
func (c *Concierge) generate(ctx context.Context, query, location string, p persona.Profile, store *behavior.Store) string {
	if c.completer == nil {
		return NotConfiguredReply
	}
	if cfg, ok := c.completer.(configurable); ok && !cfg.Configured() {
		return NotConfiguredReply
	}

	msgs := composer.Render(composer.Build(query, location, p, store))
	text, err := c.completer.Complete(ctx, msgs, c.maxTokens, c.temperature)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return NotConfiguredReply
		}
		slog.Warn("completion failed", "location", location, "error", err)
		return fmt.Sprintf(fallbackReply, location)
	}
	return strings.TrimSpace(text)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
