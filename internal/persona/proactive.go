package persona

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kalambet/concierge/internal/behavior"
)

// Rand is the source of randomness used to pick phrasings. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// lockedRand serialises access to a Rand shared by many sessions.
type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Generator writes the unprompted greeting shown when a conversation starts.
// Its output is intentionally varied; supply a seeded Rand for repeatable
// results.
type Generator struct {
	catalog *Catalog
	rand    Rand
}

// NewGenerator creates a Generator drawing from r. A nil r seeds from the
// current time.
func NewGenerator(catalog *Catalog, r Rand) *Generator {
	if r == nil {
		seed := uint64(time.Now().UnixNano())
		r = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Generator{catalog: catalog, rand: &lockedRand{r: r}}
}

// NewSeededGenerator creates a Generator with a deterministic PCG source.
func NewSeededGenerator(catalog *Catalog, seed uint64) *Generator {
	return NewGenerator(catalog, rand.New(rand.NewPCG(seed, seed)))
}

// timeGreeting uses a 10/17 split, unlike the 12/17 split of the behaviour
// histogram. Both are kept as they are.
func timeGreeting(hour int) string {
	switch {
	case hour < 10:
		return "Good morning!"
	case hour < 17:
		return "Good afternoon!"
	default:
		return "Good evening!"
	}
}

// Generate builds a greeting for someone in location, in the voice of p.
func (g *Generator) Generate(location string, p Profile, now time.Time) string {
	greeting := timeGreeting(now.Hour())

	suggestions := p.ProactiveSuggestions
	if len(suggestions) == 0 {
		suggestions = g.catalog.Lookup(behavior.General).ProactiveSuggestions
	}
	suggestion := suggestions[g.rand.IntN(len(suggestions))]

	insights := []string{
		fmt.Sprintf("I noticed you're in %s", location),
		fmt.Sprintf("Since you're exploring %s", location),
		fmt.Sprintf("While you're in %s", location),
	}
	insight := insights[g.rand.IntN(len(insights))]

	messages := []string{
		fmt.Sprintf("%s %s %s, interested in %s?", greeting, p.Greeting, insight, suggestion),
		fmt.Sprintf("%s I see you're in %s. How about some %s recommendations?", p.Greeting, location, suggestion),
		fmt.Sprintf("%s Perfect timing! Want me to find some great %s in %s?", greeting, suggestion, location),
	}
	return messages[g.rand.IntN(len(messages))]
}
