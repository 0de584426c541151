// Package behavior accumulates what a single user session reveals about its
// travel style: which persona keywords show up in conversation, when the user
// is active, and which suggestions they accept or skip.
//
// A Store is owned by exactly one session and is not safe for concurrent use;
// the hosting layer serialises access per session.
package behavior

import (
	"sort"
	"time"
)

// Store holds the accumulated counters and logs for one session.
type Store struct {
	interactions []InteractionRecord
	scores       map[string]int
	timing       map[string]int
	choices      ChoiceLog
}

// NewStore creates an empty Store.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.interactions = nil
	s.scores = make(map[string]int, len(Personas))
	for _, p := range Personas {
		s.scores[p] = 0
	}
	s.timing = make(map[string]int, len(TimesOfDay))
	s.choices = ChoiceLog{}
}

// RecordInteraction appends a conversation turn, bumps the timing bucket for
// now's hour, and scores the combined query and response against the persona
// keyword sets.
func (s *Store) RecordInteraction(query, response string, now time.Time) {
	s.interactions = append(s.interactions, InteractionRecord{
		At:       now,
		Query:    query,
		Response: response,
	})

	s.timing[bucketForHour(now.Hour())]++

	for _, p := range matchPersonas(query + " " + response) {
		s.scores[p]++
	}
}

// RecordChoice appends a suggestion outcome to the chosen or skipped log.
func (s *Store) RecordChoice(kind string, accepted bool, detail string, now time.Time) {
	rec := ChoiceRecord{Type: kind, Detail: detail, At: now}
	if accepted {
		s.choices.Chosen = append(s.choices.Chosen, rec)
	} else {
		s.choices.Skipped = append(s.choices.Skipped, rec)
	}
}

// Clear discards everything recorded so far. It is the only operation that
// lowers a counter.
func (s *Store) Clear() {
	s.reset()
}

// Interactions returns a copy of the interaction log in insertion order.
func (s *Store) Interactions() []InteractionRecord {
	out := make([]InteractionRecord, len(s.interactions))
	copy(out, s.interactions)
	return out
}

// Scores returns a copy of the persona scoreboard. All six personas are
// always present.
func (s *Store) Scores() map[string]int {
	out := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		out[k] = v
	}
	return out
}

// Timing returns a copy of the timing histogram. Buckets that were never
// hit are absent.
func (s *Store) Timing() map[string]int {
	out := make(map[string]int, len(s.timing))
	for k, v := range s.timing {
		out[k] = v
	}
	return out
}

// Choices returns a copy of the choice log.
func (s *Store) Choices() ChoiceLog {
	return ChoiceLog{
		Chosen:  append([]ChoiceRecord(nil), s.choices.Chosen...),
		Skipped: append([]ChoiceRecord(nil), s.choices.Skipped...),
	}
}

// RecentChosenTypes returns the types of the last n accepted suggestions,
// oldest first.
func (s *Store) RecentChosenTypes(n int) []string {
	return lastTypes(s.choices.Chosen, n)
}

// RecentSkippedTypes returns the types of the last n skipped suggestions,
// oldest first.
func (s *Store) RecentSkippedTypes(n int) []string {
	return lastTypes(s.choices.Skipped, n)
}

// RecentChoices returns the last n accepted suggestions, oldest first.
func (s *Store) RecentChoices(n int) []ChoiceRecord {
	return append([]ChoiceRecord(nil), tail(s.choices.Chosen, n)...)
}

// LearningProgress reports how many choices were accepted out of all
// recorded choices.
func (s *Store) LearningProgress() (chosen, total int) {
	chosen = len(s.choices.Chosen)
	return chosen, chosen + len(s.choices.Skipped)
}

// Interest is one entry of TopInterests.
type Interest struct {
	Persona string `json:"persona"`
	Score   int    `json:"score"`
}

// TopInterests returns up to n personas with a positive score, highest first.
// Equal scores keep canonical order.
func (s *Store) TopInterests(n int) []Interest {
	var out []Interest
	for _, p := range Personas {
		if s.scores[p] > 0 {
			out = append(out, Interest{Persona: p, Score: s.scores[p]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Snapshot returns a copy of the store's state along with the classifier
// outputs derived from it.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Interactions:    s.Interactions(),
		Scores:          s.Scores(),
		Timing:          s.Timing(),
		Choices:         s.Choices(),
		DominantPersona: s.DominantPersona(),
		PreferredTime:   s.PreferredTime(),
	}
}

func tail(recs []ChoiceRecord, n int) []ChoiceRecord {
	if n < 0 {
		n = 0
	}
	if len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}

func lastTypes(recs []ChoiceRecord, n int) []string {
	recent := tail(recs, n)
	types := make([]string, len(recent))
	for i, r := range recent {
		types[i] = r.Type
	}
	return types
}
