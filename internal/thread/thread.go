// Package thread models titled conversations made of chat messages and
// recommendation cards.
package thread

import (
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"
)

var (
	// ErrNotFound is returned when a thread id is unknown to the registry.
	ErrNotFound = errors.New("thread not found")
	// ErrInvalidTransition is returned for a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid thread status transition")
)

// Status is the lifecycle state of a thread.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Thread types.
const (
	TypeGeneral        = "general"
	TypeRecommendation = "recommendation"
	TypeItinerary      = "itinerary"
	TypeProactive      = "proactive"
	TypeFood           = "food"
	TypeActivities     = "activities"
)

// Card types.
const (
	CardPlace          = "place"
	CardAd             = "ad"
	CardRecommendation = "recommendation"
	CardItinerary      = "itinerary"
)

const displayTitleRunes = 20

// Message is one chat turn.
type Message struct {
	Role     string            `json:"role"`
	Content  string            `json:"content"`
	At       time.Time         `json:"at"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Card is a structured attachment shown alongside messages.
type Card struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Thread is a single topical conversation.
type Thread struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Cards     []Card    `json:"cards"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	now func() time.Time
}

func newThread(id, kind, title string, now func() time.Time) *Thread {
	t := now()
	return &Thread{
		ID:        id,
		Type:      kind,
		Title:     title,
		Messages:  []Message{},
		Cards:     []Card{},
		Status:    StatusActive,
		CreatedAt: t,
		UpdatedAt: t,
		now:       now,
	}
}

// AddMessage appends a chat turn.
func (t *Thread) AddMessage(role, content string, metadata map[string]string) {
	ts := t.now()
	t.Messages = append(t.Messages, Message{
		Role:     role,
		Content:  content,
		At:       ts,
		Metadata: metadata,
	})
	t.UpdatedAt = ts
}

// AddCard appends a card.
func (t *Thread) AddCard(kind string, data any) {
	ts := t.now()
	t.Cards = append(t.Cards, Card{Type: kind, Data: data, At: ts})
	t.UpdatedAt = ts
}

// MarkCompleted moves an active thread to completed.
func (t *Thread) MarkCompleted() error {
	if t.Status != StatusActive {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusCompleted)
	}
	t.Status = StatusCompleted
	t.UpdatedAt = t.now()
	return nil
}

// Archive moves an active or completed thread to archived. Archived is final.
func (t *Thread) Archive() error {
	if t.Status == StatusArchived {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusArchived)
	}
	t.Status = StatusArchived
	t.UpdatedAt = t.now()
	return nil
}

// DisplayTitle shortens long titles for list views.
func (t *Thread) DisplayTitle() string {
	if utf8.RuneCountInString(t.Title) <= displayTitleRunes {
		return t.Title
	}
	return string([]rune(t.Title)[:displayTitleRunes]) + "..."
}

// Entry is one item of a thread timeline: exactly one of Message or Card is set.
type Entry struct {
	Message *Message `json:"message,omitempty"`
	Card    *Card    `json:"card,omitempty"`
}

func (e Entry) at() time.Time {
	if e.Message != nil {
		return e.Message.At
	}
	return e.Card.At
}

// Timeline merges messages and cards by timestamp. On equal timestamps
// messages come before cards and insertion order is kept.
func (t *Thread) Timeline() []Entry {
	entries := make([]Entry, 0, len(t.Messages)+len(t.Cards))
	for i := range t.Messages {
		m := t.Messages[i]
		entries = append(entries, Entry{Message: &m})
	}
	for i := range t.Cards {
		c := t.Cards[i]
		entries = append(entries, Entry{Card: &c})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at().Before(entries[j].at())
	})
	return entries
}

// Summary is the list-view representation of a thread.
type Summary struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	DisplayTitle string    `json:"display_title"`
	Status       Status    `json:"status"`
	Messages     int       `json:"messages"`
	Cards        int       `json:"cards"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summarize returns the list-view representation of t.
func (t *Thread) Summarize() Summary {
	return Summary{
		ID:           t.ID,
		Type:         t.Type,
		Title:        t.Title,
		DisplayTitle: t.DisplayTitle(),
		Status:       t.Status,
		Messages:     len(t.Messages),
		Cards:        len(t.Cards),
		UpdatedAt:    t.UpdatedAt,
	}
}
