// Package ads picks sponsored cards to show next to recommendations.
package ads

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed inventory.yaml
var defaultInventoryYAML []byte

// Categories.
const (
	Food       = "food"
	Activities = "activities"
	General    = "general"
)

// DefaultInterval shows an ad on every fifth request.
const DefaultInterval = 5

// Ad is one sponsored card.
type Ad struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	URL         string `yaml:"url" json:"url"`
	CTA         string `yaml:"cta" json:"cta"`
	Type        string `yaml:"type" json:"type"`
}

// Inventory maps a category to the ads that may be shown for it.
type Inventory map[string][]Ad

// DefaultInventory returns the built-in inventory.
func DefaultInventory() Inventory {
	inv, err := ParseInventory(defaultInventoryYAML)
	if err != nil {
		panic(fmt.Sprintf("ads: built-in inventory is invalid: %v", err))
	}
	return inv
}

// LoadInventory reads an inventory from a YAML file. An empty path returns
// the built-in inventory.
func LoadInventory(path string) (Inventory, error) {
	if path == "" {
		return DefaultInventory(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ad inventory: %w", err)
	}
	inv, err := ParseInventory(data)
	if err != nil {
		return nil, fmt.Errorf("parsing ad inventory %s: %w", path, err)
	}
	return inv, nil
}

// ParseInventory decodes YAML and requires a non-empty general category.
func ParseInventory(data []byte) (Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	if len(inv[General]) == 0 {
		return nil, fmt.Errorf("inventory has no %q ads", General)
	}
	return inv, nil
}

// Rand picks an index in [0, n).
type Rand interface {
	IntN(n int) int
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{Food, []string{"restaurant", "food", "eat", "coffee"}},
	{Activities, []string{"activity", "tour", "attraction"}},
}

// Manager rations ads: only every interval-th request yields one. It is safe
// for concurrent use.
type Manager struct {
	inventory Inventory
	interval  int
	rand      Rand

	mu      sync.Mutex
	counter int
}

// NewManager creates a Manager. interval <= 0 uses DefaultInterval and a nil
// r seeds from the current time.
func NewManager(inv Inventory, interval int, r Rand) *Manager {
	if inv == nil {
		inv = DefaultInventory()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if r == nil {
		seed := uint64(time.Now().UnixNano())
		r = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Manager{inventory: inv, interval: interval, rand: r}
}

// ContextualAd counts a request and, when it is the interval-th one, returns
// an ad matching the conversation context. Keywords in context override
// category; an unknown category falls back to general.
func (m *Manager) ContextualAd(context, category string) (Ad, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	if m.counter%m.interval != 0 {
		return Ad{}, false
	}

	if c := categorize(context); c != "" {
		category = c
	}
	list, ok := m.inventory[category]
	if !ok {
		list = m.inventory[General]
	}
	if len(list) == 0 {
		return Ad{}, false
	}
	return list[m.rand.IntN(len(list))], true
}

// Requests reports how many ad requests have been counted.
func (m *Manager) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter
}

func categorize(context string) string {
	lower := strings.ToLower(context)
	for _, rule := range categoryKeywords {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.category
			}
		}
	}
	return ""
}
