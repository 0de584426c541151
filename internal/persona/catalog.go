// Package persona holds the static persona catalog and the proactive
// greeting generator that draws on it.
package persona

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/concierge/internal/behavior"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Profile describes how the concierge should sound for one persona.
type Profile struct {
	Tag                  string   `yaml:"tag" json:"tag"`
	Greeting             string   `yaml:"greeting" json:"greeting"`
	Tone                 string   `yaml:"tone" json:"tone"`
	SuggestionFocus      string   `yaml:"suggestion_focus" json:"suggestion_focus"`
	ProactiveSuggestions []string `yaml:"proactive_suggestions" json:"proactive_suggestions"`
}

type catalogFile struct {
	Personas []Profile `yaml:"personas"`
}

// Catalog is an immutable set of persona profiles keyed by tag. It always
// contains a profile for every persona tag and for behavior.General.
type Catalog struct {
	byTag map[string]Profile
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("persona: built-in catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path returns the built-in
// catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing persona catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from YAML and checks that every required tag is
// present with at least one proactive suggestion.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	c := &Catalog{byTag: make(map[string]Profile, len(f.Personas))}
	for _, p := range f.Personas {
		if p.Tag == "" {
			return nil, fmt.Errorf("persona entry without tag")
		}
		if _, dup := c.byTag[p.Tag]; dup {
			return nil, fmt.Errorf("duplicate persona %q", p.Tag)
		}
		c.byTag[p.Tag] = p
	}

	for _, tag := range requiredTags() {
		p, ok := c.byTag[tag]
		if !ok {
			return nil, fmt.Errorf("missing persona %q", tag)
		}
		if len(p.ProactiveSuggestions) == 0 {
			return nil, fmt.Errorf("persona %q has no proactive suggestions", tag)
		}
	}
	return c, nil
}

func requiredTags() []string {
	return append(append([]string(nil), behavior.Personas...), behavior.General)
}

// Lookup returns the profile for tag, or the general profile when tag is
// unknown.
func (c *Catalog) Lookup(tag string) Profile {
	p, ok := c.byTag[tag]
	if !ok {
		p = c.byTag[behavior.General]
	}
	return copyProfile(p)
}

// Tags returns the persona tags in canonical order followed by general.
// Extra tags from a user catalog are not listed.
func (c *Catalog) Tags() []string {
	return requiredTags()
}

func copyProfile(p Profile) Profile {
	cp := p
	if p.ProactiveSuggestions != nil {
		cp.ProactiveSuggestions = make([]string, len(p.ProactiveSuggestions))
		copy(cp.ProactiveSuggestions, p.ProactiveSuggestions)
	}
	return cp
}
