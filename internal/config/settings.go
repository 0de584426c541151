package config

import (
	"fmt"
	"os"
	"strconv"
)

// SettingsStore persists the values written by `concierge config set`.
// Values travel as the text the user typed and are parsed against each
// key's type on load, so platform stores only deal in strings.
type SettingsStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// parse converts raw text to the Go type apply expects for s.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// applySettings copies stored values into cfg. A stored value that does not
// parse is an error: `config set` validates, so it means a hand-edited store.
func applySettings(cfg *Config, st SettingsStore) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := st.Get(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			return fmt.Errorf("invalid stored value for %s: %w", s.key, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides lets CONCIERGE_* variables win over stored settings.
// Unparseable values are reported and skipped.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			warnf("ignoring %s=%q: %v", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// warnf reports a config problem before logging is set up.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[WARN] "+format+"\n", args...)
}
