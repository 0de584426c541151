package config

import "fmt"

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs from the current
// config, plus whether each secret is set.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			state := "(not set)"
			if s.extract(cfg).(string) != "" {
				state = "(set)"
			}
			result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: state})
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKey validates value against the key's type and stores it in the
// platform settings store.
func SetKey(key, value string) error {
	return setKeyIn(newPlatformSettings(), key, value)
}

func setKeyIn(st SettingsStore, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s or the secret store", key, s.env)
		}
		if _, err := s.parse(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return st.Set(key, value)
	}
	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
