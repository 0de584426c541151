//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// xdgPath places elem under the concierge directory of the XDG base
// directory named by env, defaulting to ~/fallback.
func xdgPath(env, fallback string, elem ...string) string {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(append([]string{base, "concierge"}, elem...)...)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func newPlatformSettings() SettingsStore {
	return newFileSettings(xdgPath("XDG_CONFIG_HOME", ".config", "config.json"))
}

// fileSettings keeps settings as a flat JSON object in
// $XDG_CONFIG_HOME/concierge/config.json. Numbers and booleans written by
// hand are read back as their text.
type fileSettings struct {
	path   string
	values map[string]string
}

func newFileSettings(path string) *fileSettings {
	f := &fileSettings{path: path, values: map[string]string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f
	}
	if err != nil {
		warnf("could not read config file %s: %v. Using default values.", path, err)
		return f
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		warnf("could not parse config file %s: %v. Using default values.", path, err)
		return f
	}
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			f.values[k] = v
		case float64:
			f.values[k] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			f.values[k] = fmt.Sprint(v)
		}
	}
	return f
}

func (f *fileSettings) Get(key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fileSettings) Set(key, value string) error {
	f.values[key] = value
	return writePrivateJSON(f.path, f.values)
}

func (f *fileSettings) Delete(key string) error {
	delete(f.values, key)
	return writePrivateJSON(f.path, f.values)
}

// writePrivateJSON writes v as indented JSON readable only by the user.
func writePrivateJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
