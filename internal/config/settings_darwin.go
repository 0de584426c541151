//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultsDomain = "com.concierge.app"

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "Concierge")
	}
	return "concierge-data"
}

// defaultsStore keeps settings in the app's UserDefaults domain. Every value
// is written with -string; older -int entries still read back as text.
type defaultsStore struct {
	domain string
}

func newPlatformSettings() SettingsStore {
	return defaultsStore{domain: defaultsDomain}
}

func (d defaultsStore) Get(key string) (string, bool, error) {
	out, err := exec.Command("defaults", "read", d.domain, key).CombinedOutput()
	val := strings.TrimSpace(string(out))
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("defaults read %s: %w: %s", key, err, val)
	}
	return val, true, nil
}

func (d defaultsStore) Set(key, value string) error {
	return d.run("write", key, "-string", value)
}

func (d defaultsStore) Delete(key string) error {
	return d.run("delete", key)
}

func (d defaultsStore) run(verb string, args ...string) error {
	argv := append([]string{verb, d.domain}, args...)
	if out, err := exec.Command("defaults", argv...).CombinedOutput(); err != nil {
		return fmt.Errorf("defaults %s: %w: %s", verb, err, strings.TrimSpace(string(out)))
	}
	return nil
}
