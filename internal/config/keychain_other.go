//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// secretsFile stands in for the macOS Keychain elsewhere: service, then
// account, then value, kept 0600 under the data directory.
type secretsFile map[string]map[string]string

func secretsPath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func readSecrets() (secretsFile, error) {
	data, err := os.ReadFile(secretsPath())
	if err != nil {
		return nil, fmt.Errorf("secret store not available: %w", err)
	}
	var s secretsFile
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", secretsPath(), err)
	}
	return s, nil
}

func keychainGet(service, account string) ([]byte, error) {
	s, err := readSecrets()
	if err != nil {
		return nil, err
	}
	val, ok := s[service][account]
	if !ok {
		return nil, fmt.Errorf("no secret stored for %s/%s", service, account)
	}
	return []byte(val), nil
}

// keychainSet refuses to overwrite a secrets file it cannot parse.
func keychainSet(service, account, value string) error {
	s, err := readSecrets()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if s == nil {
		s = secretsFile{}
	}
	if s[service] == nil {
		s[service] = map[string]string{}
	}
	s[service][account] = value
	return writePrivateJSON(secretsPath(), s)
}
