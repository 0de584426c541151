package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const apiTokenAccount = "api_token"

// Keychain reads and writes secrets in the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type platformKeychain struct{}

// NewKeychain returns the platform secret store: the macOS Keychain on
// darwin, a 0600 JSON file elsewhere.
func NewKeychain() Keychain {
	return platformKeychain{}
}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token that guards the HTTP API, creating
// and storing a random one on first use.
func GetAPIToken(kc Keychain) (string, error) {
	if tok, err := kc.Get(Service, apiTokenAccount); err == nil && tok != "" {
		return tok, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	if err := kc.Set(Service, apiTokenAccount, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}

// SetSecret stores an API key under the account of the given secret config key.
func SetSecret(kc Keychain, key, value string) error {
	for _, s := range specs {
		if s.key == key && s.secret {
			return kc.Set(Service, s.account, value)
		}
	}
	return fmt.Errorf("unknown secret key: %q", key)
}
