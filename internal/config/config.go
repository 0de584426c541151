package config

import (
	"fmt"
	"log/slog"
	"time"
)

// Completion backends.
const (
	BackendOpenRouter = "openrouter"
	BackendOllama     = "ollama"
)

// Service is the secret-store service name shared by every secret.
const Service = "concierge"

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Log        LogConfig
	Proxy      ProxyConfig
	Places     PlacesConfig
	Completion CompletionConfig
	Ollama     OllamaConfig
	Concierge  ConciergeConfig
	Ads        AdsConfig
	Persona    PersonaConfig
	Cache      CacheConfig
	Session    SessionConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type ProxyConfig struct {
	OpenRouterAPIKey string
	DefaultModel     string
}

type PlacesConfig struct {
	GoogleMapsAPIKey string
	Radius           int
	MaxResults       int
}

type CompletionConfig struct {
	Backend     string
	MaxTokens   int
	Temperature float64
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type ConciergeConfig struct {
	DefaultLocation string
}

type AdsConfig struct {
	Interval      int
	InventoryPath string
}

type PersonaConfig struct {
	CatalogPath string
}

type CacheConfig struct {
	TTL string
}

type SessionConfig struct {
	IdleTimeout string
}

// CacheTTL parses Cache.TTL, falling back to 24h when it is invalid.
func (c Config) CacheTTL() time.Duration {
	return parseDuration("cache.ttl", c.Cache.TTL, 24*time.Hour)
}

// SessionIdleTimeout parses Session.IdleTimeout, falling back to 2h.
func (c Config) SessionIdleTimeout() time.Duration {
	return parseDuration("session.idle_timeout", c.Session.IdleTimeout, 2*time.Hour)
}

func parseDuration(key, v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Proxy: ProxyConfig{
			DefaultModel: "openai/gpt-4o-mini",
		},
		Places: PlacesConfig{
			Radius:     1000,
			MaxResults: 8,
		},
		Completion: CompletionConfig{
			Backend:     BackendOpenRouter,
			MaxTokens:   400,
			Temperature: 0.8,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		Concierge: ConciergeConfig{
			DefaultLocation: "Baguio, Philippines",
		},
		Ads: AdsConfig{
			Interval: 5,
		},
		Cache: CacheConfig{
			TTL: "24h",
		},
		Session: SessionConfig{
			IdleTimeout: "2h",
		},
	}
}

// Load layers defaults, stored settings, CONCIERGE_* environment variables
// and the secret store, in that order of increasing precedence (secrets
// only fill keys the environment left empty).
//
// Settings live in UserDefaults (com.concierge.app) on macOS and in
// $XDG_CONFIG_HOME/concierge/config.json elsewhere. Secrets live in the
// macOS Keychain or $XDG_DATA_HOME/concierge/secrets.json. Missing API keys are not an error: the features that need them
// degrade at call time.
func Load() (Config, error) {
	return loadWith(newPlatformSettings(), NewKeychain())
}

func loadWith(st SettingsStore, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applySettings(&cfg, st); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	switch cfg.Completion.Backend {
	case BackendOpenRouter, BackendOllama:
	default:
		return Config{}, fmt.Errorf("invalid completion.backend %q: want %q or %q",
			cfg.Completion.Backend, BackendOpenRouter, BackendOllama)
	}
	return cfg, nil
}

// applySecrets fills secrets the environment did not set.
func applySecrets(cfg *Config, kc Keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(Service, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
