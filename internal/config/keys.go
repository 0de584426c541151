package config

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret store account, secrets only
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "CONCIERGE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CONCIERGE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CONCIERGE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "proxy.openrouter_api_key", typ: kString, env: "CONCIERGE_OPENROUTER_API_KEY",
		secret: true, account: "openrouter_api_key",
		apply:   func(cfg *Config, v any) { cfg.Proxy.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.OpenRouterAPIKey },
	},
	{
		key: "proxy.default_model", typ: kString, env: "CONCIERGE_PROXY_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.DefaultModel },
	},
	{
		key: "places.google_maps_api_key", typ: kString, env: "CONCIERGE_GOOGLE_MAPS_API_KEY",
		secret: true, account: "google_maps_api_key",
		apply:   func(cfg *Config, v any) { cfg.Places.GoogleMapsAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Places.GoogleMapsAPIKey },
	},
	{
		key: "places.radius", typ: kInt, env: "CONCIERGE_PLACES_RADIUS",
		apply:   func(cfg *Config, v any) { cfg.Places.Radius = v.(int) },
		extract: func(cfg Config) any { return cfg.Places.Radius },
	},
	{
		key: "places.max_results", typ: kInt, env: "CONCIERGE_PLACES_MAX_RESULTS",
		apply:   func(cfg *Config, v any) { cfg.Places.MaxResults = v.(int) },
		extract: func(cfg Config) any { return cfg.Places.MaxResults },
	},
	{
		key: "completion.backend", typ: kString, env: "CONCIERGE_COMPLETION_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Completion.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Completion.Backend },
	},
	{
		key: "completion.max_tokens", typ: kInt, env: "CONCIERGE_COMPLETION_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Completion.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Completion.MaxTokens },
	},
	{
		key: "completion.temperature", typ: kFloat, env: "CONCIERGE_COMPLETION_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Completion.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Completion.Temperature },
	},
	{
		key: "ollama.base_url", typ: kString, env: "CONCIERGE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "CONCIERGE_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "concierge.default_location", typ: kString, env: "CONCIERGE_DEFAULT_LOCATION",
		apply:   func(cfg *Config, v any) { cfg.Concierge.DefaultLocation = v.(string) },
		extract: func(cfg Config) any { return cfg.Concierge.DefaultLocation },
	},
	{
		key: "ads.interval", typ: kInt, env: "CONCIERGE_ADS_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Ads.Interval = v.(int) },
		extract: func(cfg Config) any { return cfg.Ads.Interval },
	},
	{
		key: "ads.inventory_path", typ: kString, env: "CONCIERGE_ADS_INVENTORY_PATH",
		apply:   func(cfg *Config, v any) { cfg.Ads.InventoryPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Ads.InventoryPath },
	},
	{
		key: "persona.catalog_path", typ: kString, env: "CONCIERGE_PERSONA_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Persona.CatalogPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Persona.CatalogPath },
	},
	{
		key: "cache.ttl", typ: kString, env: "CONCIERGE_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.TTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.TTL },
	},
	{
		key: "session.idle_timeout", typ: kString, env: "CONCIERGE_SESSION_IDLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Session.IdleTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Session.IdleTimeout },
	},
}
