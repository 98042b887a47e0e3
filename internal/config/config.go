package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for DeepSearch.
type Config struct {
	General   GeneralConfig             `json:"general"`
	Providers map[string]ProviderConfig `json:"providers"`
	Search    SearchConfig              `json:"search"`
	Server    ServerConfig              `json:"server"`
	Storage   StorageConfig             `json:"storage"`
	Cache     CacheConfig               `json:"cache"`
	Stream    StreamConfig              `json:"stream"`
	Metrics   MetricsConfig             `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel               string   `json:"logLevel"`
	LogFormat              string   `json:"logFormat"`              // "console" | "json"
	ProviderOrder          []string `json:"providerOrder"`          // fan-out and heading order
	ProviderTimeoutSeconds int      `json:"providerTimeoutSeconds"` // per upstream call
	SearchResults          int      `json:"searchResults"`          // sources per answer
}

// ProviderConfig describes one upstream chat-completion service.
// Kind selects the wire protocol: "openai" (OpenAI-compatible) or "gemini".
type ProviderConfig struct {
	Enabled      bool              `json:"enabled"`
	Kind         string            `json:"kind"`
	DisplayName  string            `json:"displayName,omitempty"`
	APIBase      string            `json:"apiBase,omitempty"`
	APIKey       string            `json:"apiKey,omitempty"`
	DefaultModel string            `json:"defaultModel,omitempty"`
	MaxTokens    int               `json:"maxTokens,omitempty"`
	Temperature  *float64          `json:"temperature,omitempty"` // nil uses the adapter default
	Headers      map[string]string `json:"headers,omitempty"`
}

// SearchConfig selects the web-search backend. An empty Backend means
// "google when both credentials are configured, duckduckgo otherwise".
type SearchConfig struct {
	Backend        string `json:"backend"` // "" | "duckduckgo" | "google"
	APIBase        string `json:"apiBase,omitempty"`
	GoogleAPIKey   string `json:"googleApiKey,omitempty"`
	GoogleEngineID string `json:"googleEngineId,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type CacheConfig struct {
	Enabled    bool `json:"enabled"`
	TTLSeconds int  `json:"ttlSeconds"`
}

type StreamConfig struct {
	DelayMs int `json:"delayMs"` // pause before each streamed word
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.deepsearch).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deepsearch"
	}
	return filepath.Join(home, ".deepsearch")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Storage.DBPath = ExpandPath(cfg.Storage.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	switch cfg.General.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: console, json")
	}
	if cfg.General.ProviderTimeoutSeconds < 1 || cfg.General.ProviderTimeoutSeconds > 600 {
		errs = append(errs, "general.providerTimeoutSeconds must be between 1 and 600")
	}
	if cfg.General.SearchResults < 1 || cfg.General.SearchResults > 20 {
		errs = append(errs, "general.searchResults must be between 1 and 20")
	}

	seen := make(map[string]bool, len(cfg.General.ProviderOrder))
	for _, name := range cfg.General.ProviderOrder {
		if _, ok := cfg.Providers[name]; !ok {
			errs = append(errs, fmt.Sprintf("general.providerOrder references unknown provider: %s", name))
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("general.providerOrder lists %s twice", name))
		}
		seen[name] = true
	}

	for name, pc := range cfg.Providers {
		switch pc.Kind {
		case "openai", "gemini":
		default:
			errs = append(errs, fmt.Sprintf("providers.%s: kind must be one of: openai, gemini", name))
		}
		if pc.Enabled && pc.Kind == "openai" && pc.APIBase == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required for openai-compatible providers", name))
		}
		if t := pc.Temperature; t != nil && (*t < 0 || *t > 2) {
			errs = append(errs, fmt.Sprintf("providers.%s: temperature must be between 0 and 2", name))
		}
	}

	switch cfg.Search.Backend {
	case "", "duckduckgo", "google":
	default:
		errs = append(errs, "search.backend must be one of: duckduckgo, google")
	}
	if cfg.Search.TimeoutSeconds < 1 {
		errs = append(errs, "search.timeoutSeconds must be >= 1")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Storage.Enabled && cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.dbPath is required when storage is enabled")
	}
	if cfg.Cache.TTLSeconds < 1 {
		errs = append(errs, "cache.ttlSeconds must be >= 1")
	}
	if cfg.Stream.DelayMs < 0 || cfg.Stream.DelayMs > 1000 {
		errs = append(errs, "stream.delayMs must be between 0 and 1000")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
