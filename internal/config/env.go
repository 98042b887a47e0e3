package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads KEY=VALUE files into the process environment.
// Missing files are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// providerEnv maps provider names to their key and base-URL variables.
var providerEnv = map[string][2]string{
	"gemini":     {"GOOGLE_GEMINI_API_KEY", "GEMINI_API_URL"},
	"openrouter": {"OPENROUTER_API_KEY", "OPENROUTER_API_URL"},
	"portia":     {"PORTIA_API_KEY", "PORTIA_API_URL"},
}

// ApplyEnv overlays the well-known environment variables on cfg.
// Empty values never override what the config file set.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	for name, vars := range providerEnv {
		pc, ok := cfg.Providers[name]
		if !ok {
			continue
		}
		if v, ok := get(vars[0]); ok {
			pc.APIKey = v
		}
		if v, ok := get(vars[1]); ok {
			pc.APIBase = v
		}
		cfg.Providers[name] = pc
	}

	if v, ok := get("GOOGLE_SEARCH_API_KEY"); ok {
		cfg.Search.GoogleAPIKey = v
	}
	if v, ok := get("GOOGLE_SEARCH_ENGINE_ID"); ok {
		cfg.Search.GoogleEngineID = v
	}
	if v, ok := get("DEEPSEARCH_DB_PATH"); ok {
		cfg.Storage.DBPath = ExpandPath(v)
	}
	if v, ok := get("DEEPSEARCH_LOG_LEVEL"); ok {
		cfg.General.LogLevel = v
	}
	if v, ok := get("DEEPSEARCH_ADDR"); ok {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("DEEPSEARCH_ADDR: %w", err)
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("DEEPSEARCH_ADDR port: %w", err)
		}
		cfg.Server.Host = host
		cfg.Server.Port = n
	}
	return nil
}
