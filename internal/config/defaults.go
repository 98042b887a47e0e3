package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:               "info",
			LogFormat:              "console",
			ProviderOrder:          []string{"gemini", "openrouter", "portia"},
			ProviderTimeoutSeconds: 60,
			SearchResults:          5,
		},
		Providers: map[string]ProviderConfig{
			"gemini": {
				Enabled:      true,
				Kind:         "gemini",
				DisplayName:  "Gemini",
				DefaultModel: "gemini-1.5-pro",
				MaxTokens:    2000,
				Temperature:  temperature(0.7),
			},
			"openrouter": {
				Enabled:      true,
				Kind:         "openai",
				DisplayName:  "OpenRouter",
				APIBase:      "https://openrouter.ai/api/v1",
				DefaultModel: "qwen/qwen3-235b-a22b:free",
				MaxTokens:    2000,
				Temperature:  temperature(0.7),
				Headers: map[string]string{
					"HTTP-Referer": "http://localhost:3000",
					"X-Title":      "DeepSearch",
				},
			},
			"portia": {
				Enabled:      true,
				Kind:         "openai",
				DisplayName:  "Portia.ai",
				APIBase:      "https://api.portialabs.ai/api/v0",
				DefaultModel: "gpt-3.5-turbo",
				MaxTokens:    2000,
				Temperature:  temperature(0.7),
			},
		},
		Search: SearchConfig{
			TimeoutSeconds: 15,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Storage: StorageConfig{
			Enabled: true,
			DBPath:  "~/.deepsearch/deepsearch.db",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 3600,
		},
		Stream: StreamConfig{
			DelayMs: 30,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

func temperature(v float64) *float64 { return &v }
