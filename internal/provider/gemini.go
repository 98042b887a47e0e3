package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"deepsearch/internal/domain"
)

// Gemini implements domain.Provider on the Gemini generateContent API.
type Gemini struct {
	name        string
	displayName string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *genai.Client
	logger      *slog.Logger
}

type GeminiConfig struct {
	Name        string
	DisplayName string
	APIKey      string
	APIBase     string // empty uses the SDK default endpoint
	Model       string
	MaxTokens   int
	Temperature *float64
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// NewGemini builds the adapter. The SDK client is only created when the key
// passes the credential gate; otherwise Complete reports ErrNotConfigured.
func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Gemini"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = SharedHTTPClient(defaultHTTPTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &Gemini{
		name:        cfg.Name,
		displayName: cfg.DisplayName,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperatureOr(cfg.Temperature, defaultTemperature),
		logger:      cfg.Logger,
	}
	if !HasCredential(cfg.APIKey) {
		return g, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.APIBase},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string        { return g.name }
func (g *Gemini) DisplayName() string { return g.displayName }
func (g *Gemini) Configured() bool    { return g.client != nil }

func (g *Gemini) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	if !g.Configured() {
		return "", fmt.Errorf("%s: %w", g.name, ErrNotConfigured)
	}

	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	temperature := temperatureOr(prompt.Temperature, g.temperature)

	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if prompt.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), gc)
	if err != nil {
		return "", fmt.Errorf("%s: request failed: %w", g.name, err)
	}

	g.logger.Debug("completion received",
		"provider", g.name,
		"model", g.model,
		"duration", time.Since(start),
	)
	return resp.Text(), nil
}
