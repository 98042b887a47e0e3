package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"deepsearch/internal/domain"
)

const (
	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
)

// OpenAI implements domain.Provider for OpenAI-compatible chat-completion APIs
// (OpenRouter, Portia and anything else speaking /chat/completions).
type OpenAI struct {
	name        string
	displayName string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *openai.Client
	logger      *slog.Logger
}

type OpenAIConfig struct {
	Name        string
	DisplayName string
	APIKey      string
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature *float64 // nil selects defaultTemperature; 0 is a valid setting
	Headers     map[string]string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = SharedHTTPClient(defaultHTTPTimeout)
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Name
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	// The client resolves "chat/completions" relative to the base, which
	// drops the last path segment unless the base ends in a slash.
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/") + "/"

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.APIBase),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(0),
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &OpenAI{
		name:        cfg.Name,
		displayName: cfg.DisplayName,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperatureOr(cfg.Temperature, defaultTemperature),
		client:      openai.NewClient(opts...),
		logger:      cfg.Logger,
	}
}

func (o *OpenAI) Name() string        { return o.name }
func (o *OpenAI) DisplayName() string { return o.displayName }
func (o *OpenAI) Configured() bool    { return HasCredential(o.apiKey) }

// Complete sends a single chat-completion request. An empty choices list
// yields an empty string and no error.
func (o *OpenAI) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	if !o.Configured() {
		return "", fmt.Errorf("%s: %w", o.name, ErrNotConfigured)
	}

	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	temperature := temperatureOr(prompt.Temperature, o.temperature)

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt.User))

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    openai.F(msgs),
		Model:       openai.F(o.model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%s: upstream returned %d: %w", o.name, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("%s: request failed: %w", o.name, err)
	}

	o.logger.Debug("completion received",
		"provider", o.name,
		"model", o.model,
		"duration", time.Since(start),
		"choices", len(resp.Choices),
	)

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// temperatureOr returns *t when set and fallback otherwise.
func temperatureOr(t *float64, fallback float64) float64 {
	if t == nil {
		return fallback
	}
	return *t
}
