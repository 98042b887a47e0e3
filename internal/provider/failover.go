package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"deepsearch/internal/domain"
)

// Failover tries multiple providers in order, falling back to the next
// one when the current fails. Each provider is called at most once.
type Failover struct {
	providers []domain.Provider
	logger    *slog.Logger
}

func NewFailover(providers []domain.Provider, logger *slog.Logger) *Failover {
	return &Failover{
		providers: providers,
		logger:    logger,
	}
}

func (f *Failover) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

func (f *Failover) DisplayName() string { return f.Name() }

func (f *Failover) Configured() bool {
	for _, p := range f.providers {
		if p.Configured() {
			return true
		}
	}
	return false
}

func (f *Failover) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	text, _, err := f.CompleteNamed(ctx, prompt)
	return text, err
}

// CompleteNamed is Complete that also reports which provider answered.
func (f *Failover) CompleteNamed(ctx context.Context, prompt domain.Prompt) (string, string, error) {
	var lastErr error
	for i, p := range f.providers {
		if !p.Configured() {
			continue
		}
		text, err := p.Complete(ctx, prompt)
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback provider",
					"provider", p.Name(),
					"attempt", i+1,
				)
			}
			return text, p.Name(), nil
		}
		lastErr = err
		f.logger.Warn("failover: provider failed, trying next",
			"provider", p.Name(),
			"attempt", i+1,
			"error", err,
		)
	}
	if lastErr == nil {
		lastErr = ErrNotConfigured
	}
	return "", "", fmt.Errorf("all providers in failover chain failed: %w", lastErr)
}

// IsNotConfigured reports whether err stems from a missing credential.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
