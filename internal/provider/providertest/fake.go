// Package providertest provides an in-memory domain.Provider for tests.
package providertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"deepsearch/internal/domain"
)

// Fake answers with a fixed text or error after an optional delay and
// counts how often it was called.
type Fake struct {
	ID           string
	Display      string
	Text         string
	Err          error
	Delay        time.Duration
	Unconfigured bool

	calls  atomic.Int64
	mu     sync.Mutex
	prompt domain.Prompt
}

func (f *Fake) Name() string { return f.ID }

func (f *Fake) DisplayName() string {
	if f.Display == "" {
		return f.ID
	}
	return f.Display
}

func (f *Fake) Configured() bool { return !f.Unconfigured }

func (f *Fake) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompt = prompt
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// Calls returns the number of Complete invocations.
func (f *Fake) Calls() int { return int(f.calls.Load()) }

// LastPrompt returns the prompt of the most recent call.
func (f *Fake) LastPrompt() domain.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompt
}
