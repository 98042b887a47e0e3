// Package agent runs free-form tasks over a batch of emails.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"deepsearch/internal/domain"
	"deepsearch/internal/fallback"
	"deepsearch/internal/metrics"
)

const (
	SystemPrompt = "You are an AI agent specialized in processing emails and extracting relevant information. Provide clear, structured responses based on the task."

	ActionProcess   = "process"
	ActionSummarize = "summarize"
	ActionPodcast   = "podcast"
	ActionAINews    = "ai-news"

	emailSeparator = "\n\n---\n\n"
	noResponse     = "No response generated"
)

var (
	ErrNoEmails = errors.New("Emails array is required and must contain at least one email")
	ErrNoTask   = errors.New("Task description is required")
)

// Completer answers a prompt and names the provider that did.
// provider.Failover satisfies it.
type Completer interface {
	CompleteNamed(ctx context.Context, prompt domain.Prompt) (text, provider string, err error)
}

type Request struct {
	Emails []string `json:"emails"`
	Task   string   `json:"task"`
	Action string   `json:"action,omitempty"`
}

type Metadata struct {
	EmailsProcessed int    `json:"emailsProcessed"`
	Task            string `json:"task"`
	Action          string `json:"action"`
	Timestamp       string `json:"timestamp"`
	Provider        string `json:"provider"`
	FallbackUsed    bool   `json:"fallback_used"`
}

type Result struct {
	Result   string   `json:"result"`
	Metadata Metadata `json:"metadata"`
}

type Config struct {
	Completer Completer // nil means templates only
	Responder *fallback.Responder
	MaxTokens int
	Now       func() time.Time
	Logger    *slog.Logger
}

type Agent struct {
	completer Completer
	responder *fallback.Responder
	maxTokens int
	now       func() time.Time
	logger    *slog.Logger
}

func New(cfg Config) *Agent {
	if cfg.Responder == nil {
		cfg.Responder = fallback.MustNew()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{
		completer: cfg.Completer,
		responder: cfg.Responder,
		maxTokens: cfg.MaxTokens,
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

// Validate reports the first problem with req, if any.
func (r Request) Validate() error {
	if len(r.Emails) == 0 {
		return ErrNoEmails
	}
	if r.Task == "" {
		return ErrNoTask
	}
	return nil
}

// Process runs req through the first provider that answers, or the email
// templates when none does. It only fails on an invalid request.
func (a *Agent) Process(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	metrics.AgentRequestsTotal.Inc()

	action := req.Action
	if action == "" {
		action = ActionProcess
	}
	task := TaskFor(action, req.Task)

	a.logger.Info("agent request",
		"emails", len(req.Emails),
		"action", action,
	)

	meta := Metadata{
		EmailsProcessed: len(req.Emails),
		Task:            req.Task,
		Action:          action,
		Timestamp:       a.now().UTC().Format(time.RFC3339Nano),
	}

	if a.completer != nil {
		text, name, err := a.completer.CompleteNamed(context.WithoutCancel(ctx), domain.Prompt{
			System:    SystemPrompt,
			User:      Prompt(req.Emails, task),
			MaxTokens: a.maxTokens,
		})
		if err == nil {
			if strings.TrimSpace(text) == "" {
				text = noResponse
			}
			meta.Provider = name
			return Result{Result: text, Metadata: meta}, nil
		}
		a.logger.Warn("agent providers failed, using template", "error", err)
	}

	metrics.AgentFallbackTotal.Inc()
	meta.FallbackUsed = true
	return Result{Result: a.responder.RespondEmail(req.Emails, task), Metadata: meta}, nil
}

// TaskFor applies the action-specific instruction prefix to task.
func TaskFor(action, task string) string {
	switch action {
	case ActionPodcast:
		return "Create a podcast script based on: " + task
	case ActionAINews:
		return "Summarize AI-related content from: " + task
	default:
		return task
	}
}

// Prompt builds the user prompt sent to providers.
func Prompt(emails []string, task string) string {
	return fmt.Sprintf("Task: %s\n\nEmails:\n%s\n\nPlease process these emails according to the task requirements.",
		task, strings.Join(emails, emailSeparator))
}

// Usage describes the endpoint for GET requests.
func Usage() map[string]any {
	return map[string]any{
		"message": "AI Agent API - Use POST with emails, task, and action parameters",
		"availableActions": []string{
			"summarize - Generate email summaries",
			"podcast - Create podcast scripts",
			"ai-news - Generate AI news summaries",
			"process - General email analysis",
		},
		"exampleRequest": Request{
			Emails: []string{"email1 content", "email2 content"},
			Task:   "Summarize the key points from these emails",
			Action: ActionSummarize,
		},
	}
}
