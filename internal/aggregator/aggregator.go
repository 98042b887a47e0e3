// Package aggregator fans one query out to every configured provider and
// the search backend, then merges whatever came back into one answer.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"deepsearch/internal/domain"
	"deepsearch/internal/fallback"
	"deepsearch/internal/metrics"
)

const (
	// SystemPrompt is sent with every answer request.
	SystemPrompt = "You are an AI assistant. Provide comprehensive, helpful answers with markdown formatting."

	responseHeading = "# AI-Enhanced Response\n\n"
	resourcesHeader = "\n\n---\n\n## 🔍 **Related Resources & Further Reading**\n\n"
	resourcesFooter = "\n\n*These resources provide additional information and perspectives on the topic above.*"
)

// Providers is the declared, ordered provider set.
type Providers interface {
	All() []domain.Provider
	Available() []domain.Provider
}

// Searcher returns a non-empty list of sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string, count int) []domain.Source
}

type Aggregator struct {
	providers   Providers
	searcher    Searcher
	responder   *fallback.Responder
	searchCount int
	logger      *slog.Logger
}

type Config struct {
	Providers   Providers
	Searcher    Searcher
	Responder   *fallback.Responder
	SearchCount int
	Logger      *slog.Logger
}

func New(cfg Config) *Aggregator {
	if cfg.SearchCount <= 0 {
		cfg.SearchCount = 5
	}
	if cfg.Responder == nil {
		cfg.Responder = fallback.MustNew()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Aggregator{
		providers:   cfg.Providers,
		searcher:    cfg.Searcher,
		responder:   cfg.Responder,
		searchCount: cfg.SearchCount,
		logger:      cfg.Logger,
	}
}

// Aggregate never fails: with no provider success the template responder
// supplies the body. Upstream calls are detached from ctx's cancellation so a
// departing client does not abort them.
func (a *Aggregator) Aggregate(ctx context.Context, query string) *domain.AggregatedAnswer {
	start := time.Now()
	upstream := context.WithoutCancel(ctx)

	available := a.providers.Available()
	results := make([]domain.ProviderResult, len(available))
	var sources []domain.Source

	// Every goroutine owns one slot and returns nil, so Wait joins them all.
	var g errgroup.Group
	for i, p := range available {
		g.Go(func() error {
			results[i] = a.call(upstream, p, query)
			return nil
		})
	}
	g.Go(func() error {
		sources = a.searcher.Search(upstream, query, a.searchCount)
		return nil
	})
	_ = g.Wait()

	if len(sources) > a.searchCount {
		sources = sources[:a.searchCount]
	}

	meta := domain.AnswerMetadata{
		Providers:          make(map[string]bool),
		SearchPerformed:    true,
		SearchResultsCount: len(sources),
	}
	for _, p := range a.providers.All() {
		meta.Providers[p.Name()] = false
	}

	var b strings.Builder
	successes := 0
	for i, r := range results {
		if !r.OK() {
			continue
		}
		if successes == 0 {
			b.WriteString(responseHeading)
		}
		successes++
		meta.Providers[r.Provider] = true
		fmt.Fprintf(&b, "## %s Analysis\n\n%s\n\n", available[i].DisplayName(), r.Text)
	}

	if successes == 0 {
		meta.FallbackUsed = true
		metrics.FallbackTotal.Inc()
		a.logger.Info("no provider answered, using template", "query", query, "providers", len(available))
		b.WriteString(a.responder.Respond(query))
	}
	b.WriteString(RelatedResources(sources))

	metrics.AggregationLatency.Observe(time.Since(start).Seconds())
	a.logger.Debug("aggregation complete",
		"providers", len(available),
		"successes", successes,
		"sources", len(sources),
		"duration", time.Since(start),
	)

	return &domain.AggregatedAnswer{
		Content:  b.String(),
		Sources:  sources,
		Metadata: meta,
	}
}

func (a *Aggregator) call(ctx context.Context, p domain.Provider, query string) domain.ProviderResult {
	start := time.Now()
	text, err := p.Complete(ctx, domain.Prompt{System: SystemPrompt, User: query})
	metrics.ProviderLatency(p.Name()).Observe(time.Since(start).Seconds())
	metrics.ProviderOutcome(p.Name(), err == nil)
	if err != nil {
		a.logger.Warn("provider failed", "provider", p.Name(), "error", err)
	}
	return domain.ProviderResult{Provider: p.Name(), Text: text, Err: err}
}

// RelatedResources renders the numbered source list appended to every
// answer, or "" when there are no sources.
func RelatedResources(sources []domain.Source) string {
	if len(sources) == 0 {
		return ""
	}
	lines := make([]string, len(sources))
	for i, s := range sources {
		lines[i] = fmt.Sprintf("%d. [%s](%s)", i+1, displayDomain(s.URL), s.URL)
	}
	return resourcesHeader + strings.Join(lines, "\n") + resourcesFooter
}

func displayDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
