// Package search turns a query into a non-empty list of sources using a web
// search backend, synthesizing links when the backend has nothing to offer.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"deepsearch/internal/config"
	"deepsearch/internal/domain"
	"deepsearch/internal/provider"
)

const (
	DefaultCount  = 5
	searchTimeout = 15 * time.Second
	userAgent     = "DeepSearch/1.0"
)

// Backend runs one query against a search service.
type Backend interface {
	Name() string
	Query(ctx context.Context, term string, count int) ([]domain.Source, error)
	// SearchURL is the human-facing results page for term.
	SearchURL(term string) string
}

type Searcher struct {
	backend Backend
	logger  *slog.Logger
}

type SearcherConfig struct {
	Backend Backend
	Logger  *slog.Logger
}

func NewSearcher(cfg SearcherConfig) *Searcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Searcher{backend: cfg.Backend, logger: cfg.Logger}
}

// BackendName reports which backend the searcher queries.
func (s *Searcher) BackendName() string { return s.backend.Name() }

var leadingPhrase = regexp.MustCompile(`(?i)^(tell me about|what is|explain|describe)\s+`)

// Variants returns the query rewrites tried in order, without duplicates.
func Variants(query string) []string {
	candidates := []string{
		query,
		leadingPhrase.ReplaceAllString(query, ""),
		query + " information",
		query + " facts",
		query + " overview",
	}
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Search never fails and never returns an empty slice. The first variant
// with at least one hit wins; otherwise links to the backend's own results
// page are synthesized.
func (s *Searcher) Search(ctx context.Context, query string, count int) []domain.Source {
	if count <= 0 {
		count = DefaultCount
	}

	var errs []error
	variants := Variants(query)
	for _, term := range variants {
		results, err := s.backend.Query(ctx, term, count)
		if err != nil {
			s.logger.Warn("search variant failed", "backend", s.backend.Name(), "term", term, "error", err)
			errs = append(errs, err)
			continue
		}
		if len(results) > 0 {
			s.logger.Debug("search variant matched", "backend", s.backend.Name(), "term", term, "results", len(results))
			return truncate(results, count)
		}
	}

	allFailed := len(errs) == len(variants)
	if allFailed {
		s.logger.Warn("search backend unavailable, synthesizing links",
			"backend", s.backend.Name(), "error", errors.Join(errs...))
	}
	return truncate(s.synthesize(query, allFailed), count)
}

func (s *Searcher) synthesize(query string, allFailed bool) []domain.Source {
	out := []domain.Source{
		{
			Title:       fmt.Sprintf("Comprehensive Information about %s", query),
			URL:         s.backend.SearchURL(query),
			Description: fmt.Sprintf("Search for %q to find detailed information, facts, and resources about this topic.", query),
		},
		{
			Title:       fmt.Sprintf("%s - Latest Updates and News", query),
			URL:         s.backend.SearchURL(query + " news"),
			Description: fmt.Sprintf("Get the latest news, updates, and developments related to %s from reliable sources.", query),
		},
	}
	if allFailed {
		return out
	}
	return append(out, domain.Source{
		Title:       fmt.Sprintf("%s - Expert Analysis and Insights", query),
		URL:         s.backend.SearchURL(query + " expert analysis"),
		Description: fmt.Sprintf("Find expert opinions, research papers, and in-depth analysis about %s from authoritative sources.", query),
	})
}

func truncate(in []domain.Source, n int) []domain.Source {
	if len(in) > n {
		return in[:n]
	}
	return in
}

// NewBackend picks Google Custom Search when both of its credentials are
// configured (or it is requested explicitly) and DuckDuckGo otherwise.
func NewBackend(cfg config.SearchConfig, client *http.Client) Backend {
	if client == nil {
		client = provider.SharedHTTPClient(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}
	useGoogle := cfg.Backend == "google" ||
		(cfg.Backend == "" && provider.HasCredential(cfg.GoogleAPIKey) && cfg.GoogleEngineID != "")
	if useGoogle {
		return NewGoogle(GoogleConfig{
			APIKey:     cfg.GoogleAPIKey,
			EngineID:   cfg.GoogleEngineID,
			APIBase:    cfg.APIBase,
			HTTPClient: client,
		})
	}
	return NewDuckDuckGo(DuckDuckGoConfig{APIBase: cfg.APIBase, HTTPClient: client})
}
