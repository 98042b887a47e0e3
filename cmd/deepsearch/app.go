package main

import (
	"fmt"
	"log/slog"
	"time"

	"deepsearch/internal/agent"
	"deepsearch/internal/aggregator"
	"deepsearch/internal/answer"
	"deepsearch/internal/config"
	"deepsearch/internal/domain"
	"deepsearch/internal/fallback"
	"deepsearch/internal/memory"
	"deepsearch/internal/provider"
	"deepsearch/internal/search"
	"deepsearch/internal/stream"
)

// app holds the wired components shared by serve and ask.
type app struct {
	registry *provider.Registry
	searcher *search.Searcher
	answers  *answer.Service
	agent    *agent.Agent
	emitter  *stream.Emitter
	store    *memory.SQLiteStore // nil when storage is disabled
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	registry, err := provider.NewRegistry(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	responder, err := fallback.New()
	if err != nil {
		return nil, fmt.Errorf("fallback templates: %w", err)
	}

	searcher := search.NewSearcher(search.SearcherConfig{
		Backend: search.NewBackend(cfg.Search, nil),
		Logger:  logger,
	})

	a := &app{
		registry: registry,
		searcher: searcher,
		emitter:  stream.NewEmitter(time.Duration(cfg.Stream.DelayMs) * time.Millisecond),
	}

	var (
		cache domain.ResponseCache
		convs domain.ConversationStore
	)
	if cfg.Storage.Enabled {
		store, err := memory.NewSQLiteStore(cfg.Storage.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.store = store
		convs = store
		if cfg.Cache.Enabled {
			cache = store
		}
	} else if cfg.Cache.Enabled {
		cache = memory.NewMemoryCache()
	}

	agg := aggregator.New(aggregator.Config{
		Providers:   registry,
		Searcher:    searcher,
		Responder:   responder,
		SearchCount: cfg.General.SearchResults,
		Logger:      logger,
	})

	a.answers = answer.New(answer.Config{
		Aggregator: agg,
		Cache:      cache,
		Store:      convs,
		TTL:        time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Logger:     logger,
	})

	a.agent = agent.New(agent.Config{
		Completer: provider.NewFailover(registry.All(), logger),
		Responder: responder,
		Logger:    logger,
	})

	return a, nil
}

// conversations returns the store as an interface, nil when disabled.
func (a *app) conversations() domain.ConversationStore {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
