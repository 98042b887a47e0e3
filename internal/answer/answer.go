// Package answer wraps the aggregator with the response cache and the
// conversation log.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"deepsearch/internal/domain"
	"deepsearch/internal/metrics"
)

const (
	DefaultTTL = time.Hour

	maxTitleLen = 80
)

// Aggregator produces a complete answer for a query. It never fails.
type Aggregator interface {
	Aggregate(ctx context.Context, query string) *domain.AggregatedAnswer
}

type Config struct {
	Aggregator Aggregator
	Cache      domain.ResponseCache     // optional
	Store      domain.ConversationStore // optional
	TTL        time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

type Service struct {
	agg    Aggregator
	cache  domain.ResponseCache
	store  domain.ConversationStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func New(cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		agg:    cfg.Aggregator,
		cache:  cfg.Cache,
		store:  cfg.Store,
		ttl:    cfg.TTL,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
}

// CacheKey normalizes a query for cache lookups.
func CacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Answer returns a cached answer when one is fresh, otherwise aggregates and
// caches the result. Cache failures degrade to a miss.
func (s *Service) Answer(ctx context.Context, query string) (*domain.AggregatedAnswer, bool) {
	key := CacheKey(query)

	if s.cache != nil {
		cached, err := s.cache.GetAnswer(ctx, key, s.now())
		if err != nil {
			s.storageError("cache read failed", err)
		} else if cached != nil {
			metrics.CacheHitsTotal.Inc()
			s.logger.Debug("cache hit", "query", key)
			return cached, true
		}
	}
	metrics.CacheMissesTotal.Inc()

	ans := s.agg.Aggregate(ctx, query)

	if s.cache != nil {
		now := s.now()
		err := s.cache.PutAnswer(ctx, domain.CacheEntry{
			Query:     key,
			Answer:    *ans,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		if err != nil {
			s.storageError("cache write failed", err)
		}
	}
	return ans, false
}

// Record appends the exchange to a conversation, creating it on first use.
// Without a store or a conversation id it does nothing.
func (s *Service) Record(ctx context.Context, conversationID, query string, ans *domain.AggregatedAnswer) {
	if s.store == nil || conversationID == "" || ans == nil {
		return
	}
	if err := s.record(ctx, conversationID, query, ans); err != nil {
		s.storageError("conversation write failed", err, "conversation_id", conversationID)
	}
}

func (s *Service) record(ctx context.Context, id, query string, ans *domain.AggregatedAnswer) error {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if conv == nil {
		now := s.now().UTC()
		err := s.store.CreateConversation(ctx, domain.Conversation{
			ID:        id,
			Title:     title(query),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
	}

	if err := s.store.AddMessage(ctx, id, domain.MessageRecord{
		Role:    domain.RoleUser,
		Content: query,
	}); err != nil {
		return fmt.Errorf("user message: %w", err)
	}
	if err := s.store.AddMessage(ctx, id, domain.MessageRecord{
		Role:    domain.RoleAssistant,
		Content: ans.Content,
		Sources: ans.Sources,
	}); err != nil {
		return fmt.Errorf("assistant message: %w", err)
	}
	return nil
}

func (s *Service) storageError(msg string, err error, args ...any) {
	metrics.StorageErrorsTotal.Inc()
	s.logger.Warn(msg, append(args, "error", err)...)
}

func title(query string) string {
	q := strings.TrimSpace(query)
	r := []rune(q)
	if len(r) <= maxTitleLen {
		return q
	}
	return string(r[:maxTitleLen])
}

// RelatedQuestions returns the fixed follow-up suggestions for query.
func RelatedQuestions(query string) []string {
	return []string{
		fmt.Sprintf("What are the latest developments in %s?", query),
		fmt.Sprintf("How does %s compare to alternatives?", query),
		fmt.Sprintf("What are the benefits and challenges of %s?", query),
		fmt.Sprintf("How is %s evolving in the current market?", query),
	}
}
