package domain

import (
	"context"
	"time"
)

// ConversationStore is the durable, append-only record of questions and answers.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]Conversation, error)

	AddMessage(ctx context.Context, convID string, msg MessageRecord) error
	GetMessages(ctx context.Context, convID string, limit int) ([]MessageRecord, error)
}

// ResponseCache memoizes final answers by normalized query.
// Expired entries are never returned but are not purged either.
type ResponseCache interface {
	GetAnswer(ctx context.Context, key string, now time.Time) (*AggregatedAnswer, error)
	PutAnswer(ctx context.Context, entry CacheEntry) error
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type MessageRecord struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // user | assistant
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CacheEntry struct {
	Query     string           `json:"query"`
	Answer    AggregatedAnswer `json:"answer"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}
