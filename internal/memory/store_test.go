package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"deepsearch/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "deepsearch.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_ConversationRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.CreateConversation(ctx, domain.Conversation{ID: "c1", Title: "what is go"}); err != nil {
		t.Fatal(err)
	}
	// Creating the same id again is a no-op.
	if err := store.CreateConversation(ctx, domain.Conversation{ID: "c1", Title: "other"}); err != nil {
		t.Fatal(err)
	}

	conv, err := store.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if conv == nil || conv.Title != "what is go" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	missing, err := store.GetConversation(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing conversation, got %+v, %v", missing, err)
	}
}

func TestSQLiteStore_Messages(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	store.CreateConversation(ctx, domain.Conversation{ID: "c1", Title: "t"})

	sources := []domain.Source{{URL: "https://go.dev", Title: "Go", Description: "The Go site"}}
	if err := store.AddMessage(ctx, "c1", domain.MessageRecord{Role: domain.RoleUser, Content: "q"}); err != nil {
		t.Fatal(err)
	}
	if err := store.AddMessage(ctx, "c1", domain.MessageRecord{Role: domain.RoleAssistant, Content: "a", Sources: sources}); err != nil {
		t.Fatal(err)
	}

	msgs, err := store.GetMessages(ctx, "c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Errorf("messages out of order: %+v", msgs)
	}
	if len(msgs[0].Sources) != 0 {
		t.Errorf("user message should have no sources, got %v", msgs[0].Sources)
	}
	if len(msgs[1].Sources) != 1 || msgs[1].Sources[0].URL != "https://go.dev" {
		t.Errorf("sources not preserved: %+v", msgs[1].Sources)
	}

	// limit keeps the newest messages
	last, _ := store.GetMessages(ctx, "c1", 1)
	if len(last) != 1 || last[0].Content != "a" {
		t.Errorf("expected newest message, got %+v", last)
	}
}

func TestSQLiteStore_ListConversations(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		store.CreateConversation(ctx, domain.Conversation{ID: id, Title: id, CreatedAt: ts, UpdatedAt: ts})
	}

	convs, err := store.ListConversations(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ID != "c" || convs[1].ID != "b" {
		t.Errorf("expected most recent first, got %s, %s", convs[0].ID, convs[1].ID)
	}
}

func TestSQLiteStore_Cache(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Now()

	ans := domain.AggregatedAnswer{
		Content: "# AI-Enhanced Response",
		Sources: []domain.Source{{URL: "https://example.com", Title: "Example"}},
		Metadata: domain.AnswerMetadata{
			Providers:       map[string]bool{"gemini": true},
			SearchPerformed: true,
		},
	}
	err := store.PutAnswer(ctx, domain.CacheEntry{Query: "what is go", Answer: ans, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.GetAnswer(ctx, "what is go", now)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Content != ans.Content || !got.Metadata.Providers["gemini"] || len(got.Sources) != 1 {
		t.Fatalf("unexpected cached answer: %+v", got)
	}

	expired, err := store.GetAnswer(ctx, "what is go", now.Add(2*time.Hour))
	if err != nil || expired != nil {
		t.Errorf("expected expired entry to miss, got %+v, %v", expired, err)
	}

	miss, err := store.GetAnswer(ctx, "unknown", now)
	if err != nil || miss != nil {
		t.Errorf("expected miss, got %+v, %v", miss, err)
	}
}

func TestSQLiteStore_CacheReplace(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Now()

	store.PutAnswer(ctx, domain.CacheEntry{Query: "q", Answer: domain.AggregatedAnswer{Content: "old"}, ExpiresAt: now.Add(time.Hour)})
	store.PutAnswer(ctx, domain.CacheEntry{Query: "q", Answer: domain.AggregatedAnswer{Content: "new"}, ExpiresAt: now.Add(time.Hour)})

	got, _ := store.GetAnswer(ctx, "q", now)
	if got == nil || got.Content != "new" {
		t.Errorf("expected replaced entry, got %+v", got)
	}
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	now := time.Now()

	cache.PutAnswer(ctx, domain.CacheEntry{Query: "q", Answer: domain.AggregatedAnswer{Content: "x"}, ExpiresAt: now.Add(time.Minute)})

	got, err := cache.GetAnswer(ctx, "q", now)
	if err != nil || got == nil || got.Content != "x" {
		t.Fatalf("expected hit, got %+v, %v", got, err)
	}

	got, _ = cache.GetAnswer(ctx, "q", now.Add(time.Minute))
	if got != nil {
		t.Errorf("entry expiring exactly at now should miss")
	}
	if cache.Len() != 1 {
		t.Errorf("expired read must not remove the entry, len=%d", cache.Len())
	}

	// The miss had no side effect, so an earlier clock still hits.
	got, _ = cache.GetAnswer(ctx, "q", now)
	if got == nil || got.Content != "x" {
		t.Errorf("entry should still be readable before expiry, got %+v", got)
	}
}
