package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"deepsearch/internal/domain"
)

func TestSnapshot_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	src := testStore(t)
	src.CreateConversation(ctx, domain.Conversation{ID: "c1", Title: "what is go"})
	src.AddMessage(ctx, "c1", domain.MessageRecord{Role: domain.RoleUser, Content: "what is go"})
	src.AddMessage(ctx, "c1", domain.MessageRecord{
		Role:    domain.RoleAssistant,
		Content: "# Go\n\nA language.",
		Sources: []domain.Source{{URL: "https://go.dev", Title: "Go"}},
	})
	src.CreateConversation(ctx, domain.Conversation{ID: "c2", Title: "empty"})
	src.PutAnswer(ctx, domain.CacheEntry{Query: "live", Answer: domain.AggregatedAnswer{Content: "fresh"}, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	src.PutAnswer(ctx, domain.CacheEntry{Query: "stale", Answer: domain.AggregatedAnswer{Content: "old"}, CreatedAt: now, ExpiresAt: now})

	snap, err := src.Export(ctx, now)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(snap.Conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(snap.Conversations))
	}
	if len(snap.Cache) != 1 || snap.Cache[0].Query != "live" {
		t.Fatalf("only live cache entries should be exported, got %+v", snap.Cache)
	}

	// The snapshot travels as JSON.
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	dst := testStore(t)
	stats, err := dst.Import(ctx, &decoded)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Conversations != 2 || stats.Messages != 2 || stats.CacheEntries != 1 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	msgs, _ := dst.GetMessages(ctx, "c1", 10)
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Content != "# Go\n\nA language." {
		t.Fatalf("history not restored in order: %+v", msgs)
	}
	if len(msgs[1].Sources) != 1 || msgs[1].Sources[0].URL != "https://go.dev" {
		t.Errorf("sources lost: %+v", msgs[1].Sources)
	}
	if got, _ := dst.GetAnswer(ctx, "live", now); got == nil || got.Content != "fresh" {
		t.Errorf("cache entry not restored: %+v", got)
	}

	// Importing again changes nothing.
	again, err := dst.Import(ctx, &decoded)
	if err != nil {
		t.Fatal(err)
	}
	if again.Conversations != 0 || again.Skipped != 2 || again.Messages != 0 || again.CacheEntries != 0 {
		t.Errorf("re-import should be a no-op, got %+v", again)
	}
	if msgs, _ := dst.GetMessages(ctx, "c1", 10); len(msgs) != 2 {
		t.Errorf("re-import duplicated messages: %d", len(msgs))
	}
}

func TestSnapshot_ImportKeepsNewerCacheEntry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	store := testStore(t)
	store.PutAnswer(ctx, domain.CacheEntry{Query: "q", Answer: domain.AggregatedAnswer{Content: "newer"}, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})

	snap := &Snapshot{
		SchemaVersion: schemaVersion,
		Cache: []domain.CacheEntry{
			{Query: "q", Answer: domain.AggregatedAnswer{Content: "older"}, CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		},
	}
	stats, err := store.Import(ctx, snap)
	if err != nil {
		t.Fatal(err)
	}
	if stats.CacheEntries != 0 {
		t.Errorf("older entry should not replace newer, stats %+v", stats)
	}
	if got, _ := store.GetAnswer(ctx, "q", now); got == nil || got.Content != "newer" {
		t.Errorf("expected newer answer to survive, got %+v", got)
	}
}

func TestSnapshot_RejectsFutureSchema(t *testing.T) {
	store := testStore(t)
	if _, err := store.Import(context.Background(), &Snapshot{SchemaVersion: schemaVersion + 1}); err == nil {
		t.Fatal("expected error for snapshot from a newer schema")
	}
}
