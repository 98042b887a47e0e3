package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"deepsearch/internal/domain"
)

// Snapshot is the portable form of a store, written by `deepsearch backup`
// and merged back by `deepsearch restore`.
type Snapshot struct {
	SchemaVersion int                  `json:"schema_version"`
	ExportedAt    time.Time            `json:"exported_at"`
	Conversations []ConversationExport `json:"conversations"`
	Cache         []domain.CacheEntry  `json:"cache"`
}

type ConversationExport struct {
	domain.Conversation
	Messages []domain.MessageRecord `json:"messages"`
}

// ImportStats counts what Import actually wrote.
type ImportStats struct {
	Conversations int
	Skipped       int // already present, left untouched
	Messages      int
	CacheEntries  int
}

// Export reads every conversation with its full history plus the cache
// entries still live at now.
func (s *SQLiteStore) Export(ctx context.Context, now time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		SchemaVersion: schemaVersion,
		ExportedAt:    now.UTC(),
		Conversations: []ConversationExport{},
		Cache:         []domain.CacheEntry{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("export conversations: %w", err)
	}
	for rows.Next() {
		var c ConversationExport
		var title sql.NullString
		if err := rows.Scan(&c.ID, &title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		c.Title = title.String
		snap.Conversations = append(snap.Conversations, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Messages are read after the conversation cursor is closed; the store
	// holds a single connection.
	for i := range snap.Conversations {
		msgs, err := s.allMessages(ctx, snap.Conversations[i].ID)
		if err != nil {
			return nil, err
		}
		snap.Conversations[i].Messages = msgs
	}

	cache, err := s.db.QueryContext(ctx,
		`SELECT query, response, created_at, expires_at FROM search_cache
		 WHERE expires_at > ? ORDER BY query`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("export cache: %w", err)
	}
	defer cache.Close()
	for cache.Next() {
		var e domain.CacheEntry
		var raw string
		var created, expires int64
		if err := cache.Scan(&e.Query, &raw, &created, &expires); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Answer); err != nil {
			s.logger.Warn("skipping undecodable cache entry", "query", e.Query, "error", err)
			continue
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		e.ExpiresAt = time.UnixMilli(expires).UTC()
		snap.Cache = append(snap.Cache, e)
	}
	return snap, cache.Err()
}

func (s *SQLiteStore) allMessages(ctx context.Context, convID string) ([]domain.MessageRecord, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, convID).Scan(&n); err != nil {
		return nil, fmt.Errorf("count messages of %s: %w", convID, err)
	}
	if n == 0 {
		return []domain.MessageRecord{}, nil
	}
	return s.GetMessages(ctx, convID, n)
}

// Import merges a snapshot in one transaction. Conversations already in
// the store keep their own history; cache entries replace existing ones
// only when they were created later.
func (s *SQLiteStore) Import(ctx context.Context, snap *Snapshot) (ImportStats, error) {
	var stats ImportStats
	if snap.SchemaVersion > schemaVersion {
		return stats, fmt.Errorf("snapshot schema v%d is newer than this build (v%d)", snap.SchemaVersion, schemaVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	for _, c := range snap.Conversations {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			c.ID, c.Title, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return stats, fmt.Errorf("import conversation %s: %w", c.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			stats.Skipped++
			continue
		}
		stats.Conversations++

		for _, m := range c.Messages {
			var sources any
			if len(m.Sources) > 0 {
				b, err := json.Marshal(m.Sources)
				if err != nil {
					return stats, fmt.Errorf("encode sources: %w", err)
				}
				sources = string(b)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (conversation_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
				c.ID, m.Role, m.Content, sources, m.CreatedAt); err != nil {
				return stats, fmt.Errorf("import message into %s: %w", c.ID, err)
			}
			stats.Messages++
		}
	}

	for _, e := range snap.Cache {
		raw, err := json.Marshal(e.Answer)
		if err != nil {
			return stats, fmt.Errorf("encode answer: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO search_cache (query, response, created_at, expires_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(query) DO UPDATE SET
			   response = excluded.response,
			   created_at = excluded.created_at,
			   expires_at = excluded.expires_at
			 WHERE excluded.created_at > search_cache.created_at`,
			e.Query, string(raw), e.CreatedAt.UnixMilli(), e.ExpiresAt.UnixMilli())
		if err != nil {
			return stats, fmt.Errorf("import cache entry: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.CacheEntries++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, err
	}
	s.logger.Info("snapshot imported",
		"conversations", stats.Conversations,
		"skipped", stats.Skipped,
		"messages", stats.Messages,
		"cache_entries", stats.CacheEntries,
	)
	return stats, nil
}
