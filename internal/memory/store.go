package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"deepsearch/internal/domain"
)

// SQLiteStore implements domain.ConversationStore and domain.ResponseCache.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ domain.ConversationStore = (*SQLiteStore)(nil)
	_ domain.ResponseCache     = (*SQLiteStore)(nil)
)

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) CreateConversation(ctx context.Context, conv domain.Conversation) error {
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create conversation %s: %w", conv.ID, err)
	}
	return nil
}

// GetConversation returns nil, nil when id is unknown.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var title sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	conv.Title = title.String
	return &conv, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var title sql.NullString
		if err := rows.Scan(&c.ID, &title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Title = title.String
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (s *SQLiteStore) AddMessage(ctx context.Context, convID string, msg domain.MessageRecord) error {
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	var sources any
	if len(msg.Sources) > 0 {
		b, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("encode sources: %w", err)
		}
		sources = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, sources, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		convID, msg.Role, msg.Content, sources, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add message to %s: %w", convID, err)
	}

	_, _ = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, convID,
	)
	return nil
}

// GetMessages returns the last limit messages of a conversation, oldest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, convID string, limit int) ([]domain.MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, sources, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`, convID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages of %s: %w", convID, err)
	}
	defer rows.Close()

	var msgs []domain.MessageRecord
	for rows.Next() {
		var m domain.MessageRecord
		var content, sources sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Content = content.String
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &m.Sources); err != nil {
				s.logger.Warn("skipping undecodable sources", "message_id", m.ID, "error", err)
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetAnswer returns the cached answer for key if it has not expired at now.
// A miss is nil, nil.
func (s *SQLiteStore) GetAnswer(ctx context.Context, key string, now time.Time) (*domain.AggregatedAnswer, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT response FROM search_cache WHERE query = ? AND expires_at > ?`,
		key, now.UnixMilli(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var ans domain.AggregatedAnswer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return nil, fmt.Errorf("decode cached answer: %w", err)
	}
	return &ans, nil
}

// PutAnswer upserts a cache entry; a newer write for the same key replaces the old one.
func (s *SQLiteStore) PutAnswer(ctx context.Context, entry domain.CacheEntry) error {
	raw, err := json.Marshal(entry.Answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO search_cache (query, response, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		entry.Query, string(raw), entry.CreatedAt.UnixMilli(), entry.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
