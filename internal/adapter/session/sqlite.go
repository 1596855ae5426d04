// Package session persists finalized conversations in SQLite.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"grumpstudio/internal/domain"
)

// titleMaxLen bounds session titles derived from the first user message.
const titleMaxLen = 80

// SQLiteStore implements domain.SessionStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			messages   TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession implements domain.SessionStore.
func (s *SQLiteStore) CreateSession(ctx context.Context, messages []domain.Message) (string, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("marshal messages: %w", err)
	}
	now := time.Now().UTC()
	id := generateULID(now)
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, title, messages, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, titleFor(messages), string(payload), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// UpdateSession implements domain.SessionStore.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, messages []domain.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET messages = ?, title = ?, updated_at = ? WHERE id = ?",
		string(payload), titleFor(messages), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewDomainError("SessionStore.Update", domain.ErrSessionNotFound, id)
	}
	return nil
}

// LoadSession implements domain.SessionStore.
func (s *SQLiteStore) LoadSession(ctx context.Context, id string) ([]domain.Message, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT messages FROM sessions WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, domain.NewDomainError("SessionStore.Load", domain.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var msgs []domain.Message
	if err := json.Unmarshal([]byte(payload), &msgs); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return msgs, nil
}

// ListSessions implements domain.SessionStore.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, messages, updated_at FROM sessions ORDER BY updated_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var (
			sum       domain.SessionSummary
			payload   string
			updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &payload, &updatedAt); err != nil {
			return nil, err
		}
		var msgs []json.RawMessage
		if err := json.Unmarshal([]byte(payload), &msgs); err == nil {
			sum.MessageCount = len(msgs)
		}
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			sum.UpdatedAt = ts
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// titleFor derives a list title from the first user message.
func titleFor(messages []domain.Message) string {
	for _, m := range messages {
		if m.Role != domain.RoleUser {
			continue
		}
		title := strings.TrimSpace(m.Content)
		if title == "" {
			continue
		}
		if idx := strings.IndexByte(title, '\n'); idx > 0 {
			title = title[:idx]
		}
		if len(title) > titleMaxLen {
			title = title[:titleMaxLen]
		}
		return title
	}
	return "Untitled session"
}

var _ domain.SessionStore = (*SQLiteStore)(nil)
