// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/conversation/message/memory persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			preferences_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'New Conversation',
			user_id TEXT NOT NULL REFERENCES users(id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			context_summary TEXT,
			context_entities TEXT,
			context_topics TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user
			ON conversations(user_id, updated_at DESC);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			created_at TEXT NOT NULL,
			metadata_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS memory_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			tier TEXT NOT NULL CHECK (tier IN ('short_term', 'long_term', 'semantic')),
			content TEXT NOT NULL,
			importance INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			expires_at TEXT,
			metadata_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_memory_user_tier
			ON memory_records(user_id, tier, importance DESC, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateUser inserts a new user. Returns ErrDuplicateUser if the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	query := `
		INSERT INTO users (id, email, name, password_hash, preferences_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		string(prefs),
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, email, name, password_hash, preferences_json, created_at
		FROM users ` + where

	var user User
	var prefsJSON, createdAtStr string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&prefsJSON,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if err := json.Unmarshal([]byte(prefsJSON), &user.Preferences); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	user.Preferences.Normalize()

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// CreateConversation inserts a new conversation with a zero message count.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (id, title, user_id, created_at, updated_at, message_count)
		VALUES (?, ?, ?, ?, ?, 0)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Title,
		conv.UserID,
		conv.CreatedAt.UTC().Format(time.RFC3339),
		conv.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "user_id", conv.UserID)
	return nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, title, user_id, created_at, updated_at, message_count,
		       context_summary, context_entities, context_topics
		FROM conversations
		WHERE id = ?
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var createdAtStr, updatedAtStr string
	var summary, entities, topics sql.NullString

	err := row.Scan(
		&conv.ID,
		&conv.Title,
		&conv.UserID,
		&createdAtStr,
		&updatedAtStr,
		&conv.MessageCount,
		&summary,
		&entities,
		&topics,
	)
	if err != nil {
		return nil, err
	}

	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	if summary.Valid {
		conv.Context.Summary = summary.String
	}
	if entities.Valid && entities.String != "" {
		if err := json.Unmarshal([]byte(entities.String), &conv.Context.Entities); err != nil {
			return nil, fmt.Errorf("decoding context entities: %w", err)
		}
	}
	if topics.Valid && topics.String != "" {
		if err := json.Unmarshal([]byte(topics.String), &conv.Context.Topics); err != nil {
			return nil, fmt.Errorf("decoding context topics: %w", err)
		}
	}

	return &conv, nil
}

// ListConversations returns a user's conversations ordered by most recent activity.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*Conversation, error) {
	query := `
		SELECT id, title, user_id, created_at, updated_at, message_count,
		       context_summary, context_entities, context_topics
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	return convs, nil
}

// UpdateConversationContext overwrites the conversation's context snapshot.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) UpdateConversationContext(ctx context.Context, id string, snapshot ContextSnapshot) error {
	entities, err := json.Marshal(snapshot.Entities)
	if err != nil {
		return fmt.Errorf("encoding context entities: %w", err)
	}
	topics, err := json.Marshal(snapshot.Topics)
	if err != nil {
		return fmt.Errorf("encoding context topics: %w", err)
	}

	query := `
		UPDATE conversations
		SET context_summary = ?, context_entities = ?, context_topics = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, snapshot.Summary, string(entities), string(topics), id)
	if err != nil {
		return fmt.Errorf("updating conversation context: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated conversation context", "id", id)
	return nil
}

// DeleteConversation removes a conversation and all of its messages.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// SaveMessage inserts a message and bumps the owning conversation's
// message_count and updated_at in the same transaction, so the count
// invariant holds without read-time counting.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("encoding message metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ConversationID,
		msg.Role,
		msg.Content,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		string(metadata),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, updated_at = ?
		WHERE id = ?
	`,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation counters: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("saved message", "id", msg.ID, "conversation_id", msg.ConversationID, "role", msg.Role)
	return nil
}

// GetRecentMessages retrieves the most recent `limit` messages for a
// conversation, returned in chronological order (oldest first).
func (s *SQLiteStore) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 10
	}

	// Get the N most recent messages, but return them in chronological order
	query := `
		SELECT id, conversation_id, role, content, created_at, metadata_json
		FROM (
			SELECT id, conversation_id, role, content, created_at, metadata_json
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`

	return s.queryMessages(ctx, query, conversationID, limit)
}

// GetConversationMessages retrieves all messages for a conversation in
// chronological order.
func (s *SQLiteStore) GetConversationMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at, metadata_json
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return s.queryMessages(ctx, query, conversationID)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var createdAtStr string
		var metadata sql.NullString

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &createdAtStr, &metadata); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}

		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("decoding message metadata: %w", err)
			}
		}

		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

// AppendMemory persists a memory record unconditionally. Records are never
// deduplicated by content; repeated similar statements accumulate.
func (s *SQLiteStore) AppendMemory(ctx context.Context, record *MemoryRecord) error {
	var metadata any
	if record.Metadata != nil {
		data, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("encoding memory metadata: %w", err)
		}
		metadata = string(data)
	}

	var expiresAt any
	if record.ExpiresAt != nil {
		expiresAt = record.ExpiresAt.UTC().Format(time.RFC3339)
	}

	query := `
		INSERT INTO memory_records (id, user_id, tier, content, importance, created_at, expires_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Tier,
		record.Content,
		record.Importance,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		expiresAt,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("inserting memory record: %w", err)
	}

	s.logger.Debug("appended memory", "id", record.ID, "user_id", record.UserID, "tier", record.Tier, "importance", record.Importance)
	return nil
}

// RecallRanked returns up to `limit` memory records for a user and tier,
// ordered by importance descending, ties broken by most recent first.
func (s *SQLiteStore) RecallRanked(ctx context.Context, userID, tier string, limit int) ([]*MemoryRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
		SELECT id, user_id, tier, content, importance, created_at, expires_at, metadata_json
		FROM memory_records
		WHERE user_id = ? AND tier = ?
		ORDER BY importance DESC, created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, tier, limit)
	if err != nil {
		return nil, fmt.Errorf("querying memory records: %w", err)
	}
	defer rows.Close()

	var records []*MemoryRecord
	for rows.Next() {
		var rec MemoryRecord
		var createdAtStr string
		var expiresAt, metadata sql.NullString

		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Tier, &rec.Content, &rec.Importance, &createdAtStr, &expiresAt, &metadata); err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}

		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing memory created_at: %w", err)
		}

		if expiresAt.Valid {
			t, err := time.Parse(time.RFC3339, expiresAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing memory expires_at: %w", err)
			}
			rec.ExpiresAt = &t
		}

		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decoding memory metadata: %w", err)
			}
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memory rows: %w", err)
	}

	return records, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
