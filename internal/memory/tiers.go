// ABOUTME: Tiered memory store combining the short-term TTL cache with durable recall
// ABOUTME: Short-term signals and snapshots live in the cache; long-term/semantic tiers in the store

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/muse-gateway/internal/store"
)

// Default TTLs for short-term memory.
const (
	SignalTTL   = time.Hour      // per-key signals like current_topic
	SnapshotTTL = 24 * time.Hour // conversation context snapshots
)

// Short-term signal keys read by the context assembler.
const (
	KeyCurrentTopic   = "current_topic"
	KeyUserIntent     = "user_intent"
	KeySessionContext = "session_context"
)

// DurableStore is what the tier store needs from persistence.
type DurableStore interface {
	AppendMemory(ctx context.Context, record *store.MemoryRecord) error
	RecallRanked(ctx context.Context, userID, tier string, limit int) ([]*store.MemoryRecord, error)
}

// Snapshot is the per-conversation short-term context blob, serialized as
// JSON on write and deserialized on read.
type Snapshot struct {
	LastMessage     string    `json:"last_message"`
	ResponseSummary string    `json:"response_summary"`
	Timestamp       time.Time `json:"timestamp"`
}

// Tiers exposes the three memory tiers behind one handle. Short-term data
// is process-local and expires by elapsed time; long-term and semantic
// records are durable and ranked by importance.
type Tiers struct {
	cache   *Cache
	durable DurableStore
	logger  *slog.Logger
}

// NewTiers creates a tier store. Pass nil logger for default.
func NewTiers(cache *Cache, durable DurableStore, logger *slog.Logger) *Tiers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiers{
		cache:   cache,
		durable: durable,
		logger:  logger.With("component", "memory"),
	}
}

// shortTermKey builds the cache key for a per-user signal.
func shortTermKey(userID, key string) string {
	return "short_term:" + userID + ":" + key
}

// snapshotKey builds the cache key for a conversation snapshot.
func snapshotKey(conversationID string) string {
	return "context:" + conversationID
}

// PutShortTerm stores a per-user signal. Idempotent overwrite; the value
// becomes unreadable once ttl elapses.
func (t *Tiers) PutShortTerm(userID, key, value string, ttl time.Duration) {
	t.cache.Put(shortTermKey(userID, key), value, ttl)
}

// GetShortTerm returns a per-user signal, or false if absent or expired.
func (t *Tiers) GetShortTerm(userID, key string) (string, bool) {
	return t.cache.Get(shortTermKey(userID, key))
}

// PutConversationSnapshot serializes and stores the conversation snapshot.
func (t *Tiers) PutConversationSnapshot(conversationID string, snap Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	t.cache.Put(snapshotKey(conversationID), string(data), ttl)
	return nil
}

// GetConversationSnapshot returns the deserialized snapshot, or false if
// absent or expired.
func (t *Tiers) GetConversationSnapshot(conversationID string) (*Snapshot, bool, error) {
	data, ok := t.cache.Get(snapshotKey(conversationID))
	if !ok {
		return nil, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, true, nil
}

// RecallRanked returns up to limit durable records for the tier, ordered by
// importance descending then recency. Store unavailability surfaces as an
// error, never as silent emptiness, so callers can decide whether a
// context-less response is acceptable.
func (t *Tiers) RecallRanked(ctx context.Context, userID, tier string, limit int) ([]*store.MemoryRecord, error) {
	records, err := t.durable.RecallRanked(ctx, userID, tier, limit)
	if err != nil {
		return nil, fmt.Errorf("recalling %s memory: %w", tier, err)
	}
	return records, nil
}

// AppendLongTerm persists a memory record unconditionally. No content
// deduplication is attempted.
func (t *Tiers) AppendLongTerm(ctx context.Context, record *store.MemoryRecord) error {
	if err := t.durable.AppendMemory(ctx, record); err != nil {
		return fmt.Errorf("appending long-term memory: %w", err)
	}
	t.logger.Debug("long-term memory appended",
		"user_id", record.UserID,
		"importance", record.Importance)
	return nil
}
