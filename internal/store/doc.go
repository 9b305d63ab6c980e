// ABOUTME: Package documentation for the store package
// ABOUTME: Explains the persistence layer role and invariants

// Package store provides durable persistence for muse-gateway.
//
// It owns users, conversations, messages, and long-term/semantic memory
// records, backed by SQLite. Two invariants are maintained here rather
// than at read time:
//
//   - conversations.message_count always equals the number of persisted
//     messages for that conversation (SaveMessage bumps it transactionally)
//   - conversations.updated_at never decreases (it tracks the timestamp of
//     the most recently appended message)
//
// Short-term memory never reaches this package; it lives in the TTL cache
// in internal/memory.
package store
