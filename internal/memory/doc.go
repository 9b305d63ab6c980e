// ABOUTME: Package documentation for the memory package
// ABOUTME: Describes the three memory tiers and their lifetimes

// Package memory implements the tiered memory store.
//
// Short-term memory is a process-local TTL cache: per-user signals
// (current topic, inferred intent, session context) expire after an hour,
// conversation snapshots after a day. Long-term and semantic memory are
// durable records ranked by importance for recall.
//
// The Updater applies the post-turn writes: it refreshes short-term
// signals, stores the conversation snapshot, scores the inbound message,
// and promotes it to long-term memory when the score reaches the
// threshold. Updater failures never abort an already-persisted turn.
package memory
