// ABOUTME: Post-turn memory updater writing derived signals and promoting important content
// ABOUTME: Failures here are non-fatal to the turn; callers log and continue

package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/muse-gateway/internal/rules"
	"github.com/2389/muse-gateway/internal/store"
)

// promotionThreshold is the minimum importance score for long-term promotion.
const promotionThreshold = 7

// summaryPrefixLen bounds the response summary stored in the snapshot.
const summaryPrefixLen = 100

// TurnRecord carries everything the updater needs from a completed turn.
type TurnRecord struct {
	UserID         string
	ConversationID string
	UserMessage    string
	ResponseText   string
	Intent         rules.Intent
	Derived        store.ContextSnapshot
}

// Updater applies the post-turn memory writes: short-term signals, the
// conversation snapshot, and conditional long-term promotion.
type Updater struct {
	tiers     *Tiers
	logger    *slog.Logger
	now       func() time.Time
	threshold int
}

// NewUpdater creates an updater. Pass nil logger for default.
func NewUpdater(tiers *Tiers, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		tiers:     tiers,
		logger:    logger.With("component", "memory-updater"),
		now:       time.Now,
		threshold: promotionThreshold,
	}
}

// Record applies all memory updates for a completed turn. The returned error
// reports the first durable-store failure; short-term writes cannot fail.
// Callers must treat any error as a degraded-mode continuation, not as a
// reason to roll back the already-persisted turn.
func (u *Updater) Record(ctx context.Context, turn TurnRecord) error {
	if len(turn.Derived.Topics) > 0 {
		u.tiers.PutShortTerm(turn.UserID, KeyCurrentTopic, turn.Derived.Topics[0], SignalTTL)
	}

	u.tiers.PutShortTerm(turn.UserID, KeyUserIntent, string(turn.Intent), SignalTTL)

	snap := Snapshot{
		LastMessage:     turn.UserMessage,
		ResponseSummary: summaryPrefix(turn.ResponseText),
		Timestamp:       u.now().UTC(),
	}
	if err := u.tiers.PutConversationSnapshot(turn.ConversationID, snap, SnapshotTTL); err != nil {
		u.logger.Error("failed to store conversation snapshot",
			"error", err,
			"conversation_id", turn.ConversationID)
		return err
	}

	score := rules.ImportanceScore(turn.UserMessage)
	if score < u.threshold {
		return nil
	}

	record := &store.MemoryRecord{
		ID:         uuid.New().String(),
		UserID:     turn.UserID,
		Tier:       store.TierLongTerm,
		Content:    "User expressed: " + turn.UserMessage,
		Importance: score,
		CreatedAt:  u.now().UTC(),
		Metadata: map[string]any{
			"conversation_id": turn.ConversationID,
			"context": map[string]any{
				"summary":  turn.Derived.Summary,
				"entities": turn.Derived.Entities,
				"topics":   turn.Derived.Topics,
			},
		},
	}
	if err := u.tiers.AppendLongTerm(ctx, record); err != nil {
		u.logger.Error("failed to promote long-term memory",
			"error", err,
			"user_id", turn.UserID,
			"importance", score)
		return err
	}

	return nil
}

// summaryPrefix truncates response text to its first 100 characters with an
// ellipsis marker. Counts runes, not bytes, so multi-byte text stays valid.
func summaryPrefix(text string) string {
	if runes := []rune(text); len(runes) > summaryPrefixLen {
		text = string(runes[:summaryPrefixLen])
	}
	return text + "..."
}
