// ABOUTME: Tests for the post-turn memory updater
// ABOUTME: Covers signal writes, snapshots, and long-term promotion

package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/muse-gateway/internal/rules"
	"github.com/2389/muse-gateway/internal/store"
)

func turnFixture(message string) TurnRecord {
	return TurnRecord{
		UserID:         "user-1",
		ConversationID: "conv-1",
		UserMessage:    message,
		ResponseText:   "Here is a helpful answer about that topic.",
		Intent:         rules.ClassifyIntent(message),
		Derived: store.ContextSnapshot{
			Summary:  "User asked about: " + message,
			Entities: rules.ExtractEntities(message),
			Topics:   rules.ExtractTopics(message),
		},
	}
}

func TestUpdater_WritesShortTermSignals(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})
	updater := NewUpdater(tiers, nil)

	turn := turnFixture("hello, what about the weather today?")
	require.NoError(t, updater.Record(context.Background(), turn))

	topic, ok := tiers.GetShortTerm("user-1", KeyCurrentTopic)
	require.True(t, ok)
	assert.Equal(t, "weather", topic)

	intent, ok := tiers.GetShortTerm("user-1", KeyUserIntent)
	require.True(t, ok)
	assert.Equal(t, string(rules.IntentGreeting), intent)
}

func TestUpdater_NoTopicLeavesCurrentTopicAlone(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})
	updater := NewUpdater(tiers, nil)

	tiers.PutShortTerm("user-1", KeyCurrentTopic, "weather", time.Hour)

	turn := turnFixture("zzz")
	turn.Derived.Topics = nil
	require.NoError(t, updater.Record(context.Background(), turn))

	topic, ok := tiers.GetShortTerm("user-1", KeyCurrentTopic)
	require.True(t, ok)
	assert.Equal(t, "weather", topic, "absent topics must not clear the previous one")
}

func TestUpdater_StoresSnapshot(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})
	updater := NewUpdater(tiers, nil)

	turn := turnFixture("tell me about ai")
	turn.ResponseText = strings.Repeat("x", 150)
	require.NoError(t, updater.Record(context.Background(), turn))

	snap, ok, err := tiers.GetConversationSnapshot("conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tell me about ai", snap.LastMessage)
	assert.Equal(t, strings.Repeat("x", 100)+"...", snap.ResponseSummary)
	assert.False(t, snap.Timestamp.IsZero())
}

func TestUpdater_SnapshotSummaryMultibyte(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})
	updater := NewUpdater(tiers, nil)

	turn := turnFixture("tell me about ai")
	turn.ResponseText = strings.Repeat("é", 120)
	require.NoError(t, updater.Record(context.Background(), turn))

	snap, ok, err := tiers.GetConversationSnapshot("conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	// Rune-boundary truncation keeps the stored summary valid UTF-8.
	assert.True(t, utf8.ValidString(snap.ResponseSummary))
	assert.Equal(t, strings.Repeat("é", 100)+"...", snap.ResponseSummary)
}

func TestUpdater_PromotesImportantMessage(t *testing.T) {
	durable := &fakeDurable{}
	tiers := setupTiers(t, durable)
	updater := NewUpdater(tiers, nil)

	// Brackets are not additive: the critical bracket tops out at 1+5=6,
	// below the promotion threshold of 7, so this must not promote.
	turn := turnFixture("This is important, please remember")
	require.NoError(t, updater.Record(context.Background(), turn))
	assert.Empty(t, durable.records, "score 6 stays below the promotion threshold")
}

func TestUpdater_PromotionContentAndMetadata(t *testing.T) {
	durable := &fakeDurable{}
	tiers := setupTiers(t, durable)
	updater := NewUpdater(tiers, nil)
	updater.threshold = 6 // exercise promotion without depending on bracket maxima

	turn := turnFixture("This is important, please remember")
	require.NoError(t, updater.Record(context.Background(), turn))

	require.Len(t, durable.records, 1)
	rec := durable.records[0]
	assert.Equal(t, "User expressed: This is important, please remember", rec.Content)
	assert.Equal(t, store.TierLongTerm, rec.Tier)
	assert.Equal(t, 6, rec.Importance)
	assert.Equal(t, "conv-1", rec.Metadata["conversation_id"])
}

func TestUpdater_DurableFailureIsReported(t *testing.T) {
	durable := &fakeDurable{failWith: errors.New("store down")}
	tiers := setupTiers(t, durable)
	updater := NewUpdater(tiers, nil)
	updater.threshold = 1

	turn := turnFixture("remember my favorite color is blue")
	err := updater.Record(context.Background(), turn)
	assert.Error(t, err)

	// Short-term writes happened despite the durable failure
	_, ok := tiers.GetShortTerm("user-1", KeyUserIntent)
	assert.True(t, ok)
}
