// ABOUTME: Tests for the memory tier facade
// ABOUTME: Covers key shapes, snapshot round-trips, and durable-store errors

package memory

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/muse-gateway/internal/store"
)

// fakeDurable is an in-memory DurableStore for tests. Setting failWith makes
// every call return that error.
type fakeDurable struct {
	records  []*store.MemoryRecord
	failWith error
}

func (f *fakeDurable) AppendMemory(_ context.Context, record *store.MemoryRecord) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeDurable) RecallRanked(_ context.Context, userID, tier string, limit int) ([]*store.MemoryRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*store.MemoryRecord
	for _, rec := range f.records {
		if rec.UserID == userID && rec.Tier == tier {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func setupTiers(t *testing.T, durable DurableStore) *Tiers {
	t.Helper()
	cache := NewCache()
	t.Cleanup(cache.Close)
	return NewTiers(cache, durable, nil)
}

func TestTiers_ShortTermRoundTrip(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})

	tiers.PutShortTerm("user-1", KeyCurrentTopic, "weather", time.Hour)

	value, ok := tiers.GetShortTerm("user-1", KeyCurrentTopic)
	assert.True(t, ok)
	assert.Equal(t, "weather", value)
}

func TestTiers_ShortTermExpiry(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})

	tiers.PutShortTerm("user-1", KeyCurrentTopic, "weather", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := tiers.GetShortTerm("user-1", KeyCurrentTopic)
	assert.False(t, ok)
}

func TestTiers_ShortTermScopedByUser(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})

	tiers.PutShortTerm("user-1", KeyCurrentTopic, "weather", time.Hour)

	_, ok := tiers.GetShortTerm("user-2", KeyCurrentTopic)
	assert.False(t, ok)
}

func TestTiers_SnapshotRoundTrip(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})

	snap := Snapshot{
		LastMessage:     "what's the weather?",
		ResponseSummary: "I'd be happy to help with weather information...",
		Timestamp:       time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, tiers.PutConversationSnapshot("conv-1", snap, time.Hour))

	retrieved, ok, err := tiers.GetConversationSnapshot("conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, *retrieved)
}

func TestTiers_SnapshotAbsent(t *testing.T) {
	tiers := setupTiers(t, &fakeDurable{})

	_, ok, err := tiers.GetConversationSnapshot("conv-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTiers_RecallRankedSurfacesFailure(t *testing.T) {
	durable := &fakeDurable{failWith: errors.New("store down")}
	tiers := setupTiers(t, durable)

	_, err := tiers.RecallRanked(context.Background(), "user-1", store.TierLongTerm, 5)
	assert.Error(t, err, "unavailability must surface, not read as empty")
}

func TestTiers_AppendAndRecall(t *testing.T) {
	durable := &fakeDurable{}
	tiers := setupTiers(t, durable)
	ctx := context.Background()

	rec := &store.MemoryRecord{
		ID:         "mem-1",
		UserID:     "user-1",
		Tier:       store.TierLongTerm,
		Content:    "User expressed: I always take notes",
		Importance: 7,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, tiers.AppendLongTerm(ctx, rec))

	recalled, err := tiers.RecallRanked(ctx, "user-1", store.TierLongTerm, 5)
	require.NoError(t, err)
	require.Len(t, recalled, 1)
	assert.Equal(t, "mem-1", recalled[0].ID)
}
