// ABOUTME: Tests for context assembly
// ABOUTME: Covers profile/history/memory merging and hard precondition failures

package assembler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/muse-gateway/internal/memory"
	"github.com/2389/muse-gateway/internal/store"
)

// fakeStore is an in-memory Store for assembler tests.
type fakeStore struct {
	users    map[string]*store.User
	convs    map[string]*store.Conversation
	messages map[string][]*store.Message
	memories []*store.MemoryRecord
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*store.User),
		convs:    make(map[string]*store.Conversation),
		messages: make(map[string][]*store.Message),
	}
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*store.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	if conv, ok := f.convs[id]; ok {
		return conv, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetRecentMessages(_ context.Context, conversationID string, limit int) ([]*store.Message, error) {
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeStore) AppendMemory(_ context.Context, record *store.MemoryRecord) error {
	f.memories = append(f.memories, record)
	return nil
}

func (f *fakeStore) RecallRanked(_ context.Context, userID, tier string, limit int) ([]*store.MemoryRecord, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*store.MemoryRecord
	for _, rec := range f.memories {
		if rec.UserID == userID && rec.Tier == tier {
			out = append(out, rec)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func setupAssembler(t *testing.T, fs *fakeStore) (*Assembler, *memory.Tiers) {
	t.Helper()
	cache := memory.NewCache()
	t.Cleanup(cache.Close)
	tiers := memory.NewTiers(cache, fs, nil)
	return New(fs, tiers, nil), tiers
}

func seedUserAndConversation(fs *fakeStore) {
	fs.users["user-1"] = &store.User{
		ID:          "user-1",
		Email:       "user-1@example.com",
		Name:        "Ada",
		Preferences: store.DefaultPreferences(),
	}
	fs.convs["conv-1"] = &store.Conversation{
		ID:           "conv-1",
		Title:        "New Conversation",
		UserID:       "user-1",
		MessageCount: 4,
		Context: store.ContextSnapshot{
			Summary:  "User asked about: the weather...",
			Entities: []string{"weather"},
			Topics:   []string{"weather"},
		},
	}
}

func TestAssembler_MergesAllParts(t *testing.T) {
	fs := newFakeStore()
	seedUserAndConversation(fs)

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		fs.messages["conv-1"] = append(fs.messages["conv-1"], &store.Message{
			ID:             fmt.Sprintf("msg-%d", i),
			ConversationID: "conv-1",
			Role:           store.RoleUser,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
	}
	fs.memories = []*store.MemoryRecord{
		{ID: "mem-1", UserID: "user-1", Tier: store.TierLongTerm, Content: "User expressed: I like rain", Importance: 7},
		{ID: "mem-2", UserID: "user-1", Tier: store.TierSemantic, Content: "weather preferences", Importance: 5},
	}

	asm, tiers := setupAssembler(t, fs)
	tiers.PutShortTerm("user-1", memory.KeyCurrentTopic, "weather", time.Hour)

	result, err := asm.Assemble(context.Background(), "user-1", "conv-1")
	require.NoError(t, err)

	assert.Equal(t, "Ada", result.Profile.Name)
	assert.Equal(t, store.StyleCasual, result.Profile.Preferences.CommunicationStyle)
	assert.Equal(t, "New Conversation", result.Conversation.Title)
	assert.Equal(t, 4, result.Conversation.MessageCount)
	assert.Equal(t, []string{"weather"}, result.Conversation.Topics)
	assert.Equal(t, map[string]string{memory.KeyCurrentTopic: "weather"}, result.ShortTerm)
	require.Len(t, result.LongTerm, 1)
	require.Len(t, result.Semantic, 1)
	require.Len(t, result.History, 4)
	assert.Equal(t, "message 0", result.History[0].Content)
}

func TestAssembler_MissingUserIsHardFailure(t *testing.T) {
	fs := newFakeStore()
	asm, _ := setupAssembler(t, fs)

	_, err := asm.Assemble(context.Background(), "ghost", "conv-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssembler_MissingConversationIsHardFailure(t *testing.T) {
	fs := newFakeStore()
	fs.users["user-1"] = &store.User{ID: "user-1", Name: "Ada", Preferences: store.DefaultPreferences()}
	asm, _ := setupAssembler(t, fs)

	_, err := asm.Assemble(context.Background(), "user-1", "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssembler_AbsentSignalsStayAbsent(t *testing.T) {
	fs := newFakeStore()
	seedUserAndConversation(fs)
	asm, _ := setupAssembler(t, fs)

	result, err := asm.Assemble(context.Background(), "user-1", "conv-1")
	require.NoError(t, err)
	assert.Empty(t, result.ShortTerm, "unset signals must not be defaulted into the context")
}

func TestAssembler_RecallFailureSurfaces(t *testing.T) {
	fs := newFakeStore()
	seedUserAndConversation(fs)
	fs.failWith = errors.New("store down")
	asm, _ := setupAssembler(t, fs)

	_, err := asm.Assemble(context.Background(), "user-1", "conv-1")
	assert.Error(t, err)
}

func TestAssembler_ReadOnly(t *testing.T) {
	fs := newFakeStore()
	seedUserAndConversation(fs)
	asm, _ := setupAssembler(t, fs)

	before := len(fs.memories)
	_, err := asm.Assemble(context.Background(), "user-1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, before, len(fs.memories))
}
