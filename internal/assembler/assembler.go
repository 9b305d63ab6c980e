// ABOUTME: Context assembler merging profile, conversation state, history and memory tiers
// ABOUTME: Read-only and deterministic; absent values are represented, never silently defaulted

package assembler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/muse-gateway/internal/memory"
	"github.com/2389/muse-gateway/internal/store"
)

// Assembly limits. The history window and recall caps bound the context
// object regardless of conversation length or memory volume.
const (
	historyWindow = 10
	longTermLimit = 5
	semanticLimit = 3
)

// Store is what the assembler needs from persistence.
type Store interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
}

// UserProfile is the profile slice of the assembled context.
type UserProfile struct {
	Name        string
	Preferences store.Preferences
}

// ConversationState is the conversation slice of the assembled context.
type ConversationState struct {
	Title        string
	MessageCount int
	Summary      string
	Entities     []string
	Topics       []string
}

// Context is the bounded context object handed to the response pipeline.
// ShortTerm holds only the signals that were present and unexpired; a
// missing key stays missing rather than being defaulted.
type Context struct {
	Profile      UserProfile
	Conversation ConversationState
	ShortTerm    map[string]string
	LongTerm     []*store.MemoryRecord
	Semantic     []*store.MemoryRecord
	History      []*store.Message
}

// Assembler builds conversation context from the store and memory tiers.
type Assembler struct {
	store  Store
	tiers  *memory.Tiers
	logger *slog.Logger
}

// New creates an assembler. Pass nil logger for default.
func New(st Store, tiers *memory.Tiers, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		store:  st,
		tiers:  tiers,
		logger: logger.With("component", "assembler"),
	}
}

// shortTermKeys is the fixed signal set the assembler reads.
var shortTermKeys = []string{
	memory.KeyCurrentTopic,
	memory.KeyUserIntent,
	memory.KeySessionContext,
}

// Assemble builds the context for one turn. It mutates nothing and is
// deterministic given its inputs. A missing user or conversation is a hard
// precondition failure; memory recall errors surface so the caller can
// decide whether to proceed without context.
func (a *Assembler) Assemble(ctx context.Context, userID, conversationID string) (*Context, error) {
	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}

	conv, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}

	history, err := a.store.GetRecentMessages(ctx, conversationID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("loading recent messages: %w", err)
	}

	shortTerm := make(map[string]string)
	for _, key := range shortTermKeys {
		if value, ok := a.tiers.GetShortTerm(userID, key); ok {
			shortTerm[key] = value
		}
	}

	longTerm, err := a.tiers.RecallRanked(ctx, userID, store.TierLongTerm, longTermLimit)
	if err != nil {
		return nil, err
	}

	semantic, err := a.tiers.RecallRanked(ctx, userID, store.TierSemantic, semanticLimit)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("context assembled",
		"conversation_id", conversationID,
		"history", len(history),
		"short_term", len(shortTerm),
		"long_term", len(longTerm),
		"semantic", len(semantic))

	return &Context{
		Profile: UserProfile{
			Name:        user.Name,
			Preferences: user.Preferences,
		},
		Conversation: ConversationState{
			Title:        conv.Title,
			MessageCount: conv.MessageCount,
			Summary:      conv.Context.Summary,
			Entities:     conv.Context.Entities,
			Topics:       conv.Context.Topics,
		},
		ShortTerm: shortTerm,
		LongTerm:  longTerm,
		Semantic:  semantic,
		History:   history,
	}, nil
}
