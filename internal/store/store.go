// ABOUTME: Store interface and data types for muse-gateway persistence
// ABOUTME: Defines User, Conversation, Message, MemoryRecord and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when registering an email that is already taken
var ErrDuplicateUser = errors.New("user already exists")

// Role constants for message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Memory tier constants
const (
	TierShortTerm = "short_term"
	TierLongTerm  = "long_term"
	TierSemantic  = "semantic"
)

// CommunicationStyle is the user's preferred tone for responses
type CommunicationStyle string

const (
	StyleCasual    CommunicationStyle = "casual"
	StyleFormal    CommunicationStyle = "formal"
	StyleTechnical CommunicationStyle = "technical"
)

// ResponseLength is the user's preferred response verbosity
type ResponseLength string

const (
	LengthShort    ResponseLength = "short"
	LengthMedium   ResponseLength = "medium"
	LengthDetailed ResponseLength = "detailed"
)

// Preferences is the closed set of per-user settings. Unknown keys from
// older rows are dropped on read; missing fields get defaults.
type Preferences struct {
	CommunicationStyle CommunicationStyle `json:"communication_style"`
	ResponseLength     ResponseLength     `json:"response_length"`
}

// DefaultPreferences returns the preferences assigned at registration.
func DefaultPreferences() Preferences {
	return Preferences{
		CommunicationStyle: StyleCasual,
		ResponseLength:     LengthMedium,
	}
}

// Normalize fills zero-valued fields with defaults.
func (p *Preferences) Normalize() {
	if p.CommunicationStyle == "" {
		p.CommunicationStyle = StyleCasual
	}
	if p.ResponseLength == "" {
		p.ResponseLength = LengthMedium
	}
}

// User represents a registered account. Owned by the auth layer;
// read-only to the conversation core.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Preferences  Preferences
	CreatedAt    time.Time
}

// ContextSnapshot is the rolling summary attached to a conversation,
// refreshed after each completed turn.
type ContextSnapshot struct {
	Summary  string   `json:"summary"`
	Entities []string `json:"entities"`
	Topics   []string `json:"topics"`
}

// Conversation represents a chat thread owned by a user.
// MessageCount always equals the number of persisted messages; the
// orchestrator maintains it through SaveMessage, never by counting rows.
type Conversation struct {
	ID           string
	Title        string
	UserID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Context      ContextSnapshot
}

// MessageMetadata carries generation details for assistant messages.
type MessageMetadata struct {
	Confidence   float64 `json:"confidence,omitempty"`
	ProcessingMS int64   `json:"processing_ms,omitempty"`
	ContextUsed  bool    `json:"context_used,omitempty"`
}

// Message represents a single message within a conversation
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" or "assistant"
	Content        string
	CreatedAt      time.Time
	Metadata       MessageMetadata
}

// MemoryRecord is a durable long-term or semantic memory belonging to a user.
// Short-term memory never reaches the store; it lives in the TTL cache.
type MemoryRecord struct {
	ID         string
	UserID     string
	Tier       string // "short_term", "long_term", "semantic"
	Content    string
	Importance int // 1-10
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	Metadata   map[string]any
}

// Store defines the interface for durable persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
	UpdateConversationContext(ctx context.Context, id string, snapshot ContextSnapshot) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages. SaveMessage inserts the message and bumps the owning
	// conversation's message_count and updated_at in the same transaction.
	SaveMessage(ctx context.Context, msg *Message) error
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	GetConversationMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Memory records (long-term and semantic tiers)
	AppendMemory(ctx context.Context, record *MemoryRecord) error
	RecallRanked(ctx context.Context, userID, tier string, limit int) ([]*MemoryRecord, error)

	// Close releases any resources held by the store
	Close() error
}
