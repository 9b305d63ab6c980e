// ABOUTME: Event types emitted by the orchestrator during turn processing.
// ABOUTME: The gateway maps these onto websocket wire frames for delivery.

package conversation

import "github.com/2389/muse-gateway/internal/store"

// Event type identifiers as they appear on the wire.
const (
	EventMessageReceived = "message_received"
	EventTypingIndicator = "typing_indicator"
	EventError           = "error"
)

// Event is a single orchestrator notification. Message is set for
// message_received events, IsTyping for typing_indicator events, and
// Error for error events. Events never cross the wire directly; the
// gateway translates them into its own frame types.
type Event struct {
	Type           string
	ConversationID string
	Message        *store.Message
	IsTyping       bool
	Error          string
}

// Sink receives events for delivery to a client session. Implementations
// must not block: delivery to a disconnected session is dropped, never
// retried, and never fails the turn that produced the event.
type Sink interface {
	Emit(event *Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event *Event)

func (f SinkFunc) Emit(event *Event) { f(event) }
