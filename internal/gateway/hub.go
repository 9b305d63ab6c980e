// ABOUTME: In-memory fan-out hub for delivering turn events to live sessions
// ABOUTME: Publishes orchestrator events to all websocket sessions of a user

package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/muse-gateway/internal/conversation"
)

// sessionBufferSize is the channel buffer for each session. A session
// that falls this far behind starts losing events rather than stalling
// the turn that produced them.
const sessionBufferSize = 64

// SessionHub provides in-memory pub/sub for turn events. Each websocket
// session subscribes under its user ID, so every live session of a user
// sees the events for that user's turns. Delivery is best-effort: a
// disconnected or slow session drops events, never blocks processing.
type SessionHub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]chan *conversation.Event // userID -> sessionID -> ch
	logger   *slog.Logger
}

// NewSessionHub creates a hub. Pass nil logger for default.
func NewSessionHub(logger *slog.Logger) *SessionHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHub{
		sessions: make(map[string]map[string]chan *conversation.Event),
		logger:   logger.With("component", "hub"),
	}
}

// Subscribe registers a session for a user's events. Returns the event
// channel and a session ID for later unsubscription. The subscription is
// cleaned up automatically when ctx is cancelled.
func (h *SessionHub) Subscribe(ctx context.Context, userID string) (<-chan *conversation.Event, string) {
	sessionID := uuid.New().String()
	ch := make(chan *conversation.Event, sessionBufferSize)

	h.mu.Lock()
	if _, ok := h.sessions[userID]; !ok {
		h.sessions[userID] = make(map[string]chan *conversation.Event)
	}
	h.sessions[userID][sessionID] = ch
	h.mu.Unlock()

	h.logger.Debug("session subscribed", "user_id", userID, "session_id", sessionID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(userID, sessionID)
	}()

	return ch, sessionID
}

// Publish sends an event to all sessions of the given user. Non-blocking:
// events are dropped for sessions whose channels are full. The read lock is
// held across the sends so Unsubscribe cannot close a channel mid-publish;
// the sends never block, so holding it is safe.
func (h *SessionHub) Publish(userID string, event *conversation.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.sessions[userID]
	if !ok {
		return
	}

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			h.logger.Debug("dropped event for slow session",
				"user_id", userID,
				"event_type", event.Type)
		}
	}
}

// Sink returns a conversation.Sink that publishes to all sessions of the
// given user. Handed to the orchestrator at submission time.
func (h *SessionHub) Sink(userID string) conversation.Sink {
	return conversation.SinkFunc(func(event *conversation.Event) {
		h.Publish(userID, event)
	})
}

// Unsubscribe removes a session and closes its channel.
func (h *SessionHub) Unsubscribe(userID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.sessions[userID]
	if !ok {
		return
	}

	ch, exists := subs[sessionID]
	if !exists {
		return
	}

	delete(subs, sessionID)
	if len(subs) == 0 {
		delete(h.sessions, userID)
	}
	close(ch)

	h.logger.Debug("session unsubscribed", "user_id", userID, "session_id", sessionID)
}

// SessionCount reports the number of live sessions for a user.
func (h *SessionHub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}
