// ABOUTME: WebSocket session handling: handshake auth, frame parsing, and
// ABOUTME: delivery of turn events back to the connected client.

package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/2389/muse-gateway/internal/auth"
	"github.com/2389/muse-gateway/internal/conversation"
)

// writeTimeout bounds a single frame write to a client.
const writeTimeout = 5 * time.Second

// ClientFrame is a JSON frame received from a client.
type ClientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// ServerFrame is a JSON frame sent to a client.
type ServerFrame struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Message        *MessageResponse `json:"message,omitempty"`
	IsTyping       *bool            `json:"is_typing,omitempty"`
	Error          string           `json:"error,omitempty"`
}

func toServerFrame(ev *conversation.Event) *ServerFrame {
	frame := &ServerFrame{
		Type:           ev.Type,
		ConversationID: ev.ConversationID,
		Error:          ev.Error,
	}
	if ev.Message != nil {
		msg := toMessageResponse(ev.Message)
		frame.Message = &msg
	}
	if ev.Type == conversation.EventTypingIndicator {
		isTyping := ev.IsTyping
		frame.IsTyping = &isTyping
	}
	return frame
}

// sessionToken extracts the credential from a websocket handshake request.
// Browsers cannot set headers on websocket upgrades, so the token query
// parameter is the primary path; Authorization is accepted for other
// clients.
func sessionToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// handleWebSocket handles GET /ws. Authentication happens before the
// upgrade: a bad credential gets a plain 401 and the connection never
// produces events. After the upgrade, a session binding exists until
// disconnect and is never persisted.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.ResolveToken(r.Context(), g.store, g.verifier, sessionToken(r))
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, sessionID := g.hub.Subscribe(ctx, identity.UserID)
	g.logger.Info("session opened", "user_id", identity.UserID, "session_id", sessionID)
	defer g.logger.Info("session closed", "user_id", identity.UserID, "session_id", sessionID)

	// Validation errors go only to this session, not to the user's other
	// sessions, so they bypass the hub.
	local := make(chan *conversation.Event, 8)

	go g.writeLoop(ctx, cancel, conn, events, local)

	for {
		var frame ClientFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			// Covers client disconnects and shutdown; in-flight turns
			// keep running on their own detached context.
			return
		}
		g.handleFrame(identity, &frame, local)
	}
}

func (g *Gateway) handleFrame(identity *auth.Identity, frame *ClientFrame, local chan<- *conversation.Event) {
	switch frame.Type {
	case "send_message":
		if frame.ConversationID == "" || strings.TrimSpace(frame.Content) == "" {
			g.sessionError(local, frame.ConversationID, "Missing conversation_id or content")
			return
		}
		if err := g.orch.Submit(identity.UserID, frame.ConversationID, frame.Content, g.hub.Sink(identity.UserID)); err != nil {
			g.sessionError(local, frame.ConversationID, "Missing conversation_id or content")
		}
	default:
		g.sessionError(local, frame.ConversationID, "Unknown message type")
	}
}

func (g *Gateway) sessionError(local chan<- *conversation.Event, conversationID, message string) {
	ev := &conversation.Event{
		Type:           conversation.EventError,
		ConversationID: conversationID,
		Error:          message,
	}
	select {
	case local <- ev:
	default:
	}
}

// writeLoop serializes all frame writes for one connection. A failed or
// stalled write tears the session down; event production is unaffected.
func (g *Gateway) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, events <-chan *conversation.Event, local <-chan *conversation.Event) {
	defer cancel()
	for {
		var ev *conversation.Event
		var ok bool
		select {
		case ev, ok = <-events:
			if !ok {
				return
			}
		case ev = <-local:
		case <-ctx.Done():
			return
		}

		writeCtx, done := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(writeCtx, conn, toServerFrame(ev))
		done()
		if err != nil {
			g.logger.Debug("session write failed", "error", err)
			return
		}
	}
}
