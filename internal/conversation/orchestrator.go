// ABOUTME: Orchestrator drives message turns through their processing states
// ABOUTME: and serializes turns per conversation in strict arrival order.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/muse-gateway/internal/assembler"
	"github.com/2389/muse-gateway/internal/memory"
	"github.com/2389/muse-gateway/internal/pipeline"
	"github.com/2389/muse-gateway/internal/store"
)

// turnTimeout bounds a whole turn. Turns run on a detached context so a
// client disconnect never aborts persistence mid-turn; only delivery of
// the resulting events is dropped.
const turnTimeout = 2 * time.Minute

// clientErrorMessage is the only internal-error text sent to clients.
// Real causes stay in the logs.
const clientErrorMessage = "An error occurred while processing your message"

// Store defines what the orchestrator needs from storage.
type Store interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	UpdateConversationContext(ctx context.Context, id string, snapshot store.ContextSnapshot) error
}

// Orchestrator owns turn processing. Each conversation gets a lane: a
// single goroutine that works queued turns one at a time, so two messages
// to the same conversation are never processed concurrently and always
// complete in arrival order. Different conversations proceed in parallel.
type Orchestrator struct {
	store   Store
	asm     *assembler.Assembler
	pipe    *pipeline.Pipeline
	updater *memory.Updater
	logger  *slog.Logger

	mu     sync.Mutex
	lanes  map[string]*lane
	states map[string]State
	wg     sync.WaitGroup

	now func() time.Time
}

type lane struct {
	queue   []*turn
	running bool
}

type turn struct {
	userID         string
	conversationID string
	content        string
	sink           Sink
}

// New creates an orchestrator. Pass nil logger for default.
func New(st Store, asm *assembler.Assembler, pipe *pipeline.Pipeline, updater *memory.Updater, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:   st,
		asm:     asm,
		pipe:    pipe,
		updater: updater,
		logger:  logger.With("component", "orchestrator"),
		lanes:   make(map[string]*lane),
		states:  make(map[string]State),
		now:     time.Now,
	}
}

// Submit enqueues a message turn for processing and returns immediately.
// Events produced by the turn are delivered through sink. Submission order
// is processing order within a conversation.
func (o *Orchestrator) Submit(userID, conversationID, content string, sink Sink) error {
	if conversationID == "" || strings.TrimSpace(content) == "" {
		return fmt.Errorf("conversation id and content are required")
	}
	t := &turn{
		userID:         userID,
		conversationID: conversationID,
		content:        content,
		sink:           sink,
	}

	o.mu.Lock()
	l, ok := o.lanes[conversationID]
	if !ok {
		l = &lane{}
		o.lanes[conversationID] = l
	}
	l.queue = append(l.queue, t)
	if !l.running {
		l.running = true
		o.wg.Add(1)
		go o.runLane(conversationID, l)
	}
	o.mu.Unlock()
	return nil
}

// State reports the current processing state of a conversation.
func (o *Orchestrator) State(conversationID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[conversationID]; ok {
		return s
	}
	return StateIdle
}

// Drain waits for all queued and in-flight turns to finish, or until ctx
// is done. Used during shutdown so accepted turns complete.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLane works a conversation's queue until it is empty, then retires.
func (o *Orchestrator) runLane(conversationID string, l *lane) {
	defer o.wg.Done()
	for {
		o.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			delete(o.lanes, conversationID)
			o.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue = l.queue[1:]
		o.mu.Unlock()

		o.processTurn(t)
	}
}

func (o *Orchestrator) processTurn(t *turn) {
	// Detached from any session context, same as the rest of the
	// persistence path: a disconnect must not abort a turn in flight.
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	o.transition(t.conversationID, StateReceiving)

	conv, err := o.store.GetConversation(ctx, t.conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.fail(t, "Conversation not found", err)
			return
		}
		o.fail(t, clientErrorMessage, fmt.Errorf("loading conversation: %w", err))
		return
	}
	if conv.UserID != t.userID {
		// Do not reveal that the conversation exists.
		o.fail(t, "Conversation not found", fmt.Errorf("conversation %s not owned by user %s", t.conversationID, t.userID))
		return
	}

	start := o.now()
	userMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: t.conversationID,
		Role:           store.RoleUser,
		Content:        t.content,
		CreatedAt:      start,
	}
	if err := o.store.SaveMessage(ctx, userMsg); err != nil {
		o.fail(t, clientErrorMessage, fmt.Errorf("saving user message: %w", err))
		return
	}
	// Acknowledge only after the message is durable.
	t.sink.Emit(&Event{Type: EventMessageReceived, ConversationID: t.conversationID, Message: userMsg})

	o.transition(t.conversationID, StateContextBuilding)
	asmCtx, err := o.asm.Assemble(ctx, t.userID, t.conversationID)
	if err != nil {
		o.fail(t, clientErrorMessage, fmt.Errorf("assembling context: %w", err))
		return
	}

	o.transition(t.conversationID, StateGenerating)
	t.sink.Emit(&Event{Type: EventTypingIndicator, ConversationID: t.conversationID, IsTyping: true})
	result, err := o.pipe.Run(ctx, t.content, asmCtx)
	t.sink.Emit(&Event{Type: EventTypingIndicator, ConversationID: t.conversationID, IsTyping: false})
	if err != nil {
		o.fail(t, clientErrorMessage, fmt.Errorf("generating response: %w", err))
		return
	}

	o.transition(t.conversationID, StatePersisting)
	assistantMsg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: t.conversationID,
		Role:           store.RoleAssistant,
		Content:        result.Content,
		CreatedAt:      o.now(),
		Metadata: store.MessageMetadata{
			Confidence:   result.Confidence,
			ProcessingMS: o.now().Sub(start).Milliseconds(),
			ContextUsed:  result.ContextUsed,
		},
	}
	if err := o.store.SaveMessage(ctx, assistantMsg); err != nil {
		o.fail(t, clientErrorMessage, fmt.Errorf("saving assistant message: %w", err))
		return
	}

	// The assistant message is already durable; losing the derived
	// context or a memory write degrades future turns but must not
	// fail this one.
	if err := o.store.UpdateConversationContext(ctx, t.conversationID, result.Derived); err != nil {
		o.logger.Warn("failed to update conversation context",
			"conversation_id", t.conversationID,
			"error", err)
	}
	if err := o.updater.Record(ctx, memory.TurnRecord{
		UserID:         t.userID,
		ConversationID: t.conversationID,
		UserMessage:    t.content,
		ResponseText:   result.Content,
		Intent:         result.Intent,
		Derived:        result.Derived,
	}); err != nil {
		o.logger.Warn("memory update failed",
			"conversation_id", t.conversationID,
			"error", err)
	}

	t.sink.Emit(&Event{Type: EventMessageReceived, ConversationID: t.conversationID, Message: assistantMsg})
	o.transition(t.conversationID, StateIdle)

	o.logger.Debug("turn complete",
		"conversation_id", t.conversationID,
		"intent", result.Intent,
		"processing_ms", assistantMsg.Metadata.ProcessingMS)
}

// fail emits a client-safe error event and returns the conversation to
// idle. The underlying cause is logged, never sent to the client.
func (o *Orchestrator) fail(t *turn, clientMsg string, err error) {
	o.logger.Error("turn failed",
		"conversation_id", t.conversationID,
		"user_id", t.userID,
		"error", err)
	o.transition(t.conversationID, StateFailed)
	t.sink.Emit(&Event{Type: EventError, ConversationID: t.conversationID, Error: clientMsg})
	o.transition(t.conversationID, StateIdle)
}

// transition moves a conversation to a new state, enforcing the table in
// validTransitions. Idle conversations are dropped from the map.
func (o *Orchestrator) transition(conversationID string, to State) {
	o.mu.Lock()
	from, ok := o.states[conversationID]
	if !ok {
		from = StateIdle
	}
	if !canTransition(from, to) {
		o.mu.Unlock()
		o.logger.Error("invalid state transition",
			"conversation_id", conversationID,
			"from", from,
			"to", to)
		return
	}
	if to == StateIdle {
		delete(o.states, conversationID)
	} else {
		o.states[conversationID] = to
	}
	o.mu.Unlock()
}
