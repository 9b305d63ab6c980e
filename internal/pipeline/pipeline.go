// ABOUTME: Response pipeline: classify, extract, generate under timeout, shape
// ABOUTME: Side-effect free; all persistence happens in the orchestrator

// Package pipeline runs the per-turn response steps in order: intent
// classification, entity/topic extraction, generation through the external
// provider under a bounded timeout, and preference shaping. A timeout is a
// generation failure, not a crash.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/muse-gateway/internal/assembler"
	"github.com/2389/muse-gateway/internal/generate"
	"github.com/2389/muse-gateway/internal/rules"
	"github.com/2389/muse-gateway/internal/store"
)

// ErrGenerationTimeout is returned when the provider exceeds the configured
// generation timeout.
var ErrGenerationTimeout = errors.New("generation timed out")

// DefaultTimeout bounds provider calls when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// derivedSummaryLen bounds the message prefix used in the derived summary.
const derivedSummaryLen = 50

// elaborationOffer is appended to responses for users preferring detail.
const elaborationOffer = "\n\nWould you like me to elaborate on any particular aspect? I'm here to provide detailed explanations based on your preferences and our conversation history."

// Result is the pipeline's output for one turn.
type Result struct {
	Content     string
	Confidence  float64
	ContextUsed bool
	Intent      rules.Intent
	Derived     store.ContextSnapshot
}

// Pipeline drives the response steps for one turn.
type Pipeline struct {
	provider generate.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a pipeline. A zero timeout falls back to DefaultTimeout.
// Pass nil logger for default.
func New(provider generate.Provider, timeout time.Duration, logger *slog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider: provider,
		timeout:  timeout,
		logger:   logger.With("component", "pipeline"),
	}
}

// Run executes the pipeline for one user message. The assembled context is
// read, never mutated.
func (p *Pipeline) Run(ctx context.Context, message string, asmCtx *assembler.Context) (*Result, error) {
	intent := rules.ClassifyIntent(message)
	entities := rules.ExtractEntities(message)
	topics := rules.ExtractTopics(message)

	resp, err := p.invoke(ctx, message, asmCtx)
	if err != nil {
		return nil, err
	}

	content := shape(resp.Content, asmCtx.Profile.Preferences.ResponseLength)

	p.logger.Debug("pipeline completed",
		"intent", intent,
		"entities", len(entities),
		"topics", len(topics),
		"confidence", resp.Confidence)

	return &Result{
		Content:     content,
		Confidence:  resp.Confidence,
		ContextUsed: true,
		Intent:      intent,
		Derived: store.ContextSnapshot{
			Summary:  derivedSummary(message),
			Entities: entities,
			Topics:   topics,
		},
	}, nil
}

// invoke runs the provider as an explicit asynchronous task with a bounded
// wait, so timeout and cancellation are first-class rather than incidental.
func (p *Pipeline) invoke(ctx context.Context, message string, asmCtx *assembler.Context) (*generate.Response, error) {
	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := &generate.Request{
		Message:     message,
		Context:     asmCtx,
		History:     asmCtx.History,
		Preferences: asmCtx.Profile.Preferences,
	}

	type outcome struct {
		resp *generate.Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		resp, err := p.provider.Generate(genCtx, req)
		done <- outcome{resp, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return nil, ErrGenerationTimeout
			}
			return nil, fmt.Errorf("generating response: %w", out.err)
		}
		return out.resp, nil
	case <-genCtx.Done():
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrGenerationTimeout
		}
		return nil, genCtx.Err()
	}
}

// shape applies the user's response length preference.
func shape(content string, length store.ResponseLength) string {
	switch length {
	case store.LengthShort:
		return firstSentence(content)
	case store.LengthDetailed:
		return content + elaborationOffer
	default:
		return content
	}
}

// firstSentence truncates to the first period-terminated sentence.
func firstSentence(content string) string {
	head, _, found := strings.Cut(content, ".")
	if !found {
		return content
	}
	return head + "."
}

// derivedSummary builds the rolling summary entry from the user message.
// Truncation counts runes so a multi-byte character is never split.
func derivedSummary(message string) string {
	if runes := []rune(message); len(runes) > derivedSummaryLen {
		message = string(runes[:derivedSummaryLen])
	}
	return "User asked about: " + message + "..."
}
