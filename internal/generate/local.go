// ABOUTME: Local heuristic response provider with canned topic branches
// ABOUTME: Serves development and tests without an external model dependency

package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389/muse-gateway/internal/store"
)

// localConfidence is the fixed confidence reported by the local provider.
const localConfidence = 0.92

// LocalProvider generates responses from a small set of canned branches.
// It stands in for a real model during development and in tests.
type LocalProvider struct {
	// Delay simulates model latency before responding. Zero means respond
	// immediately. The delay is interruptible by ctx.
	Delay time.Duration
}

// NewLocalProvider creates a local provider with no artificial delay.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// Generate produces a canned response based on keywords in the message,
// the user's communication style, and prior conversation topics.
func (p *LocalProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Response{
		Content:    p.compose(req),
		Confidence: localConfidence,
	}, nil
}

func (p *LocalProvider) compose(req *Request) string {
	lower := strings.ToLower(req.Message)
	style := req.Preferences.CommunicationStyle

	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		if style == store.StyleFormal {
			return "Good day! How may I assist you today?"
		}
		return "Hello there! How can I help you today?"

	case strings.Contains(lower, "weather"):
		return "I'd be happy to help with weather information, but I don't have access to real-time weather data at the moment. You might want to check your local weather app or website for accurate conditions."

	case strings.Contains(lower, "remember"):
		return "I have access to our conversation history and can remember context from our previous interactions. What would you like me to remember or recall?"

	case strings.Contains(lower, "ai") ||
		strings.Contains(lower, "artificial intelligence") ||
		strings.Contains(lower, "machine learning"):
		if style == store.StyleTechnical {
			return "Artificial Intelligence encompasses machine learning algorithms, neural networks, and computational models designed to simulate human cognitive functions. What specific aspect would you like to explore?"
		}
		return "AI is fascinating! It's technology that can learn and make decisions similar to how humans think. What would you like to know about AI?"
	}

	// Generic fallback, acknowledging prior topics when the context has any
	var intro string
	if req.Context != nil && len(req.Context.Conversation.Topics) > 0 {
		topics := req.Context.Conversation.Topics
		if len(topics) > 2 {
			topics = topics[:2]
		}
		intro = fmt.Sprintf("Building on our discussion about %s, ", strings.Join(topics, ", "))
	}
	return fmt.Sprintf("%sI understand you're asking about '%s'. Let me help you with that.", intro, req.Message)
}

var _ Provider = (*LocalProvider)(nil)
