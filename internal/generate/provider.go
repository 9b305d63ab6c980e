// ABOUTME: Response generator contract for the pipeline's external collaborator
// ABOUTME: Prompt/context in, text/confidence out; cancellation via context

// Package generate defines the response generator interface and its
// implementations. The pipeline calls Generate once per turn with the
// user's message and the assembled context; timeout and cancellation are
// the caller's responsibility via ctx.
package generate

import (
	"context"

	"github.com/2389/muse-gateway/internal/assembler"
	"github.com/2389/muse-gateway/internal/store"
)

// Request is the input to a single generation call.
type Request struct {
	// Message is the raw user message text.
	Message string
	// Context is the assembled conversation context. May be consulted for
	// prior topics, memories and the recent message window.
	Context *assembler.Context
	// History is the recent message window in chronological order.
	History []*store.Message
	// Preferences are the requesting user's settings.
	Preferences store.Preferences
}

// Response is the generator's output.
type Response struct {
	// Content is the generated response text, before preference shaping.
	Content string
	// Confidence is the generator's self-reported confidence in [0, 1].
	Confidence float64
}

// Provider is the interface all response generators implement.
type Provider interface {
	// Generate produces a response for the request. Implementations must
	// honor ctx cancellation and return ctx.Err() promptly when it fires.
	Generate(ctx context.Context, req *Request) (*Response, error)
}
