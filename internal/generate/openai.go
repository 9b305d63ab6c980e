// ABOUTME: OpenAI-compatible chat completions adapter for response generation
// ABOUTME: Builds a system prompt from the assembled context and recent history

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/muse-gateway/internal/assembler"
	"github.com/2389/muse-gateway/internal/store"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// openAIConfidence is reported when the API returns a normal completion;
// the chat completions API exposes no confidence signal of its own.
const openAIConfidence = 0.9

// OpenAIConfig configures the OpenAI-compatible adapter.
type OpenAIConfig struct {
	// APIKey is the bearer token for the API.
	APIKey string
	// BaseURL overrides the API endpoint (useful for local models).
	// Defaults to https://api.openai.com/v1.
	BaseURL string
	// Model is the model name sent with each request.
	Model string
	// Timeout backstops requests whose caller context has no deadline.
	// Defaults to 120s.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API.
type openAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI returns a Provider backed by the OpenAI (or compatible) API.
func NewOpenAI(cfg OpenAIConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- wire types (subset of the OpenAI API) ---

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends the message plus contextual system prompt to the API.
func (p *openAIProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	messages := []oaiMessage{{Role: "system", Content: systemPrompt(req)}}
	for _, msg := range req.History {
		messages = append(messages, oaiMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, oaiMessage{Role: store.RoleUser, Content: req.Message})

	body, err := json.Marshal(oaiRequest{Model: p.cfg.Model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling completions API: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var parsed oaiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", httpResp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("completions API error: %s", parsed.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completions API status %d", httpResp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("completions API returned no choices")
	}

	return &Response{
		Content:    parsed.Choices[0].Message.Content,
		Confidence: openAIConfidence,
	}, nil
}

// systemPrompt renders the assembled context into model instructions.
func systemPrompt(req *Request) string {
	var b strings.Builder
	b.WriteString("You are a personal assistant with memory of prior conversations.\n")

	if req.Context != nil {
		writeProfile(&b, req.Context)
		writeMemory(&b, req.Context)
	}

	fmt.Fprintf(&b, "Respond in a %s style.", req.Preferences.CommunicationStyle)
	return b.String()
}

func writeProfile(b *strings.Builder, c *assembler.Context) {
	if c.Profile.Name != "" {
		fmt.Fprintf(b, "The user's name is %s.\n", c.Profile.Name)
	}
	if c.Conversation.Summary != "" {
		fmt.Fprintf(b, "Conversation so far: %s\n", c.Conversation.Summary)
	}
	if len(c.Conversation.Topics) > 0 {
		fmt.Fprintf(b, "Recent topics: %s\n", strings.Join(c.Conversation.Topics, ", "))
	}
}

func writeMemory(b *strings.Builder, c *assembler.Context) {
	if topic, ok := c.ShortTerm["current_topic"]; ok {
		fmt.Fprintf(b, "Current topic: %s\n", topic)
	}
	for _, rec := range c.LongTerm {
		fmt.Fprintf(b, "Remembered: %s\n", rec.Content)
	}
	for _, rec := range c.Semantic {
		fmt.Fprintf(b, "Known: %s\n", rec.Content)
	}
}

var _ Provider = (*openAIProvider)(nil)
