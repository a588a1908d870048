// Package completion adapts the richer internal/llm.Provider (chat messages,
// tool calls, streaming handlers) down to the single-prompt-in,
// text-out contract the query and extraction components need.
package completion

import (
	"context"
	"strings"

	"ragcore/internal/llm"
)

// Options controls a single completion call.
type Options struct {
	System      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// LLM is the narrow single-prompt surface completion.Client exposes on top
// of an internal/llm.Provider.
type LLM interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
	StreamComplete(ctx context.Context, prompt string, opts Options, onDelta func(string)) error
}

// Client wraps an llm.Provider to satisfy LLM.
type Client struct {
	provider llm.Provider
}

// New wraps provider as a completion.LLM.
func New(provider llm.Provider) *Client {
	return &Client{provider: provider}
}

func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	msgs := buildMessages(prompt, opts)
	msg, err := c.provider.Chat(ctx, msgs, nil, opts.Model)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (c *Client) StreamComplete(ctx context.Context, prompt string, opts Options, onDelta func(string)) error {
	msgs := buildMessages(prompt, opts)
	return c.provider.ChatStream(ctx, msgs, nil, opts.Model, &deltaHandler{onDelta: onDelta})
}

func buildMessages(prompt string, opts Options) []llm.Message {
	msgs := make([]llm.Message, 0, 2)
	if sys := strings.TrimSpace(opts.System); sys != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: sys})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: prompt})
	return msgs
}

// deltaHandler adapts a plain text-delta callback to llm.StreamHandler,
// discarding tool calls, images, and thought summaries.
type deltaHandler struct {
	onDelta func(string)
}

func (d *deltaHandler) OnDelta(content string)            { d.onDelta(content) }
func (d *deltaHandler) OnToolCall(llm.ToolCall)            {}
func (d *deltaHandler) OnImage(llm.GeneratedImage)         {}
func (d *deltaHandler) OnThoughtSummary(string)            {}
