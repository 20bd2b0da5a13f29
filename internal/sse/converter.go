// Package sse converts upstream events into OpenAI-style
// chat.completion.chunk payloads and frames them as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// Converter is the Stream-to-SSE Converter (spec §4.5): a pure function of
// its own tracker state, never touching pipeline flow or the upstream
// process.
type Converter struct {
	meta toolcall.ResponseMeta

	textSeen      string
	reasoningSeen string
}

// New constructs a converter for one request.
func New(meta toolcall.ResponseMeta) *Converter {
	return &Converter{meta: meta}
}

// Chunk is one chat.completion.chunk payload, pre-marshal.
type Chunk map[string]any

// Convert maps one upstream event to zero or one SSE chunks. Tool-call
// events are never passed here directly in normal flow (the interceptor
// handles them); Convert still supports them for non-streaming/backfill use.
func (c *Converter) Convert(ev upstream.Event) (Chunk, bool) {
	switch ev.Type {
	case upstream.EventAssistant:
		return c.nextText(ev.Text)
	case upstream.EventThinking:
		return c.nextReasoning(ev.ThinkingDelta)
	case upstream.EventToolCall:
		return c.toolCallChunk(ev), true
	default:
		return nil, false
	}
}

// nextText computes the incremental delta for cumulative assistant text
// (spec §8 invariant 4: delta monotonicity).
func (c *Converter) nextText(cumulative string) (Chunk, bool) {
	delta := diff(c.textSeen, cumulative)
	c.textSeen = longerOf(c.textSeen, cumulative)
	if delta == "" {
		return nil, false
	}
	return c.baseChunk(map[string]any{"content": delta}, nil), true
}

func (c *Converter) nextReasoning(cumulative string) (Chunk, bool) {
	delta := diff(c.reasoningSeen, cumulative)
	c.reasoningSeen = longerOf(c.reasoningSeen, cumulative)
	if delta == "" {
		return nil, false
	}
	return c.baseChunk(map[string]any{"reasoning_content": delta}, nil), true
}

// diff returns the suffix of next beyond prev, assuming next is cumulative
// (prev is always a prefix of next per the upstream's own contract). Falls
// back to the full next value if that assumption doesn't hold, rather than
// silently dropping text.
func diff(prev, next string) string {
	if strings.HasPrefix(next, prev) {
		return next[len(prev):]
	}
	return next
}

func longerOf(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

func (c *Converter) toolCallChunk(ev upstream.Event) Chunk {
	id := ev.CallID
	if id == "" {
		id = "unknown"
	}
	name := strings.ToLower(stripToolCallSuffix(ev.ToolName))
	argsJSON, _ := json.Marshal(ev.ToolArgs)

	delta := map[string]any{
		"tool_calls": []map[string]any{
			{
				"index": 0,
				"id":    id,
				"type":  "function",
				"function": map[string]any{
					"name":      name,
					"arguments": string(argsJSON),
				},
			},
		},
	}
	return c.baseChunk(delta, nil)
}

func stripToolCallSuffix(name string) string {
	lower := strings.ToLower(name)
	const suffix = "toolcall"
	if strings.HasSuffix(lower, suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

func (c *Converter) baseChunk(delta map[string]any, finishReason any) Chunk {
	return Chunk{
		"id":      c.meta.ID,
		"object":  "chat.completion.chunk",
		"created": c.meta.Created,
		"model":   c.meta.Model,
		"choices": []map[string]any{
			{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			},
		},
	}
}

// FinalChunk emits the terminal finish_reason=stop chunk.
func (c *Converter) FinalChunk() Chunk {
	return c.baseChunk(map[string]any{}, "stop")
}

// Frame encodes a chunk as a single `data: ...\n\n` SSE frame.
func Frame(chunk Chunk) ([]byte, error) {
	b, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("sse: marshal chunk: %w", err)
	}
	return []byte("data: " + string(b) + "\n\n"), nil
}

// Done is the terminal SSE frame.
var Done = []byte("data: [DONE]\n\n")
