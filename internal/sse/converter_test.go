package sse

import (
	"testing"

	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
	"github.com/stretchr/testify/require"
)

func TestConvertEmitsIncrementalDeltasOnly(t *testing.T) {
	c := New(toolcall.ResponseMeta{ID: "r1", Model: "m"})

	chunk1, ok := c.Convert(upstream.Event{Type: upstream.EventAssistant, Text: "Hello"})
	require.True(t, ok)
	delta1 := chunk1["choices"].([]map[string]any)[0]["delta"].(map[string]any)
	require.Equal(t, "Hello", delta1["content"])

	chunk2, ok := c.Convert(upstream.Event{Type: upstream.EventAssistant, Text: "Hello world"})
	require.True(t, ok)
	delta2 := chunk2["choices"].([]map[string]any)[0]["delta"].(map[string]any)
	require.Equal(t, " world", delta2["content"])
}

func TestConvertSkipsEmptyDelta(t *testing.T) {
	c := New(toolcall.ResponseMeta{ID: "r1"})
	_, ok := c.Convert(upstream.Event{Type: upstream.EventAssistant, Text: "same"})
	require.True(t, ok)
	_, ok = c.Convert(upstream.Event{Type: upstream.EventAssistant, Text: "same"})
	require.False(t, ok)
}

func TestToolCallChunkShape(t *testing.T) {
	c := New(toolcall.ResponseMeta{ID: "r1"})
	chunk, ok := c.Convert(upstream.Event{
		Type:     upstream.EventToolCall,
		CallID:   "call_1",
		ToolName: "readToolCall",
		ToolArgs: map[string]any{"path": "foo.txt"},
	})
	require.True(t, ok)
	toolCalls := chunk["choices"].([]map[string]any)[0]["delta"].(map[string]any)["tool_calls"].([]map[string]any)
	require.Equal(t, "read", toolCalls[0]["function"].(map[string]any)["name"])
	require.Equal(t, `{"path":"foo.txt"}`, toolCalls[0]["function"].(map[string]any)["arguments"])
}
