package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/promptbuilder"
	"github.com/dodoproxy/dodo-proxy/internal/sse"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
)

// shUpstream fakes the upstream agent with a shell one-liner that prints
// fixed NDJSON lines to stdout regardless of what is written to its stdin,
// exercising the real process-spawn/line-splitter path end to end.
func shUpstream(script string) Options {
	return Options{
		UpstreamBin:       "/bin/sh",
		UpstreamArgs:      []string{"-c", script},
		ToolLoopMode:      boundary.LoopOpenCode,
		ToolLoopMaxRepeat: 2,
		InitialBoundary:   boundary.Legacy,
	}
}

func baseMeta() toolcall.ResponseMeta {
	return toolcall.ResponseMeta{ID: "resp-1", Created: 1, Model: "gpt-test"}
}

type collectingSink struct {
	chunks []sse.Chunk
}

func (c *collectingSink) Send(chunk sse.Chunk) bool {
	c.chunks = append(c.chunks, chunk)
	return true
}

// TestRunOnceReturnsToolCallResponse mirrors spec E2: a non-streaming
// request whose upstream emits one allowed tool call returns the OpenAI
// tool_calls response shape, ignoring any following text.
func TestRunOnceReturnsToolCallResponse(t *testing.T) {
	script := `printf '%s\n' '{"type":"tool_call","subtype":"completed","call_id":"c1","tool_call":{"readToolCall":{"args":{"path":"foo.txt"}}}}'`
	req := Request{
		Model:    "gpt-test",
		Messages: []promptbuilder.Message{{Role: "user", Content: "Read foo.txt"}},
		Tools: []promptbuilder.ToolDecl{{
			Type: "function",
		}},
	}
	req.Tools[0].Function.Name = "read"
	req.Tools[0].Function.Parameters = []byte(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := RunOnce(ctx, req, shUpstream(script), baseMeta(), nil)
	require.NoError(t, err)

	choices := resp["choices"].([]map[string]any)
	require.Equal(t, "tool_calls", choices[0]["finish_reason"])
	message := choices[0]["message"].(map[string]any)
	toolCalls := message["tool_calls"].([]map[string]any)
	require.Equal(t, "read", toolCalls[0]["function"].(map[string]any)["name"])
}

// TestRunStreamsAssistantTextDeltas mirrors spec E1's non-tool-call half:
// plain assistant text arrives as incremental SSE deltas.
func TestRunStreamsAssistantTextDeltas(t *testing.T) {
	script := `printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}'
printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"text","text":"hello world"}]}}'`
	req := Request{
		Model:    "gpt-test",
		Messages: []promptbuilder.Message{{Role: "user", Content: "hi"}},
	}

	sink := &collectingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, req, shUpstream(script), baseMeta(), nil, sink)
	require.NoError(t, err)
	require.NotEmpty(t, sink.chunks)

	var deltas []string
	for _, c := range sink.chunks {
		choices, ok := c["choices"].([]map[string]any)
		if !ok || len(choices) == 0 {
			continue
		}
		delta, ok := choices[0]["delta"].(map[string]any)
		if !ok {
			continue
		}
		if content, ok := delta["content"].(string); ok {
			deltas = append(deltas, content)
		}
	}
	require.Equal(t, []string{"hello", " world"}, deltas)

	last := sink.chunks[len(sink.chunks)-1]
	choices := last["choices"].([]map[string]any)
	require.Equal(t, "stop", choices[0]["finish_reason"])
}

// TestRunExecutesProxyExecToolCallLocally exercises toolLoopMode=proxy-exec
// (SPEC_FULL.md §4.9): the upstream emits a tool_call, the daemon runs it
// against the local tool registry instead of surfacing it to the caller,
// feeds the result back to the upstream's stdin as a tool_result line, and
// the upstream's own turn continues to completion.
func TestRunExecutesProxyExecToolCallLocally(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/target.txt", []byte("local tool output"), 0o644))

	script := `printf '%s\n' '{"type":"tool_call","subtype":"completed","call_id":"c1","tool_call":{"read_file":{"args":{"path":"target.txt"}}}}'
read line
printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"text","text":"ok"}]}}'
`
	opts := shUpstream(script)
	opts.ToolLoopMode = boundary.LoopProxyExec
	opts.ForwardToolCalls = true

	req := Request{
		Model:     "gpt-test",
		Messages:  []promptbuilder.Message{{Role: "user", Content: "read target.txt"}},
		Directory: dir,
	}

	sink := &collectingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, req, opts, baseMeta(), nil, sink)
	require.NoError(t, err)

	var sawFinalText bool
	for _, c := range sink.chunks {
		choices, ok := c["choices"].([]map[string]any)
		if !ok || len(choices) == 0 {
			continue
		}
		if delta, ok := choices[0]["delta"].(map[string]any); ok {
			if content, _ := delta["content"].(string); content == "ok" {
				sawFinalText = true
			}
		}
	}
	require.True(t, sawFinalText, "expected the upstream's post-tool-result text to stream through")
}
