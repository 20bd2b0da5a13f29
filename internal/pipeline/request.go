// Package pipeline implements the Pipeline Orchestrator (spec §4.1): the
// composing module that wires the upstream spawn, the provider boundary,
// the tool-call interceptor, and the SSE converter together for one
// POST /v1/chat/completions request, mirroring the shape of the teacher's
// internal/engine.Run loop but driving an external process instead of an
// in-process LLM client.
package pipeline

import (
	"encoding/json"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/loopguard"
	"github.com/dodoproxy/dodo-proxy/internal/promptbuilder"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
)

// Request is the parsed, validated subset of an incoming chat-completions
// POST body the pipeline needs.
type Request struct {
	Model     string
	Messages  []promptbuilder.Message
	Tools     []promptbuilder.ToolDecl
	Stream    bool
	SessionID string
	Worktree  string
	Directory string
}

// Options is daemon-wide/per-request configuration threaded into one run,
// assembled by internal/daemonconfig plus whatever the request itself
// overrides.
type Options struct {
	UpstreamBin          string
	UpstreamArgs         []string
	ToolLoopMode         boundary.ToolLoopMode
	ToolLoopMaxRepeat    int
	ForwardToolCalls     bool
	EmitToolUpdates      bool
	AutoFallbackToLegacy bool
	InitialBoundary      boundary.Boundary
	ToolTimeoutMs        int
}

// buildGuard constructs and seeds a loop guard from the request's prior
// assistant/tool messages (spec §4.6's "Seeding").
func buildGuard(maxRepeat int, messages []promptbuilder.Message) *loopguard.Guard {
	g := loopguard.New(maxRepeat)
	hist := make([]loopguard.HistoryMessage, 0, len(messages))
	for _, m := range messages {
		hm := loopguard.HistoryMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			hm.ToolCalls = append(hm.ToolCalls, loopguard.HistoryToolCall{
				ID: tc.ID, Name: tc.Function.Name, Arguments: args,
			})
		}
		hist = append(hist, hm)
	}
	g.SeedFromHistory(hist)
	return g
}

// NewResponseMeta assembles the per-request response envelope.
func NewResponseMeta(id string, created int64, model string) toolcall.ResponseMeta {
	return toolcall.ResponseMeta{ID: id, Created: created, Model: model}
}
