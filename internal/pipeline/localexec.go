package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/localtools"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// toolResultLine is the NDJSON line fed back to the upstream's stdin after
// a proxy-exec tool call runs locally, continuing the same turn instead of
// surfacing the call to the HTTP caller.
type toolResultLine struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// executeLocalAndContinue runs one proxy-exec tool call via the local tool
// registry and writes its result back to the upstream process as a new
// input line, letting the upstream's own turn continue.
func executeLocalAndContinue(ctx context.Context, proc *upstream.Process, registry localtools.Registry, call toolcall.InterceptedToolCall, hooks boundary.Hooks) error {
	result, err := localtools.Execute(ctx, call, registry)
	line := toolResultLine{Type: "tool_result", CallID: call.ID, Result: result}
	if err != nil {
		line.Error = err.Error()
	}
	hooks.OnToolResult(call, result)

	b, merr := json.Marshal(line)
	if merr != nil {
		return fmt.Errorf("pipeline: marshal tool result: %w", merr)
	}
	b = append(b, '\n')
	if _, werr := proc.In.Write(b); werr != nil {
		return fmt.Errorf("pipeline: write tool result to upstream: %w", werr)
	}
	return nil
}
