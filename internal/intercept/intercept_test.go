package intercept

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/loopguard"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

func newCtx() *boundary.RuntimeContext {
	return boundary.NewRuntimeContext(boundary.Legacy, false, nil)
}

func toolCallEvent(callID, toolName string, args map[string]any) upstream.Event {
	return upstream.Event{
		Type:         upstream.EventToolCall,
		ToolSubtype:  upstream.ToolCallCompleted,
		CallID:       callID,
		ToolName:     toolName,
		ToolArgs:     args,
		ToolCallKeys: 1,
	}
}

// TestInterceptExtractsAndEmits mirrors spec E1: a plain, schema-valid tool
// call is intercepted and forwarded to the caller untouched, with no leaked
// assistant text.
func TestInterceptExtractsAndEmits(t *testing.T) {
	cfg := Config{
		ToolLoopMode: boundary.LoopOpenCode,
		Allowed:      map[string]bool{"read": true},
		SchemaMap:    map[string]string{},
	}
	ic := New(cfg, newCtx(), loopguard.New(2), nil)

	out, err := ic.Intercept(toolCallEvent("call-1", "readToolCall", map[string]any{"path": "a.txt"}))
	require.NoError(t, err)
	require.Equal(t, OutcomeIntercepted, out.Kind)
	require.NotNil(t, out.Call)
	require.Equal(t, "read", out.Call.Name)
	require.Equal(t, "call-1", out.Call.ID)
	require.JSONEq(t, `{"path":"a.txt"}`, out.Call.Arguments)
}

// TestInterceptReroutesEditToWrite mirrors spec E3: an edit call with no
// old_string, non-empty content, and a declared write schema becomes a
// write call, even though no edit schema is declared at all.
func TestInterceptReroutesEditToWrite(t *testing.T) {
	cfg := Config{
		ToolLoopMode: boundary.LoopOpenCode,
		Allowed:      map[string]bool{"edit": true, "write": true},
		SchemaMap: map[string]string{
			"write": `{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`,
		},
	}
	ic := New(cfg, newCtx(), loopguard.New(2), nil)

	out, err := ic.Intercept(toolCallEvent("call-2", "editToolCall", map[string]any{
		"path":    "TODO.md",
		"content": "hello",
	}))
	require.NoError(t, err)
	require.Equal(t, OutcomeIntercepted, out.Kind)
	require.Equal(t, "write", out.Call.Name)
	require.JSONEq(t, `{"path":"TODO.md","content":"hello"}`, out.Call.Arguments)
}

// TestInterceptStreamContentCoercionNoReroute mirrors spec E5: an edit call
// whose streamContent must be coerced to a string stays an edit call (no
// write schema declared), and old_string ends up empty only after
// normalization — which must not, by itself, trigger a reroute.
func TestInterceptStreamContentCoercionNoReroute(t *testing.T) {
	cfg := Config{
		ToolLoopMode: boundary.LoopOpenCode,
		Allowed:      map[string]bool{"edit": true},
		SchemaMap:    map[string]string{},
	}
	ic := New(cfg, newCtx(), loopguard.New(2), nil)

	out, err := ic.Intercept(toolCallEvent("call-3", "editToolCall", map[string]any{
		"path":          "notes.md",
		"streamContent": []any{"line one", "line two"},
	}))
	require.NoError(t, err)
	require.Equal(t, OutcomeIntercepted, out.Kind)
	require.Equal(t, "edit", out.Call.Name)
	require.Contains(t, out.Call.Arguments, `"new_string"`)
}

// TestInterceptSchemaValidationLoopGuardTerminates is the live counterpart of
// spec E4 (which is history-seeded; see loopguard's seeded test): repeated
// schema-invalid "edit" calls against a declared edit schema (missing a
// required field, live, not seeded) terminate with E4's diagnostic once the
// live schema-validation guard's repeat budget is spent.
func TestInterceptSchemaValidationLoopGuardTerminates(t *testing.T) {
	cfg := Config{
		ToolLoopMode: boundary.LoopOpenCode,
		Allowed:      map[string]bool{"edit": true},
		SchemaMap: map[string]string{
			"edit": `{"type":"object","properties":{"path":{"type":"string"},"old_string":{"type":"string"},"new_string":{"type":"string"}},"required":["path","old_string","new_string"]}`,
		},
		FailureModeOverride: func() *FailureMode { m := FailurePassThrough; return &m }(),
	}
	g := loopguard.New(2)
	ic := New(cfg, newCtx(), g, nil)

	args := map[string]any{"path": "F.md", "old_string": "x"} // missing new_string

	var last Outcome
	for i := 0; i < 3; i++ {
		out, err := ic.Intercept(toolCallEvent("call-x", "editToolCall", args))
		require.NoError(t, err)
		last = out
	}
	require.Equal(t, OutcomeTerminate, last.Kind)
	require.Equal(t, "loop_guard", last.Reason)
	require.Equal(t, loopguard.ClassValidation, last.ErrorClass)
	require.Contains(t, last.Message, `Tool loop guard stopped repeated schema-invalid calls to "edit"`)
}

// TestInterceptPassThroughHintOnBareMissingEditFields checks the
// non-terminating schema-hint path: a single schema-invalid edit call, under
// pass-through mode, produces a skip-converter hint rather than forwarding
// or terminating.
func TestInterceptPassThroughHintOnBareMissingEditFields(t *testing.T) {
	cfg := Config{
		ToolLoopMode: boundary.LoopOpenCode,
		Allowed:      map[string]bool{"edit": true},
		SchemaMap: map[string]string{
			"edit": `{"type":"object","properties":{"path":{"type":"string"},"old_string":{"type":"string"},"new_string":{"type":"string"}},"required":["path","old_string","new_string"]}`,
		},
	}
	ic := New(cfg, newCtx(), loopguard.New(5), nil)

	out, err := ic.Intercept(toolCallEvent("call-y", "editToolCall", map[string]any{"path": "F.md", "old_string": "x"}))
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipConverter, out.Kind)
	require.NotNil(t, out.HintChunk)
}
