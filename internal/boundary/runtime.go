package boundary

import (
	"errors"

	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// Hooks groups the four request-scoped callbacks the pipeline supplies,
// modeled as an interface rather than four separately-threaded closures
// since all four calls occur in the same scope (spec §9 re-architecture
// cue). NopHooks is the zero-cost default.
type Hooks interface {
	OnToolUpdate(event upstream.Event)
	OnToolResult(call toolcall.InterceptedToolCall, result string)
	OnInterceptedToolCall(call toolcall.InterceptedToolCall)
	OnFallbackToLegacy(reason error)
}

// NopHooks implements Hooks with no-op bodies.
type NopHooks struct{}

func (NopHooks) OnToolUpdate(upstream.Event)                        {}
func (NopHooks) OnToolResult(toolcall.InterceptedToolCall, string)   {}
func (NopHooks) OnInterceptedToolCall(toolcall.InterceptedToolCall)  {}
func (NopHooks) OnFallbackToLegacy(error)                            {}

// RuntimeContext is the short-lived per-request wrapper around a Boundary
// that can swap itself to legacy on first failure, memoized for the rest of
// the request (spec §3's BoundaryRuntimeContext).
type RuntimeContext struct {
	active        Boundary
	fellBack      bool
	autoFallback  bool
	hooks         Hooks
}

// NewRuntimeContext wraps the process-wide boundary for one request.
func NewRuntimeContext(initial Boundary, autoFallback bool, hooks Hooks) *RuntimeContext {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &RuntimeContext{active: initial, autoFallback: autoFallback, hooks: hooks}
}

// Mode reports the boundary currently in effect.
func (c *RuntimeContext) Mode() Mode { return c.active.Mode() }

// MaybeExtractToolCall runs extraction on the active boundary; on a
// ToolBoundaryExtractionError it swaps to legacy (once) and retries the same
// operation there. Non-boundary errors propagate unchanged.
func (c *RuntimeContext) MaybeExtractToolCall(event upstream.Event, allowed map[string]bool, loopMode ToolLoopMode) (*toolcall.ExtractedCall, error) {
	call, err := c.active.MaybeExtractToolCall(event, allowed, loopMode)
	if err == nil {
		return call, nil
	}
	if !c.tryFallback(err) {
		return nil, err
	}
	return c.active.MaybeExtractToolCall(event, allowed, loopMode)
}

// ResolveChatParamTools mirrors the same fallback-on-raise contract.
func (c *RuntimeContext) ResolveChatParamTools(loopMode ToolLoopMode, existingPresent, refreshedPresent bool) (ToolParamAction, error) {
	action, err := c.active.ResolveChatParamTools(loopMode, existingPresent, refreshedPresent)
	if err == nil {
		return action, nil
	}
	if !c.tryFallback(err) {
		return "", err
	}
	return c.active.ResolveChatParamTools(loopMode, existingPresent, refreshedPresent)
}

// tryFallback swaps to legacy exactly once per request, for boundary
// extraction errors only, and reports it via hooks. Returns whether a retry
// on the (now legacy) boundary is warranted.
func (c *RuntimeContext) tryFallback(err error) bool {
	var boundaryErr *ToolBoundaryExtractionError
	if !errors.As(err, &boundaryErr) {
		return false
	}
	if !c.autoFallback || c.fellBack || c.active.Mode() == ModeLegacy {
		return false
	}
	c.fellBack = true
	c.active = Legacy
	c.hooks.OnFallbackToLegacy(err)
	return true
}

// Delegating passthroughs for the boundary methods that never raise.
func (c *RuntimeContext) ComputeToolLoopFlags(loopMode ToolLoopMode, forward, emit bool) ToolLoopFlags {
	return c.active.ComputeToolLoopFlags(loopMode, forward, emit)
}

func (c *RuntimeContext) MatchesProvider(input map[string]any) bool {
	return c.active.MatchesProvider(input)
}

func (c *RuntimeContext) NormalizeRuntimeModel(model string) string {
	return c.active.NormalizeRuntimeModel(model)
}

func (c *RuntimeContext) ApplyChatParamDefaults(output map[string]any, proxyBase, fallbackBase, defaultAPIKey string) {
	c.active.ApplyChatParamDefaults(output, proxyBase, fallbackBase, defaultAPIKey)
}

func (c *RuntimeContext) CreateNonStreamToolCallResponse(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) map[string]any {
	return c.active.CreateNonStreamToolCallResponse(meta, call)
}

func (c *RuntimeContext) CreateStreamToolCallChunks(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) []map[string]any {
	return c.active.CreateStreamToolCallChunks(meta, call)
}
