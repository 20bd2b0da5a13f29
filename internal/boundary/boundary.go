// Package boundary implements the Provider Boundary abstraction (spec §4.2):
// a small dispatch layer between the pipeline and any decision whose policy
// may be revised, today between "legacy" and "v1" tool-call extraction
// rules, with automatic per-request fallback when v1 raises.
package boundary

import (
	"fmt"
	"strings"

	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// Mode selects which boundary implementation is active.
type Mode string

const (
	ModeLegacy Mode = "legacy"
	ModeV1     Mode = "v1"
)

// ToolLoopMode is the daemon-wide tool-loop policy (spec GLOSSARY).
type ToolLoopMode string

const (
	LoopOpenCode ToolLoopMode = "opencode"
	LoopProxyExec ToolLoopMode = "proxy-exec"
	LoopOff      ToolLoopMode = "off"
)

// ToolParamAction is the outcome of ResolveChatParamTools.
type ToolParamAction string

const (
	ActionPreserve ToolParamAction = "preserve"
	ActionFallback ToolParamAction = "fallback"
	ActionOverride ToolParamAction = "override"
	ActionNone     ToolParamAction = "none"
)

// ToolLoopFlags is the output of ComputeToolLoopFlags.
type ToolLoopFlags struct {
	ProxyExecuteToolCalls       bool
	SuppressConverterToolEvents bool
	ShouldEmitToolUpdates       bool
}

// ToolBoundaryExtractionError wraps a failure inside a boundary method so
// the per-request runtime context can recognize it and fall back to legacy.
type ToolBoundaryExtractionError struct {
	Op  string
	Err error
}

func (e *ToolBoundaryExtractionError) Error() string {
	return fmt.Sprintf("boundary: %s: %v", e.Op, e.Err)
}

func (e *ToolBoundaryExtractionError) Unwrap() error { return e.Err }

// Boundary is the polymorphic behavior carrier described in spec §3.
type Boundary interface {
	Mode() Mode
	ResolveChatParamTools(loopMode ToolLoopMode, existingPresent, refreshedPresent bool) (ToolParamAction, error)
	ComputeToolLoopFlags(loopMode ToolLoopMode, forward, emit bool) ToolLoopFlags
	MatchesProvider(input map[string]any) bool
	NormalizeRuntimeModel(model string) string
	ApplyChatParamDefaults(output map[string]any, proxyBase, fallbackBase, defaultAPIKey string)
	MaybeExtractToolCall(event upstream.Event, allowed map[string]bool, loopMode ToolLoopMode) (*toolcall.ExtractedCall, error)
	CreateNonStreamToolCallResponse(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) map[string]any
	CreateStreamToolCallChunks(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) []map[string]any
}

// resolveChatParamTools is shared, mode-independent logic: spec §8 invariant
// 3 requires legacy and v1 to agree here for every input, so it is
// implemented once and called by both concrete boundaries.
func resolveChatParamTools(loopMode ToolLoopMode, existingPresent, refreshedPresent bool) ToolParamAction {
	switch loopMode {
	case LoopProxyExec:
		if refreshedPresent {
			return ActionOverride
		}
		return ActionNone
	case LoopOpenCode:
		if existingPresent {
			return ActionPreserve
		}
		if refreshedPresent {
			return ActionFallback
		}
		return ActionNone
	default: // LoopOff and any unrecognized mode
		return ActionNone
	}
}

func computeToolLoopFlags(loopMode ToolLoopMode, forward, emit bool) ToolLoopFlags {
	if loopMode != LoopProxyExec {
		return ToolLoopFlags{}
	}
	var flags ToolLoopFlags
	if forward {
		flags.ProxyExecuteToolCalls = true
	} else {
		flags.SuppressConverterToolEvents = true
	}
	if emit {
		flags.ShouldEmitToolUpdates = true
	}
	return flags
}

func matchesProvider(input map[string]any) bool {
	for _, key := range []string{"providerID", "providerId", "provider"} {
		if _, ok := input[key]; ok {
			return true
		}
	}
	return false
}

func normalizeRuntimeModel(model string) string {
	if model == "" {
		return "auto"
	}
	if idx := strings.Index(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}

func applyChatParamDefaults(output map[string]any, proxyBase, fallbackBase, defaultAPIKey string) {
	base := proxyBase
	if base == "" {
		base = fallbackBase
	}
	if base != "" {
		output["baseURL"] = base
	}
	if apiKey, _ := output["apiKey"].(string); apiKey == "" && defaultAPIKey != "" {
		output["apiKey"] = defaultAPIKey
	}
}

// stripToolCallSuffix removes a trailing "ToolCall" token, case-insensitive,
// from an upstream tool-name key (e.g. "readToolCall" -> "read").
func stripToolCallSuffix(name string) string {
	lower := strings.ToLower(name)
	const suffix = "toolcall"
	if strings.HasSuffix(lower, suffix) {
		return name[:len(name)-len(suffix)]
	}
	return name
}

func isAllowed(name string, allowed map[string]bool) (string, bool) {
	stripped := strings.ToLower(stripToolCallSuffix(name))
	for allowedName := range allowed {
		if strings.ToLower(allowedName) == stripped {
			return allowedName, true
		}
	}
	return "", false
}

func nonStreamResponse(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) map[string]any {
	return map[string]any{
		"id":      meta.ID,
		"object":  "chat.completion",
		"created": meta.Created,
		"model":   meta.Model,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": nil,
					"tool_calls": []map[string]any{
						{
							"id":   call.ID,
							"type": "function",
							"function": map[string]any{
								"name":      call.Name,
								"arguments": call.Arguments,
							},
						},
					},
				},
				"finish_reason": "tool_calls",
			},
		},
	}
}

func streamChunks(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) []map[string]any {
	base := map[string]any{
		"id":      meta.ID,
		"object":  "chat.completion.chunk",
		"created": meta.Created,
		"model":   meta.Model,
	}
	first := cloneMap(base)
	first["choices"] = []map[string]any{
		{
			"index": 0,
			"delta": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{
					{
						"index": 0,
						"id":    call.ID,
						"type":  "function",
						"function": map[string]any{
							"name":      call.Name,
							"arguments": call.Arguments,
						},
					},
				},
			},
			"finish_reason": nil,
		},
	}

	second := cloneMap(base)
	second["choices"] = []map[string]any{
		{
			"index":         0,
			"delta":         map[string]any{},
			"finish_reason": "tool_calls",
		},
	}

	return []map[string]any{first, second}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
