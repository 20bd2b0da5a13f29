package boundary

import (
	"errors"

	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// v1 is the current extraction policy: it enforces the "singleton map"
// assumption of spec §3's UpstreamEvent strictly, raising a
// ToolBoundaryExtractionError (which the runtime context catches and falls
// back to legacy for) when an upstream event's tool_call carries more than
// one key.
type v1 struct{}

// V1 is the process-wide v1 boundary instance.
var V1 Boundary = v1{}

func (v1) Mode() Mode { return ModeV1 }

func (v1) ResolveChatParamTools(loopMode ToolLoopMode, existingPresent, refreshedPresent bool) (ToolParamAction, error) {
	return resolveChatParamTools(loopMode, existingPresent, refreshedPresent), nil
}

func (v1) ComputeToolLoopFlags(loopMode ToolLoopMode, forward, emit bool) ToolLoopFlags {
	return computeToolLoopFlags(loopMode, forward, emit)
}

func (v1) MatchesProvider(input map[string]any) bool { return matchesProvider(input) }

func (v1) NormalizeRuntimeModel(model string) string { return normalizeRuntimeModel(model) }

func (v1) ApplyChatParamDefaults(output map[string]any, proxyBase, fallbackBase, defaultAPIKey string) {
	applyChatParamDefaults(output, proxyBase, fallbackBase, defaultAPIKey)
}

func (v1) MaybeExtractToolCall(event upstream.Event, allowed map[string]bool, loopMode ToolLoopMode) (*toolcall.ExtractedCall, error) {
	if loopMode != LoopOpenCode || event.Type != upstream.EventToolCall {
		return nil, nil
	}
	if event.ToolCallKeys > 1 {
		return nil, &ToolBoundaryExtractionError{Op: "MaybeExtractToolCall", Err: errors.New("tool_call payload is not a singleton map")}
	}
	if event.ToolName == "" {
		return nil, nil
	}
	canonical, ok := isAllowed(event.ToolName, allowed)
	if !ok {
		return nil, nil
	}
	return &toolcall.ExtractedCall{
		CallID:   event.CallID,
		ToolName: canonical,
		Args:     event.ToolArgs,
	}, nil
}

func (v1) CreateNonStreamToolCallResponse(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) map[string]any {
	return nonStreamResponse(meta, call)
}

func (v1) CreateStreamToolCallChunks(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) []map[string]any {
	return streamChunks(meta, call)
}
