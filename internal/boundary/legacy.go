package boundary

import (
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// legacy is the original, lenient extraction policy: a malformed event
// carrying more than one key in its singleton tool_call map is tolerated by
// using the one key upstream.ParseEvent kept, rather than raising. ParseEvent
// keeps the first key of Go map iteration, so which key wins is not defined.
type legacy struct{}

// Legacy is the process-wide legacy boundary instance.
var Legacy Boundary = legacy{}

func (legacy) Mode() Mode { return ModeLegacy }

func (legacy) ResolveChatParamTools(loopMode ToolLoopMode, existingPresent, refreshedPresent bool) (ToolParamAction, error) {
	return resolveChatParamTools(loopMode, existingPresent, refreshedPresent), nil
}

func (legacy) ComputeToolLoopFlags(loopMode ToolLoopMode, forward, emit bool) ToolLoopFlags {
	return computeToolLoopFlags(loopMode, forward, emit)
}

func (legacy) MatchesProvider(input map[string]any) bool { return matchesProvider(input) }

func (legacy) NormalizeRuntimeModel(model string) string { return normalizeRuntimeModel(model) }

func (legacy) ApplyChatParamDefaults(output map[string]any, proxyBase, fallbackBase, defaultAPIKey string) {
	applyChatParamDefaults(output, proxyBase, fallbackBase, defaultAPIKey)
}

func (legacy) MaybeExtractToolCall(event upstream.Event, allowed map[string]bool, loopMode ToolLoopMode) (*toolcall.ExtractedCall, error) {
	if loopMode != LoopOpenCode || event.Type != upstream.EventToolCall {
		return nil, nil
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

func (legacy) CreateNonStreamToolCallResponse(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) map[string]any {
	return nonStreamResponse(meta, call)
}

func (legacy) CreateStreamToolCallChunks(meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) []map[string]any {
	return streamChunks(meta, call)
}
