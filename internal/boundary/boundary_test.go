package boundary

import (
	"testing"

	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
	"github.com/stretchr/testify/require"
)

// TestBoundaryParity is spec §8 invariant 3: for every (mode, existing,
// refreshed), legacy and v1 resolveChatParamTools agree.
func TestBoundaryParity(t *testing.T) {
	modes := []ToolLoopMode{LoopOpenCode, LoopProxyExec, LoopOff}
	bools := []bool{true, false}
	for _, m := range modes {
		for _, existing := range bools {
			for _, refreshed := range bools {
				legacyAction, legacyErr := Legacy.ResolveChatParamTools(m, existing, refreshed)
				v1Action, v1Err := V1.ResolveChatParamTools(m, existing, refreshed)
				require.NoError(t, legacyErr)
				require.NoError(t, v1Err)
				require.Equal(t, legacyAction, v1Action)
			}
		}
	}
}

func TestComputeToolLoopFlagsProxyExec(t *testing.T) {
	flags := computeToolLoopFlags(LoopProxyExec, true, false)
	require.True(t, flags.ProxyExecuteToolCalls)
	require.False(t, flags.SuppressConverterToolEvents)

	flags = computeToolLoopFlags(LoopProxyExec, false, true)
	require.True(t, flags.SuppressConverterToolEvents)
	require.True(t, flags.ShouldEmitToolUpdates)

	flags = computeToolLoopFlags(LoopOpenCode, true, true)
	require.Equal(t, ToolLoopFlags{}, flags)
}

func TestNormalizeRuntimeModelStripsProviderPrefix(t *testing.T) {
	require.Equal(t, "gpt-4", normalizeRuntimeModel("openai/gpt-4"))
	require.Equal(t, "auto", normalizeRuntimeModel(""))
	require.Equal(t, "gpt-4", normalizeRuntimeModel("gpt-4"))
}

func TestV1FallsBackToLegacyOnMalformedEvent(t *testing.T) {
	var fellBack bool
	hooks := testHooks{onFallback: func(error) { fellBack = true }}
	ctx := NewRuntimeContext(V1, true, hooks)

	event := upstream.Event{Type: upstream.EventToolCall, ToolCallKeys: 2, ToolName: "readToolCall", ToolArgs: map[string]any{"path": "a"}}
	allowed := map[string]bool{"read": true}

	call, err := ctx.MaybeExtractToolCall(event, allowed, LoopOpenCode)
	require.NoError(t, err)
	require.True(t, fellBack)
	require.Equal(t, ModeLegacy, ctx.Mode())
	_ = call
}

type testHooks struct {
	onFallback func(error)
}

func (testHooks) OnToolUpdate(upstream.Event)                       {}
func (testHooks) OnToolResult(toolcall.InterceptedToolCall, string) {}
func (testHooks) OnInterceptedToolCall(toolcall.InterceptedToolCall) {}
func (h testHooks) OnFallbackToLegacy(err error)                    { h.onFallback(err) }
