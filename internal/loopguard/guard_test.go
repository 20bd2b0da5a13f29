package loopguard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyResultPhrases(t *testing.T) {
	require.Equal(t, ClassValidation, ClassifyResult("Invalid arguments: missing required field path"))
	require.Equal(t, ClassNotFound, ClassifyResult("open foo.txt: ENOENT"))
	require.Equal(t, ClassSuccess, ClassifyResult(`{"success":true}`))
	require.Equal(t, ClassUnknown, ClassifyResult("something else entirely"))
}

func TestPromoteUnknownForReadOnlyTools(t *testing.T) {
	require.Equal(t, ClassSuccess, PromoteUnknown("read", ClassUnknown))
	require.Equal(t, ClassUnknown, PromoteUnknown("edit", ClassUnknown))
}

// TestLoopGuardSeededValidationTriggersAtKPlusOne mirrors spec §8 invariant 6
// and E4: after seeding from k identical failing assistant tool_calls, the
// next identical call triggers iff k+1 > maxRepeat.
func TestLoopGuardSeededValidationTriggersAtKPlusOne(t *testing.T) {
	args := map[string]any{"path": "F.md", "content": "x"}
	history := []HistoryMessage{}
	for i := 0; i < 3; i++ {
		callID := "call-" + string(rune('a'+i))
		history = append(history,
			HistoryMessage{
				Role: "assistant",
				ToolCalls: []HistoryToolCall{{ID: callID, Name: "edit", Arguments: args}},
			},
			HistoryMessage{
				Role:       "tool",
				ToolCallID: callID,
				Content:    "Invalid arguments: missing required field path",
			},
		)
	}

	g := New(2)
	g.SeedFromHistory(history)

	class := g.ResolveClass("edit", "")
	require.Equal(t, ClassValidation, class)

	decision := g.DecideFailure("edit", args, class)
	require.True(t, decision.Triggered)
	require.Contains(t, decision.Message, `Tool loop guard stopped repeated schema-invalid calls to "edit"`)
}

func TestLoopGuardSuccessTriggerIsSilent(t *testing.T) {
	g := New(1)
	args := map[string]any{"path": "a.txt"}
	g.DecideSuccess("read", args)
	decision := g.DecideSuccess("read", args)
	require.True(t, decision.Triggered)
	require.True(t, decision.Silent)
	require.Empty(t, decision.Message)
}

func TestLoopGuardCoarseSuccessForFullFileEdit(t *testing.T) {
	g := New(1)
	// Different content each time (so the strict value-signature counter
	// never trips) but the same path, full-file replace (old_string empty).
	g.DecideSuccess("edit", map[string]any{"path": "F.md", "old_string": "", "new_string": "v1"})
	decision := g.DecideSuccess("edit", map[string]any{"path": "F.md", "old_string": "", "new_string": "v2"})
	require.True(t, decision.Triggered)
	require.True(t, decision.Silent)
}

func TestResetFingerprintClearsCoarseCounter(t *testing.T) {
	g := New(1)
	args := map[string]any{"path": "F.md"}
	d := g.DecideFailure("bash", args, ClassToolError)
	_, coarseFp := failureFingerprints("bash", args, ClassToolError)
	require.False(t, d.Triggered)
	g.ResetFingerprint(coarseFp)
	require.Equal(t, 0, g.coarseFailure[coarseFp])
}
