package loopguard

import (
	"fmt"

	"github.com/dodoproxy/dodo-proxy/internal/schemacompat"
)

// Decision mirrors spec §3's ToolLoopDecision.
type Decision struct {
	Fingerprint string
	RepeatCount int
	MaxRepeat   int
	ErrorClass  ErrorClass
	Triggered   bool
	Tracked     bool
	// Silent and Message are set only when Triggered is true.
	Silent  bool
	Message string
}

// HistoryToolCall is one assistant tool_calls[] entry from the request body.
type HistoryToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// HistoryMessage is the subset of an OpenAI chat message the guard needs to
// seed itself from prior turns.
type HistoryMessage struct {
	Role       string
	Content    string
	ToolCalls  []HistoryToolCall
	ToolCallID string
}

// Guard is per-request state derived from the request's prior assistant/tool
// messages (spec §3's ToolLoopGuard).
//
// Two independent counter pairs exist, per spec §4.6:
//   - strict/coarse-FAILURE, keyed by name|argShape|class, covering every
//     non-success outcome class classified from history or resolved live —
//     including a class of "validation" derived from a prior tool reply's
//     phrasing (spec §4.6's "repeated failing calls" guard, exercised by
//     E4, which never declares a JSON Schema for "edit").
//   - strict/coarse-VALIDATION, keyed by name|validationSignature (the
//     current request's own schema-validation errors), used only by the
//     interceptor's live schema-validation branch (spec §4.3 step 3) and
//     never seeded from history text.
type Guard struct {
	MaxRepeat int

	strictFailure    map[string]int
	coarseFailure    map[string]int
	strictValidation map[string]int
	coarseValidation map[string]int
	successCount     map[string]int
	coarseSuccess    map[string]int

	callIDClass   map[string]ErrorClass
	perToolLatest map[string]ErrorClass
}

// New constructs an empty guard with the given repeat threshold.
func New(maxRepeat int) *Guard {
	return &Guard{
		MaxRepeat:        maxRepeat,
		strictFailure:    map[string]int{},
		coarseFailure:    map[string]int{},
		strictValidation: map[string]int{},
		coarseValidation: map[string]int{},
		successCount:     map[string]int{},
		coarseSuccess:    map[string]int{},
		callIDClass:      map[string]ErrorClass{},
		perToolLatest:    map[string]ErrorClass{},
	}
}

// SeedFromHistory pre-populates counters by walking prior assistant messages
// with tool_calls, matching each to the role=tool reply with the same
// tool_call_id, exactly as spec §4.6 describes.
func (g *Guard) SeedFromHistory(messages []HistoryMessage) {
	resultByCallID := make(map[string]string)
	for _, m := range messages {
		if m.Role == "tool" && m.ToolCallID != "" {
			resultByCallID[m.ToolCallID] = m.Content
		}
	}

	for _, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		for _, call := range m.ToolCalls {
			content, hasResult := resultByCallID[call.ID]
			class := ClassUnknown
			if hasResult {
				class = ClassifyResult(content)
			}
			class = PromoteUnknown(call.Name, class)

			g.callIDClass[call.ID] = class
			g.perToolLatest[call.Name] = class

			g.recordOutcome(call.Name, call.Arguments, class)
		}
	}
}

// recordOutcome increments the failure/success counters for one historical
// or live call, mirroring the live Decide path so seeding and live
// evaluation share one accounting rule. The schema-validation counters are
// untouched here; they are populated only by DecideSchemaValidation.
func (g *Guard) recordOutcome(toolName string, args map[string]any, class ErrorClass) {
	if class == ClassSuccess {
		sig := toolName + "|" + schemacompat.ValueSignature(args)
		g.successCount[sig]++
		if qualifiesForCoarseSuccess(toolName, args) {
			pathHash := toolName + "|" + pathOf(args)
			g.coarseSuccess[pathHash]++
		}
		return
	}
	strictFp, coarseFp := failureFingerprints(toolName, args, class)
	g.strictFailure[strictFp]++
	g.coarseFailure[coarseFp]++
}

func failureFingerprints(toolName string, args map[string]any, class ErrorClass) (strict, coarse string) {
	shape := schemacompat.ArgShape(args)
	strict = fmt.Sprintf("%s|%s|%s", toolName, shape, class)
	coarse = fmt.Sprintf("%s|%s", toolName, class)
	return
}

func qualifiesForCoarseSuccess(toolName string, args map[string]any) bool {
	if toolName != "edit" && toolName != "write" {
		return false
	}
	if old, ok := args["old_string"]; ok {
		if s, ok := old.(string); ok && s != "" {
			return false
		}
	}
	_, hasPath := args["path"]
	return hasPath
}

func pathOf(args map[string]any) string {
	if p, ok := args["path"].(string); ok {
		return p
	}
	return ""
}

// ResolveClass resolves the error class for a new call using (a) call-id
// match, (b) per-tool-name latest, (c) global latest (unknown, since the
// guard does not track a single global value), (d) unknown — with the
// read-only-tool unknown-to-success promotion applied last.
func (g *Guard) ResolveClass(toolName, callID string) ErrorClass {
	if callID != "" {
		if class, ok := g.callIDClass[callID]; ok {
			return PromoteUnknown(toolName, class)
		}
	}
	if class, ok := g.perToolLatest[toolName]; ok {
		return PromoteUnknown(toolName, class)
	}
	return PromoteUnknown(toolName, ClassUnknown)
}

// DecideFailure evaluates the generic failure loop guard (spec §4.6's
// "repeated failing calls", including a resolved class of "validation" from
// history phrasing) for a new call, incrementing counters and returning the
// trigger decision. Triggered iff strict-count > maxRepeat or
// coarse-count > maxRepeat; when both could report, the coarse fingerprint
// is preferred only if it triggered and the strict one did not.
func (g *Guard) DecideFailure(toolName string, args map[string]any, class ErrorClass) Decision {
	strictFp, coarseFp := failureFingerprints(toolName, args, class)

	g.strictFailure[strictFp]++
	g.coarseFailure[coarseFp]++

	strictCount := g.strictFailure[strictFp]
	coarseCount := g.coarseFailure[coarseFp]

	strictTriggered := strictCount > g.MaxRepeat
	coarseTriggered := coarseCount > g.MaxRepeat

	switch {
	case strictTriggered:
		return Decision{
			Fingerprint: strictFp, RepeatCount: strictCount, MaxRepeat: g.MaxRepeat,
			ErrorClass: class, Triggered: true, Tracked: true,
			Message: diagnosticFailure(toolName, class),
		}
	case coarseTriggered:
		return Decision{
			Fingerprint: coarseFp, RepeatCount: coarseCount, MaxRepeat: g.MaxRepeat,
			ErrorClass: class, Triggered: true, Tracked: true,
			Message: diagnosticFailure(toolName, class),
		}
	default:
		return Decision{Fingerprint: strictFp, RepeatCount: strictCount, MaxRepeat: g.MaxRepeat, ErrorClass: class, Tracked: true}
	}
}

// DecideSchemaValidation evaluates the live schema-validation loop guard
// (spec §4.3 step 3 / §4.6 "repeated schema-invalid calls") keyed by a
// signature derived from the current call's own {missing ∪ typeErrors}.
// Never seeded from history.
func (g *Guard) DecideSchemaValidation(toolName, validationSignature string) Decision {
	strictFp := toolName + "|strict|" + validationSignature
	coarseFp := toolName + "|coarse-validation"

	g.strictValidation[strictFp]++
	g.coarseValidation[coarseFp]++

	strictCount := g.strictValidation[strictFp]
	coarseCount := g.coarseValidation[coarseFp]

	strictTriggered := strictCount > g.MaxRepeat
	coarseTriggered := coarseCount > g.MaxRepeat

	switch {
	case strictTriggered:
		return Decision{
			Fingerprint: strictFp, RepeatCount: strictCount, MaxRepeat: g.MaxRepeat,
			ErrorClass: ClassValidation, Triggered: true, Tracked: true,
			Message: diagnosticValidation(toolName),
		}
	case coarseTriggered:
		return Decision{
			Fingerprint: coarseFp, RepeatCount: coarseCount, MaxRepeat: g.MaxRepeat,
			ErrorClass: ClassValidation, Triggered: true, Tracked: true,
			Message: diagnosticValidation(toolName),
		}
	default:
		return Decision{Fingerprint: strictFp, RepeatCount: strictCount, MaxRepeat: g.MaxRepeat, ErrorClass: ClassValidation, Tracked: true}
	}
}

// DecideSuccess evaluates the success loop guard: identical value signature,
// or — for edit/write performing a full-file replace — the same path hit
// repeatedly. A trigger here is always silent (spec §4.6).
func (g *Guard) DecideSuccess(toolName string, args map[string]any) Decision {
	sig := toolName + "|" + schemacompat.ValueSignature(args)
	g.successCount[sig]++
	count := g.successCount[sig]
	fp := sig

	if count <= g.MaxRepeat && qualifiesForCoarseSuccess(toolName, args) {
		pathHash := toolName + "|" + pathOf(args)
		g.coarseSuccess[pathHash]++
		if g.coarseSuccess[pathHash] > g.MaxRepeat {
			return Decision{
				Fingerprint: pathHash,
				RepeatCount: g.coarseSuccess[pathHash],
				MaxRepeat:   g.MaxRepeat,
				ErrorClass:  ClassSuccess,
				Triggered:   true,
				Tracked:     true,
				Silent:      true,
			}
		}
	}

	if count > g.MaxRepeat {
		return Decision{
			Fingerprint: fp,
			RepeatCount: count,
			MaxRepeat:   g.MaxRepeat,
			ErrorClass:  ClassSuccess,
			Triggered:   true,
			Tracked:     true,
			Silent:      true,
		}
	}
	return Decision{Fingerprint: fp, RepeatCount: count, MaxRepeat: g.MaxRepeat, ErrorClass: ClassSuccess, Tracked: true}
}

// ResetFingerprint clears a single coarse counter, used by the provider
// boundary's auto-fallback path to give the legacy boundary a fresh attempt
// budget on switch (spec §4.6 "Reset").
func (g *Guard) ResetFingerprint(fingerprint string) {
	delete(g.coarseFailure, fingerprint)
	delete(g.coarseValidation, fingerprint)
}

func diagnosticFailure(toolName string, class ErrorClass) string {
	label := string(class)
	if class == ClassValidation {
		label = "schema-invalid"
	}
	return fmt.Sprintf("Tool loop guard stopped repeated %s calls to %q.", label, toolName)
}

func diagnosticValidation(toolName string) string {
	return fmt.Sprintf("Tool loop guard stopped repeated schema-invalid calls to %q.", toolName)
}
