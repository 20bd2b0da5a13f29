// Package intercept implements the Tool-Call Interceptor state machine
// (spec §4.3): extract, normalize, validate, reroute-or-terminate, and
// finally emit or forward.
package intercept

import (
	"encoding/json"
	"strings"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/loopguard"
	"github.com/dodoproxy/dodo-proxy/internal/schemacompat"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// FailureMode governs how a schema-invalid, non-reroutable call is handled.
type FailureMode string

const (
	FailurePassThrough FailureMode = "pass_through"
	FailureTerminate   FailureMode = "terminate"
)

// OutcomeKind is the interceptor's decision per spec §4.3 step 5.
type OutcomeKind string

const (
	OutcomeForward       OutcomeKind = "forward"
	OutcomeIntercepted   OutcomeKind = "intercepted"
	OutcomeTerminate     OutcomeKind = "terminate"
	OutcomeSkipConverter OutcomeKind = "skip_converter"
	OutcomeExecuteLocal  OutcomeKind = "execute_local"
)

// Outcome is the result of running one tool_call event through the
// interceptor.
type Outcome struct {
	Kind       OutcomeKind
	Call       *toolcall.InterceptedToolCall
	Reason     string // "loop_guard" | "schema_validation"
	ErrorClass loopguard.ErrorClass
	Silent     bool
	Message    string
	HintChunk  map[string]any // non-fatal schema hint, for OutcomeSkipConverter
}

// Config is the per-request interceptor configuration.
type Config struct {
	ToolLoopMode         boundary.ToolLoopMode
	Allowed              map[string]bool
	SchemaMap            map[string]string
	ForwardToolCalls     bool
	EmitToolUpdates      bool
	AutoFallbackToLegacy bool
	FailureModeOverride  *FailureMode // nil => computed per spec §9's asymmetry rule
}

// Interceptor runs the state machine for one request.
type Interceptor struct {
	cfg   Config
	rc    *boundary.RuntimeContext
	guard *loopguard.Guard
	hooks boundary.Hooks
}

// New constructs an interceptor bound to one request's boundary runtime
// context and loop guard.
func New(cfg Config, rc *boundary.RuntimeContext, guard *loopguard.Guard, hooks boundary.Hooks) *Interceptor {
	if hooks == nil {
		hooks = boundary.NopHooks{}
	}
	return &Interceptor{cfg: cfg, rc: rc, guard: guard, hooks: hooks}
}

// Intercept runs one tool_call event through the full state machine.
func (ic *Interceptor) Intercept(event upstream.Event) (Outcome, error) {
	flags := ic.rc.ComputeToolLoopFlags(ic.cfg.ToolLoopMode, ic.cfg.ForwardToolCalls, ic.cfg.EmitToolUpdates)
	if flags.ShouldEmitToolUpdates {
		// Side channel only; never influences the intercept decision.
		ic.hooks.OnToolUpdate(event)
	}

	if flags.ProxyExecuteToolCalls {
		if event.Type != upstream.EventToolCall || event.ToolSubtype != upstream.ToolCallCompleted {
			return Outcome{Kind: OutcomeSkipConverter}, nil
		}
		call := &toolcall.InterceptedToolCall{ID: event.CallID, Name: localToolName(event.ToolName), Arguments: mustJSON(event.ToolArgs)}
		return Outcome{Kind: OutcomeExecuteLocal, Call: call}, nil
	}

	extracted, err := ic.rc.MaybeExtractToolCall(event, ic.cfg.Allowed, ic.cfg.ToolLoopMode)
	if err != nil {
		return Outcome{}, err
	}
	if extracted == nil {
		if flags.SuppressConverterToolEvents {
			return Outcome{Kind: OutcomeSkipConverter}, nil
		}
		return Outcome{Kind: OutcomeForward}, nil
	}

	normalized := schemacompat.Normalize(extracted.ToolName, extracted.Args)

	// Reroute is attempted unconditionally for edit calls, ahead of any
	// validation against edit's own (often undeclared) schema: a full-file
	// replace should become a write call whenever the caller has declared
	// one, independent of whether edit's own arguments would separately
	// validate (spec §4.3, E3).
	if reroute, ok := tryEditToWriteReroute(normalized.ToolName, normalized.Args, ic.cfg.SchemaMap); ok {
		call := toolcall.InterceptedToolCall{
			ID:        extracted.CallID,
			Name:      reroute.ToolName,
			Arguments: mustJSON(reroute.Args),
		}
		ic.hooks.OnInterceptedToolCall(call)
		return Outcome{Kind: OutcomeIntercepted, Call: &call}, nil
	}

	schemaJSON := ic.cfg.SchemaMap[normalized.ToolName]
	validation := schemacompat.Validate(normalized.ToolName, schemaJSON, normalized.Args)

	if validation.HasSchema && !validation.OK {
		sig := validationSignature(validation)
		decision := ic.guard.DecideSchemaValidation(normalized.ToolName, sig)
		if decision.Triggered {
			return Outcome{
				Kind:       OutcomeTerminate,
				Reason:     "loop_guard",
				ErrorClass: loopguard.ClassValidation,
				Message:    decision.Message,
			}, nil
		}

		mode := ic.failureMode(normalized.ToolName)
		if normalized.ToolName == "edit" && mode == FailurePassThrough && isBareMissingEditFields(validation) {
			return Outcome{
				Kind:      OutcomeSkipConverter,
				HintChunk: hintChunk(validation),
			}, nil
		}
		if mode == FailureTerminate {
			return Outcome{Kind: OutcomeTerminate, Reason: "schema_validation", ErrorClass: loopguard.ClassValidation}, nil
		}

		// Forward the malformed call to the caller as-is.
		call := toolcall.InterceptedToolCall{ID: extracted.CallID, Name: normalized.ToolName, Arguments: mustJSON(normalized.Args)}
		ic.hooks.OnInterceptedToolCall(call)
		return Outcome{Kind: OutcomeIntercepted, Call: &call}, nil
	}

	// Loop-guard branch on the (schema-valid, or schema-less) normalized call.
	class := ic.guard.ResolveClass(normalized.ToolName, extracted.CallID)
	var decision loopguard.Decision
	if class == loopguard.ClassSuccess {
		decision = ic.guard.DecideSuccess(normalized.ToolName, normalized.Args)
	} else {
		decision = ic.guard.DecideFailure(normalized.ToolName, normalized.Args, class)
	}
	if decision.Triggered {
		return Outcome{
			Kind:       OutcomeTerminate,
			Reason:     "loop_guard",
			ErrorClass: decision.ErrorClass,
			Silent:     decision.Silent,
			Message:    decision.Message,
		}, nil
	}

	call := toolcall.InterceptedToolCall{ID: extracted.CallID, Name: normalized.ToolName, Arguments: mustJSON(normalized.Args)}
	ic.hooks.OnInterceptedToolCall(call)
	return Outcome{Kind: OutcomeIntercepted, Call: &call}, nil
}

// failureMode implements spec §9's asymmetry: when auto-fallback to legacy
// is enabled, non-edit tools terminate on schema-invalid calls (so the
// fallback path gets a fresh attempt under legacy rules); edit stays
// pass-through so the edit-to-write reroute has a chance to apply first.
func (ic *Interceptor) failureMode(toolName string) FailureMode {
	if ic.cfg.FailureModeOverride != nil {
		return *ic.cfg.FailureModeOverride
	}
	if ic.cfg.AutoFallbackToLegacy && toolName != "edit" {
		return FailureTerminate
	}
	return FailurePassThrough
}

func validationSignature(v schemacompat.ValidationResult) string {
	b, _ := json.Marshal(struct {
		Missing []string `json:"missing"`
		Types   []string `json:"types"`
	}{v.Missing, v.TypeErrors})
	return string(b)
}

func isBareMissingEditFields(v schemacompat.ValidationResult) bool {
	if len(v.TypeErrors) > 0 {
		return false
	}
	allowed := map[string]bool{"old_string": true, "new_string": true, "path": true}
	for _, m := range v.Missing {
		if !allowed[m] {
			return false
		}
	}
	return len(v.Missing) > 0
}

func hintChunk(v schemacompat.ValidationResult) map[string]any {
	return map[string]any{
		"type":    "schema_hint",
		"message": v.RepairHint,
	}
}

// localToolNameAliases maps a stripped, lowercased upstream tool-name token
// to the key it's registered under in internal/localtools, mirroring the
// short names the upstream dialect favors (e.g. "read", "edit") onto the
// teacher's own longer engine.Tool registration names.
var localToolNameAliases = map[string]string{
	"read":          "read_file",
	"readfile":      "read_file",
	"list":          "list_files",
	"listfiles":     "list_files",
	"write":         "write_file",
	"writefile":     "write_file",
	"delete":        "delete_file",
	"deletefile":    "delete_file",
	"edit":          "search_replace",
	"searchreplace": "search_replace",
	"grep":          "grep",
	"search":        "grep",
	"run":           "run_cmd",
	"runcmd":        "run_cmd",
	"bash":          "run_cmd",
	"cmd":           "run_cmd",
	"command":       "run_cmd",
}

// localToolName strips a trailing "ToolCall" token the way boundary.go's
// stripToolCallSuffix does, then resolves the short upstream token to its
// internal/localtools registry key.
func localToolName(name string) string {
	lower := strings.ToLower(name)
	const suffix = "toolcall"
	if strings.HasSuffix(lower, suffix) {
		lower = lower[:len(lower)-len(suffix)]
	}
	if alias, ok := localToolNameAliases[lower]; ok {
		return alias
	}
	return lower
}

func mustJSON(args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
