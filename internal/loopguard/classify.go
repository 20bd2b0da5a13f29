// Package loopguard detects pathological repeated tool-call patterns across
// a single request's conversation — repeated failing calls, repeated
// schema-invalid calls, and repeated equivalent "successful" calls — and
// terminates the turn with a diagnostic (or silently, for success loops).
package loopguard

import "strings"

// ErrorClass is the coarse outcome bucket a prior tool result is classified
// into, used both for seeding counters from history and for resolving the
// class of a new call's most recent same-name result.
type ErrorClass string

const (
	ClassValidation ErrorClass = "validation"
	ClassNotFound   ErrorClass = "not_found"
	ClassPermission ErrorClass = "permission"
	ClassTimeout    ErrorClass = "timeout"
	ClassToolError  ErrorClass = "tool_error"
	ClassSuccess    ErrorClass = "success"
	ClassUnknown    ErrorClass = "unknown"
)

// phraseRule is one entry of the fixture-derived phrase list. Order matters:
// the first matching rule wins. Preserved verbatim per spec §9's open
// question, exposed as a package var so a caller may override it.
type phraseRule struct {
	phrase string
	class  ErrorClass
}

var PhraseRules = []phraseRule{
	{"missing required", ClassValidation},
	{"invalid arguments", ClassValidation},
	{"schema validation", ClassValidation},
	{"enoent", ClassNotFound},
	{"no such file", ClassNotFound},
	{"not found", ClassNotFound},
	{"eacces", ClassPermission},
	{"permission denied", ClassPermission},
	{"timed out", ClassTimeout},
	{"timeout", ClassTimeout},
	{"\"success\":true", ClassSuccess},
	{"successfully", ClassSuccess},
}

// readOnlyTools is the set of tool names for which an "unknown" result
// classification is promoted to "success" (per spec §4.6): these tools have
// no meaningful failure mode worth guarding beyond generic tool_error.
var readOnlyTools = map[string]bool{
	"bash": true, "read": true, "grep": true, "ls": true,
	"glob": true, "stat": true, "webfetch": true,
}

// ClassifyResult classifies a tool result's content (or error) string into
// one of the fixed buckets by case-insensitive substring match.
func ClassifyResult(content string) ErrorClass {
	lower := strings.ToLower(content)
	for _, rule := range PhraseRules {
		if strings.Contains(lower, rule.phrase) {
			return rule.class
		}
	}
	return ClassUnknown
}

// PromoteUnknown applies the read-only-tool promotion rule.
func PromoteUnknown(toolName string, class ErrorClass) ErrorClass {
	if class == ClassUnknown && readOnlyTools[toolName] {
		return ClassSuccess
	}
	return class
}
