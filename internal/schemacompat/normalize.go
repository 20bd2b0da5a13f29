package schemacompat

import (
	"encoding/json"
	"sort"
)

// NormalizedCall is the output of Normalize: the canonicalized argument map,
// alongside any alias collisions, ready for schema validation.
type NormalizedCall struct {
	ToolName   string
	Args       map[string]any
	Collisions []string
}

// Normalize applies alias normalization followed by tool-specific coercion.
// It is idempotent: Normalize(Normalize(x)) == Normalize(x), since alias
// rewriting only ever moves a value into its already-canonical slot and the
// tool-specific passes only fill in fields that are still absent.
func Normalize(toolName string, args map[string]any) NormalizedCall {
	aliased := normalizeAliases(args)
	applyToolSpecific(toolName, aliased.Args)
	return NormalizedCall{
		ToolName:   toolName,
		Args:       aliased.Args,
		Collisions: aliased.Collisions,
	}
}

// ArgShape produces the recursive, key-sorted JSON skeleton (scalar values
// replaced by their type name) used by the loop guard's strict fingerprint.
func ArgShape(v any) string {
	b, _ := json.Marshal(shapeOf(v))
	return string(b)
}

func shapeOf(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = shapeOf(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = shapeOf(item)
		}
		return out
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "null"
	case float64, json.Number:
		return "number"
	default:
		return "unknown"
	}
}

// ValueSignature produces a canonical, deterministic string of the full
// argument value (not just its shape) used by the loop guard's success
// counters to detect identical repeated successful calls.
func ValueSignature(v any) string {
	b, _ := json.Marshal(canonicalize(v))
	return string(b)
}

func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		// encoding/json already sorts map[string]any keys on Marshal, but we
		// rebuild recursively so nested maps are canonicalized too.
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = canonicalize(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return t
	}
}
