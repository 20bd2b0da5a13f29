// Package schemacompat normalizes tool-call argument shapes emitted by the
// upstream agent, validates them against caller-declared JSON Schemas, and
// produces a bounded structural repair hint when validation fails.
package schemacompat

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// canonicalAliases maps a lowercased, alphanumeric-only alias key to its
// canonical argument name. Kept verbatim from the fixture-derived list so
// loop-guard and repair behavior reproduces across implementations.
var canonicalAliases = map[string]string{
	"filepath":        "path",
	"filename":        "path",
	"file":            "path",
	"targetpath":      "path",
	"globpattern":     "pattern",
	"filepattern":     "pattern",
	"searchpattern":   "pattern",
	"cmd":             "command",
	"script":          "command",
	"shellcommand":    "command",
	"workingdirectory": "cwd",
	"workdir":         "cwd",
	"contents":        "content",
	"text":            "content",
	"streamcontent":   "content",
	"recursive":       "force",
	"oldstring":       "old_string",
	"newstring":       "new_string",
}

// normalizeKey lowercases and strips everything but letters/digits, matching
// the lookup key used against canonicalAliases.
func normalizeKey(key string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(key), "")
}

// AliasResult is the outcome of alias normalization: the rewritten arg map
// plus any alias/canonical collisions encountered.
type AliasResult struct {
	Args       map[string]any
	Collisions []string
}

// normalizeAliases rewrites alias keys to their canonical form. When both an
// alias and its canonical key are present with different values, the
// canonical value wins and the alias name is recorded as a collision.
func normalizeAliases(args map[string]any) AliasResult {
	out := make(map[string]any, len(args))
	var collisions []string

	// First pass: copy everything that is already canonical or has no
	// known alias mapping.
	aliasKeys := make(map[string]string) // original alias key -> canonical
	for k, v := range args {
		canon, isAlias := canonicalAliases[normalizeKey(k)]
		if !isAlias || canon == k {
			out[k] = v
			continue
		}
		aliasKeys[k] = canon
	}

	for aliasKey, canon := range aliasKeys {
		aliasVal := args[aliasKey]
		if canonVal, exists := out[canon]; exists {
			if !equalValue(canonVal, aliasVal) {
				collisions = append(collisions, aliasKey)
			}
			continue
		}
		out[canon] = aliasVal
	}

	return AliasResult{Args: out, Collisions: collisions}
}

func equalValue(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	return a == b
}
