// Package errorsx classifies upstream agent spawn/exit failures into the
// user-facing taxonomy of spec §7, generalized from the teacher's
// internal/engine/errors.go LLM-error classification (same phrase-matching
// approach, re-themed from "LLM API error" to "upstream agent error").
package errorsx

import "strings"

// Category is the user-facing error bucket (spec §7).
type Category string

const (
	CategoryQuota   Category = "quota"
	CategoryAuth    Category = "auth"
	CategoryNetwork Category = "network"
	CategoryModel   Category = "model"
	CategoryUnknown Category = "unknown"
)

// Classified is the parsed, user-presentable form of an upstream failure.
type Classified struct {
	Category    Category
	UserMessage string
	Suggestion  string
	Recoverable bool
}

type phraseRule struct {
	phrase   string
	category Category
}

// phraseRules is checked in order; the first match wins. Phrases are
// lower-cased substrings matched against the combined stderr/exit text.
var phraseRules = []phraseRule{
	{"usage limit", CategoryQuota},
	{"quota exceeded", CategoryQuota},
	{"rate limit", CategoryQuota},
	{"not logged in", CategoryAuth},
	{"unauthorized", CategoryAuth},
	{"invalid api key", CategoryAuth},
	{"authentication", CategoryAuth},
	{"econnrefused", CategoryNetwork},
	{"connection refused", CategoryNetwork},
	{"no such host", CategoryNetwork},
	{"network", CategoryNetwork},
	{"model not found", CategoryModel},
	{"unknown model", CategoryModel},
	{"unsupported model", CategoryModel},
}

// Classify parses combined stderr/output text from a failed (or zero-output)
// upstream invocation into the spec §7 taxonomy.
func Classify(binName, text string) Classified {
	lower := strings.ToLower(text)
	for _, rule := range phraseRules {
		if strings.Contains(lower, rule.phrase) {
			return build(binName, rule.category, text)
		}
	}
	return build(binName, CategoryUnknown, text)
}

func build(binName string, category Category, text string) Classified {
	prefix := binName + " error: "
	switch category {
	case CategoryQuota:
		return Classified{
			Category:    category,
			UserMessage: prefix + strings.TrimSpace(text),
			Suggestion:  "Check your plan's usage limits or wait for the quota to reset.",
			Recoverable: true,
		}
	case CategoryAuth:
		return Classified{
			Category:    category,
			UserMessage: prefix + strings.TrimSpace(text),
			Suggestion:  "Re-authenticate the upstream agent and retry.",
			Recoverable: true,
		}
	case CategoryNetwork:
		return Classified{
			Category:    category,
			UserMessage: prefix + strings.TrimSpace(text),
			Suggestion:  "Check network connectivity to the upstream agent's provider.",
			Recoverable: true,
		}
	case CategoryModel:
		return Classified{
			Category:    category,
			UserMessage: prefix + strings.TrimSpace(text),
			Suggestion:  "Verify the requested model name is supported by the upstream agent.",
			Recoverable: false,
		}
	default:
		return Classified{
			Category:    CategoryUnknown,
			UserMessage: prefix + strings.TrimSpace(text),
			Recoverable: false,
		}
	}
}
