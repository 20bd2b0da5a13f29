package schemacompat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rawSchema is the subset of a JSON Schema object this package inspects
// directly, ahead of handing the (possibly stripped) document to
// gojsonschema for the actual type/enum/required validation pass.
type rawSchema struct {
	Type                 string                 `json:"type"`
	Properties           map[string]json.RawMessage `json:"properties"`
	Required             []string               `json:"required"`
	AdditionalProperties *bool                  `json:"additionalProperties"`
}

// ValidationResult mirrors spec §3's ToolSchemaValidationResult.
type ValidationResult struct {
	HasSchema  bool
	OK         bool
	Missing    []string
	Unexpected []string
	TypeErrors []string
	RepairHint string
}

// Validate checks args against the tool's declared JSON Schema (raw string,
// as carried on the caller's tool declaration). An empty schema means the
// tool has no declared schema: HasSchema is false and OK is vacuously true.
func Validate(toolName, schemaJSON string, args map[string]any) ValidationResult {
	if strings.TrimSpace(schemaJSON) == "" {
		return ValidationResult{HasSchema: false, OK: true}
	}

	var raw rawSchema
	if err := json.Unmarshal([]byte(schemaJSON), &raw); err != nil {
		return ValidationResult{HasSchema: true, OK: true}
	}

	filtered := args
	var unexpected []string
	if raw.AdditionalProperties != nil && !*raw.AdditionalProperties && raw.Properties != nil {
		filtered = make(map[string]any, len(args))
		for k, v := range args {
			if _, declared := raw.Properties[k]; declared {
				filtered[k] = v
			} else {
				unexpected = append(unexpected, k)
			}
		}
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewGoLoader(filtered)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		// A schema we can't even evaluate is treated as permissive, matching
		// the teacher's ValidateArgs which only surfaces evaluation errors
		// as a wrapped Go error, never as a validation failure.
		return ValidationResult{HasSchema: true, OK: true, Unexpected: unexpected}
	}

	var missing, typeErrors []string
	if !result.Valid() {
		for _, e := range result.Errors() {
			switch e.Type() {
			case "required":
				if prop, ok := e.Details()["property"].(string); ok {
					missing = append(missing, prop)
				}
			default:
				typeErrors = append(typeErrors, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
			}
		}
	}

	sort.Strings(missing)
	sort.Strings(typeErrors)

	ok := len(missing) == 0 && len(typeErrors) == 0
	return ValidationResult{
		HasSchema:  true,
		OK:         ok,
		Missing:    missing,
		Unexpected: unexpected,
		TypeErrors: typeErrors,
		RepairHint: repairHint(toolName, missing, unexpected, typeErrors),
	}
}

// repairHint builds the human-readable suggestion described in spec §4.4.
func repairHint(toolName string, missing, unexpected, typeErrors []string) string {
	if len(missing) == 0 && len(unexpected) == 0 && len(typeErrors) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Arguments for %q are invalid.", toolName))
	if len(missing) > 0 {
		b.WriteString(fmt.Sprintf(" Missing required: %s.", strings.Join(missing, ", ")))
	}
	if len(unexpected) > 0 {
		b.WriteString(fmt.Sprintf(" Unsupported fields: %s.", strings.Join(unexpected, ", ")))
	}
	if len(typeErrors) > 0 {
		b.WriteString(fmt.Sprintf(" Type errors: %s.", strings.Join(typeErrors, "; ")))
	}
	if toolName == "edit" {
		b.WriteString(" edit requires path, old_string, and new_string.")
	}
	return strings.TrimSpace(b.String())
}
