package schemacompat

import (
	"encoding/json"
	"strings"
)

// EditCompatRepair toggles the edit-specific content/new_string/old_string
// coercion described in spec §4.4. Default on, matching the teacher's own
// feature-toggle convention.
var EditCompatRepair = true

// applyToolSpecific mutates args in place per the rules for the named tool.
func applyToolSpecific(tool string, args map[string]any) {
	switch tool {
	case "bash":
		normalizeBash(args)
	case "rm":
		normalizeRM(args)
	case "todowrite":
		normalizeTodoWrite(args)
	case "edit":
		if EditCompatRepair {
			normalizeEdit(args)
		}
	}
}

func normalizeBash(args map[string]any) {
	if cmd, ok := args["command"]; ok {
		switch v := cmd.(type) {
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, stringify(item))
			}
			args["command"] = strings.Join(parts, " ")
		case map[string]any:
			base := stringify(v["command"])
			var argv []string
			if arr, ok := v["args"].([]any); ok {
				for _, a := range arr {
					argv = append(argv, stringify(a))
				}
			}
			joined := base
			if len(argv) > 0 {
				joined = strings.TrimSpace(base + " " + strings.Join(argv, " "))
			}
			args["command"] = joined
		}
	}
	if _, hasCwd := args["cwd"]; !hasCwd {
		if path, ok := args["path"]; ok {
			args["cwd"] = path
		}
	}
}

func normalizeRM(args map[string]any) {
	force, ok := args["force"].(string)
	if !ok {
		return
	}
	switch strings.ToLower(force) {
	case "true", "1", "yes":
		args["force"] = true
	case "false", "0", "no":
		args["force"] = false
	}
}

var todoStatusCanon = map[string]string{
	"pending":               "pending",
	"todo":                  "pending",
	"in_progress":           "in_progress",
	"in-progress":           "in_progress",
	"inprogress":            "in_progress",
	"completed":             "completed",
	"complete":              "completed",
	"done":                  "completed",
	"todo_status_pending":   "pending",
	"todo_status_completed": "completed",
}

func normalizeTodoWrite(args map[string]any) {
	todos, ok := args["todos"].([]any)
	if !ok {
		return
	}
	for _, item := range todos {
		todo, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if status, ok := todo["status"].(string); ok {
			key := strings.ToLower(strings.TrimSpace(status))
			if canon, ok := todoStatusCanon[key]; ok {
				todo["status"] = canon
			}
		}
		if _, hasPriority := todo["priority"]; !hasPriority {
			todo["priority"] = "medium"
		}
	}
}

func normalizeEdit(args map[string]any) {
	for _, key := range []string{"content", "streamContent"} {
		if v, ok := args[key]; ok {
			if _, isString := v.(string); !isString {
				args[key] = coerceToString(v)
			}
		}
	}

	if _, hasNewString := args["new_string"]; !hasNewString {
		content, hasContent := args["content"].(string)
		if !hasContent {
			content, hasContent = args["streamContent"].(string)
		}
		if hasContent {
			args["new_string"] = content
		}
	}

	if newStr, ok := args["new_string"].(string); ok {
		if _, hasOld := args["old_string"]; !hasOld {
			_ = newStr
			args["old_string"] = ""
		}
	}
}

// coerceToString projects an arbitrary JSON value emitted for content/
// streamContent into a single string: arrays join their item projections,
// objects extract a text|content|value field, falling back to JSON.
func coerceToString(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, projectItem(item))
		}
		return strings.Join(parts, "")
	case map[string]any:
		return projectObject(t)
	default:
		return stringify(v)
	}
}

func projectItem(item any) string {
	switch t := item.(type) {
	case string:
		return t
	case map[string]any:
		return projectObject(t)
	default:
		return stringify(t)
	}
}

func projectObject(obj map[string]any) string {
	for _, field := range []string{"text", "content", "value"} {
		if v, ok := obj[field]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			return stringify(v)
		}
	}
	return stringify(obj)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
