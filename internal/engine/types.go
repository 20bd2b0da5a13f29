package engine

// ToolSchema is the JSON schema (or similar) the provider expects for function calling.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string // keep as raw JSON string for simplicity
	Retryable   bool   // Whether this tool can be retried (copied from Tool.Retryable)
}

// ExecutionResult represents the standard format for execution tool results.
// All execution tools (run_cmd, run_tests, run_build) should return JSON
// that unmarshals to this structure. This provides a contract between tools
// and the protocol layer, preventing coupling to implementation details.
type ExecutionResult struct {
	Cmd             string `json:"cmd"`                         // Command that was executed
	ExitCode        int    `json:"exit_code"`                   // Exit code (0 = success)
	Stdout          string `json:"stdout"`                      // Standard output
	Stderr          string `json:"stderr"`                      // Standard error output
	TimedOut        bool   `json:"timed_out,omitempty"`         // Whether command timed out
	Status          string `json:"status,omitempty"`            // Status: "ok", "failed", "unavailable"
	Reason          string `json:"reason,omitempty"`            // Reason for status (e.g., "command_not_found")
	Passed          *bool  `json:"passed,omitempty"`            // For test tools: whether tests passed
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`  // Whether stdout was truncated
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`  // Whether stderr was truncated
}
