// Package toolcall holds the small, dependency-free types shared by the
// provider boundary and the tool-call interceptor, so neither leaf module
// needs to import the other (see SPEC_FULL.md §9 / spec.md §9's note on the
// boundary/interceptor relationship).
package toolcall

// InterceptedToolCall is the canonical OpenAI-style structure described in
// spec §3: { id, type = function, function: { name, arguments } }, with name
// and arguments already canonicalized by the schema-compat layer.
type InterceptedToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded object
}

// ResponseMeta is the per-request response envelope (spec §3's
// PipelineState.responseMeta): { id, created, model }.
type ResponseMeta struct {
	ID      string
	Created int64
	Model   string
}

// ExtractedCall is the raw, pre-normalization result of the boundary's
// tool-call extraction: a tool name and argument map straight off the
// upstream event, before schema-compat has had a chance to canonicalize it.
type ExtractedCall struct {
	CallID   string
	ToolName string
	Args     map[string]any
}
