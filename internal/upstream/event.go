// Package upstream models the line-delimited JSON event dialect spoken by
// the upstream coding-agent CLI and the process abstraction used to drive it.
package upstream

import "encoding/json"

// EventType is the recognized "type" discriminator of an upstream line.
type EventType string

const (
	EventAssistant EventType = "assistant"
	EventThinking  EventType = "thinking"
	EventToolCall  EventType = "tool_call"
	EventResult    EventType = "result"
)

// ToolCallSubtype distinguishes a tool_call event's lifecycle phase.
type ToolCallSubtype string

const (
	ToolCallStarted   ToolCallSubtype = "started"
	ToolCallCompleted ToolCallSubtype = "completed"
)

// ResultSubtype is the terminal outcome of an upstream turn.
type ResultSubtype string

const (
	ResultSuccess   ResultSubtype = "success"
	ResultCancelled ResultSubtype = "cancelled"
	ResultError     ResultSubtype = "error"
	ResultFailure   ResultSubtype = "failure"
	ResultRefused   ResultSubtype = "refused"
)

// ContentPart is one element of an "assistant" event's message.content array.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolCallPayload is the value side of a tool_call event's singleton map:
// { <toolNameToken>: { args, result? } }.
type ToolCallPayload struct {
	Args   map[string]any `json:"args"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Event is the tagged union described in spec §3 ("UpstreamEvent"). Only one
// of the typed fields is meaningful, selected by Type. Unknown top-level
// "type" values parse into Event{Type: "", Raw: <original line>} and are
// ignored by every caller — mirroring the original's RawValue pass-through.
type Event struct {
	Type EventType

	// assistant_text
	Text          string
	TimestampMs   bool

	// thinking
	ThinkingDelta string

	// tool_call
	ToolSubtype    ToolCallSubtype
	CallID         string
	ToolName       string
	ToolArgs       map[string]any
	ToolResult     json.RawMessage
	ToolCallKeys   int // number of keys in the wire tool_call map; >1 means malformed

	// result
	ResultSubtype ResultSubtype

	Raw []byte
}

// wireEvent is the on-the-wire shape used only for unmarshalling; Event
// itself is the normalized, caller-facing form.
type wireEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Message *struct {
		Content []ContentPart `json:"content"`
	} `json:"message"`
	TimestampMs json.Number `json:"timestamp_ms"`
	Text        string      `json:"text"`
	CallID      string      `json:"call_id"`
	ToolCallID  string      `json:"tool_call_id"`
	ToolCall    map[string]ToolCallPayload `json:"tool_call"`
}

// ParseEvent decodes a single line of upstream output. A malformed line
// returns a non-nil error; callers must skip it silently per spec §4.1.
func ParseEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, err
	}

	ev := Event{Raw: line}
	switch EventType(w.Type) {
	case EventAssistant:
		ev.Type = EventAssistant
		if w.Message != nil {
			for _, part := range w.Message.Content {
				if part.Type == "text" {
					ev.Text += part.Text
				}
			}
		}
		ev.TimestampMs = w.TimestampMs != ""
	case EventThinking:
		ev.Type = EventThinking
		ev.ThinkingDelta = w.Text
	case EventToolCall:
		ev.Type = EventToolCall
		ev.ToolSubtype = ToolCallSubtype(w.Subtype)
		ev.CallID = w.CallID
		if ev.CallID == "" {
			ev.CallID = w.ToolCallID
		}
		ev.ToolCallKeys = len(w.ToolCall)
		for name, payload := range w.ToolCall {
			ev.ToolName = name
			ev.ToolArgs = payload.Args
			ev.ToolResult = payload.Result
			break
		}
	case EventResult:
		ev.Type = EventResult
		ev.ResultSubtype = ResultSubtype(w.Subtype)
	default:
		// Unknown variant: Type stays "" and every switch in the pipeline
		// falls through to its default (ignore) branch.
	}
	return ev, nil
}
