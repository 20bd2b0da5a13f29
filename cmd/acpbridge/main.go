// Command acpbridge is an alternate stdio entrypoint that drives the same
// Pipeline Orchestrator as cmd/daemon, speaking the teacher's own
// line-delimited JSON command/event protocol (internal/engine/protocol)
// instead of HTTP+SSE, for callers that embed dodo-proxy as a subprocess
// rather than talking to it over a socket.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/daemonconfig"
	protocol "github.com/dodoproxy/dodo-proxy/internal/engine/protocol"
	"github.com/dodoproxy/dodo-proxy/internal/pipeline"
	"github.com/dodoproxy/dodo-proxy/internal/promptbuilder"
	"github.com/dodoproxy/dodo-proxy/internal/sse"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
	"github.com/dodoproxy/dodo-proxy/internal/workspace"
)

func main() {
	cfg, err := daemonconfig.Load()
	if err != nil {
		log.Fatalf("acpbridge: failed to load configuration: %v", err)
	}

	bridge := newBridge(cfg)
	bridge.emit(protocol.NewStatusEvent("", "engine_ready", "acpbridge stdio protocol ready"))
	if err := bridge.run(context.Background(), os.Stdin, os.Stdout); err != nil && err != io.EOF {
		log.Fatalf("acpbridge: %v", err)
	}
}

// bridge owns one stdio session's worth of in-flight requests, each keyed
// by the caller-supplied session_id so a cancel_request can reach the
// right one.
type bridge struct {
	opts     pipeline.Options
	resolver *workspace.Resolver

	writeMu sync.Mutex
	writer  *bufio.Writer

	inFlightMu sync.Mutex
	inFlight   map[string]context.CancelFunc
}

func newBridge(cfg daemonconfig.Config) *bridge {
	return &bridge{
		opts:     cfg.PipelineOptions(),
		resolver: workspace.NewResolver(cfg.WorkspaceOverride),
		inFlight: make(map[string]context.CancelFunc),
	}
}

func (b *bridge) run(ctx context.Context, in io.Reader, out io.Writer) error {
	b.writer = bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := protocol.DecodeCommand([]byte(line))
		if err != nil {
			b.emit(protocol.NewErrorEvent("", err.Error(), "protocol_error", ""))
			continue
		}
		b.dispatch(ctx, cmd)
	}
	return scanner.Err()
}

func (b *bridge) dispatch(ctx context.Context, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.UserMessageCommand:
		go b.handleUserMessage(ctx, c)
	case protocol.CancelRequestCommand:
		b.cancel(c.SessionID)
	default:
		b.emit(protocol.NewErrorEvent("", fmt.Sprintf("unsupported command %q", cmd.GetType()), "protocol_error", ""))
	}
}

func (b *bridge) handleUserMessage(parent context.Context, cmd protocol.UserMessageCommand) {
	ctx, cancel := context.WithCancel(parent)
	b.inFlightMu.Lock()
	b.inFlight[cmd.SessionID] = cancel
	b.inFlightMu.Unlock()
	defer func() {
		b.inFlightMu.Lock()
		delete(b.inFlight, cmd.SessionID)
		b.inFlightMu.Unlock()
		cancel()
	}()

	dir, err := b.resolver.Resolve(workspace.Request{SessionID: cmd.SessionID})
	if err != nil {
		b.emit(protocol.NewErrorEvent(cmd.SessionID, err.Error(), "workspace_error", ""))
		return
	}

	req := pipeline.Request{
		Messages:  []promptbuilder.Message{{Role: "user", Content: cmd.Message}},
		SessionID: cmd.SessionID,
		Directory: dir,
	}
	meta := pipeline.NewResponseMeta("chatcmpl-"+uuid.NewString(), time.Now().Unix(), "")
	hooks := &bridgeHooks{b: b, sessionID: cmd.SessionID}
	sink := &bridgeSink{b: b, sessionID: cmd.SessionID}

	if err := pipeline.Run(ctx, req, b.opts, meta, hooks, sink); err != nil {
		if ctx.Err() != nil {
			b.emit(protocol.NewCancelledEvent(cmd.SessionID, "cancelled"))
			return
		}
		b.emit(protocol.NewErrorEvent(cmd.SessionID, err.Error(), "engine_error", ""))
		return
	}
	b.emit(protocol.NewDoneEvent(cmd.SessionID, sink.text.String(), nil))
}

func (b *bridge) cancel(sessionID string) {
	b.inFlightMu.Lock()
	cancel, ok := b.inFlight[sessionID]
	b.inFlightMu.Unlock()
	if ok {
		cancel()
	}
}

func (b *bridge) emit(event protocol.Event) {
	data, err := protocol.MarshalEvent(event)
	if err != nil {
		return
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.writer.Write(data)
	b.writer.WriteByte('\n')
	b.writer.Flush()
}

// bridgeSink implements pipeline.ChunkSink, translating OpenAI-shaped SSE
// chunks back into protocol.AssistantTextEvent messages.
type bridgeSink struct {
	b         *bridge
	sessionID string
	text      strings.Builder
}

func (s *bridgeSink) Send(chunk sse.Chunk) bool {
	choices, ok := chunk["choices"].([]map[string]any)
	if !ok || len(choices) == 0 {
		return true
	}
	delta, ok := choices[0]["delta"].(map[string]any)
	if !ok {
		return true
	}
	content, _ := delta["content"].(string)
	if content == "" {
		return true
	}
	s.text.WriteString(content)
	s.b.emit(protocol.NewAssistantTextEvent(s.sessionID, content, "upstream", false))
	return true
}

// bridgeHooks implements boundary.Hooks, surfacing tool activity over the
// ACP tool_event channel rather than an HTTP tool_calls payload.
type bridgeHooks struct {
	b         *bridge
	sessionID string
}

var _ boundary.Hooks = (*bridgeHooks)(nil)

func (h *bridgeHooks) OnToolUpdate(event upstream.Event) {
	if event.ToolName == "" {
		return
	}
	phase := "started"
	if event.ToolSubtype == upstream.ToolCallCompleted {
		phase = "completed"
	}
	h.b.emit(protocol.NewToolEvent(h.sessionID, event.ToolName, phase, nil, ""))
}

func (h *bridgeHooks) OnToolResult(call toolcall.InterceptedToolCall, result string) {
	success := true
	h.b.emit(protocol.NewToolEvent(h.sessionID, call.Name, "completed", &success, result))
}

func (h *bridgeHooks) OnInterceptedToolCall(call toolcall.InterceptedToolCall) {
	h.b.emit(protocol.NewToolEvent(h.sessionID, call.Name, "intercepted", nil, call.Arguments))
}

func (h *bridgeHooks) OnFallbackToLegacy(reason error) {
	h.b.emit(protocol.NewStatusEvent(h.sessionID, "fallback_to_legacy", reason.Error()))
}
