package pipeline

import (
	"context"
	"io"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/errorsx"
	"github.com/dodoproxy/dodo-proxy/internal/intercept"
	"github.com/dodoproxy/dodo-proxy/internal/localtools"
	"github.com/dodoproxy/dodo-proxy/internal/promptbuilder"
	"github.com/dodoproxy/dodo-proxy/internal/sse"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// ChunkSink receives chunks as they are produced; Run writes through it
// instead of owning an http.ResponseWriter directly, so the pipeline stays
// transport-agnostic and testable without a live HTTP round-trip.
type ChunkSink interface {
	// Send delivers one chunk; a false return means the writer became
	// unwritable (client disconnected) and the run must cancel (spec §4.1's
	// "Cancellation").
	Send(chunk sse.Chunk) bool
}

// Run drives one request end to end in streaming mode, per spec §4.1's
// "Streaming control flow": spawn, read NDJSON incrementally with a
// carry-over buffer, route each event through the interceptor or the
// converter, and finalize with `finish_reason = stop` plus DONE. Once a
// tool_call is intercepted, its chunks are sent and the function returns;
// a loop-guard/schema termination sends its message (unless silent) and the
// final stop chunk, then returns. In both cases the upstream is killed and
// the exit-code check is skipped — it only runs for a turn that streamed to
// natural completion.
func Run(ctx context.Context, req Request, opts Options, meta toolcall.ResponseMeta, hooks boundary.Hooks, sink ChunkSink) error {
	if hooks == nil {
		hooks = boundary.NopHooks{}
	}
	payload, err := promptbuilder.Build(req.Model, req.Messages, req.Tools)
	if err != nil {
		return err
	}
	body, err := promptbuilder.Marshal(payload)
	if err != nil {
		return err
	}

	proc, err := upstream.Spawn(ctx, upstream.SpawnSpec{
		Bin:  opts.UpstreamBin,
		Args: opts.UpstreamArgs,
		Dir:  req.Directory,
	})
	if err != nil {
		return err
	}
	defer proc.Kill()

	if _, err := proc.In.Write(body); err != nil {
		return err
	}
	proxyExec := opts.ToolLoopMode == boundary.LoopProxyExec && opts.ForwardToolCalls
	if !proxyExec {
		_ = proc.In.Close()
	} else {
		defer proc.In.Close()
	}

	rc := boundary.NewRuntimeContext(opts.InitialBoundary, opts.AutoFallbackToLegacy, hooks)
	guard := buildGuard(opts.ToolLoopMaxRepeat, req.Messages)
	ic := intercept.New(intercept.Config{
		ToolLoopMode:         opts.ToolLoopMode,
		Allowed:              promptbuilder.ToolNames(req.Tools),
		SchemaMap:            promptbuilder.SchemaMap(req.Tools),
		ForwardToolCalls:     opts.ForwardToolCalls,
		EmitToolUpdates:      opts.EmitToolUpdates,
		AutoFallbackToLegacy: opts.AutoFallbackToLegacy,
	}, rc, guard, hooks)

	var registry localtools.Registry
	if proxyExec {
		var cleanup func()
		registry, cleanup = localtools.NewRegistry(ctx, req.Directory)
		defer cleanup()
	}

	conv := sse.New(meta)
	lines := upstream.NewLineSplitter(proc.Out)

	stderrDone := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(proc.Err)
		stderrDone <- b
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := lines.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(line) == 0 {
			continue
		}

		ev, perr := upstream.ParseEvent(line)
		if perr != nil {
			continue // malformed line: silently skipped, spec §4.1
		}

		if ev.Type != upstream.EventToolCall {
			if chunk, ok := conv.Convert(ev); ok {
				if !sink.Send(chunk) {
					return nil
				}
			}
			continue
		}

		outcome, ierr := ic.Intercept(ev)
		if ierr != nil {
			return ierr
		}
		switch outcome.Kind {
		case intercept.OutcomeTerminate:
			if !outcome.Silent {
				emitTerminate(sink, meta, outcome.Message)
			}
			finalizeStream(sink, conv)
			return nil
		case intercept.OutcomeIntercepted:
			emitInterceptedCall(sink, rc, meta, *outcome.Call)
			return nil
		case intercept.OutcomeSkipConverter:
			if outcome.HintChunk != nil {
				if !sink.Send(sse.Chunk(outcome.HintChunk)) {
					return nil
				}
			}
		case intercept.OutcomeForward:
			if chunk, ok := conv.Convert(ev); ok {
				if !sink.Send(chunk) {
					return nil
				}
			}
		case intercept.OutcomeExecuteLocal:
			if err := executeLocalAndContinue(ctx, proc, registry, *outcome.Call, hooks); err != nil {
				return err
			}
		}
	}

	waitErr := proc.Wait()
	var stderrText []byte
	select {
	case stderrText = <-stderrDone:
	case <-ctx.Done():
	}

	if upstream.ExitCode(waitErr) != 0 {
		classified := errorsx.Classify(opts.UpstreamBin, string(stderrText))
		emitTerminate(sink, meta, classified.UserMessage)
		finalizeStream(sink, conv)
		return nil
	}

	finalizeStream(sink, conv)
	return nil
}

func emitTerminate(sink ChunkSink, meta toolcall.ResponseMeta, message string) {
	sink.Send(sse.Chunk{
		"id":      meta.ID,
		"object":  "chat.completion.chunk",
		"created": meta.Created,
		"model":   meta.Model,
		"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": message}, "finish_reason": nil}},
	})
}

func finalizeStream(sink ChunkSink, conv *sse.Converter) {
	sink.Send(conv.FinalChunk())
}

func emitInterceptedCall(sink ChunkSink, rc *boundary.RuntimeContext, meta toolcall.ResponseMeta, call toolcall.InterceptedToolCall) {
	for _, chunk := range rc.CreateStreamToolCallChunks(meta, call) {
		if !sink.Send(sse.Chunk(chunk)) {
			return
		}
	}
}
