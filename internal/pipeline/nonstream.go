package pipeline

import (
	"context"
	"io"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/errorsx"
	"github.com/dodoproxy/dodo-proxy/internal/intercept"
	"github.com/dodoproxy/dodo-proxy/internal/localtools"
	"github.com/dodoproxy/dodo-proxy/internal/promptbuilder"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/upstream"
)

// RunOnce drives one request in non-streaming mode, per spec §4.1's
// "Non-streaming mode": collect the whole upstream stdout, scan for the
// first allowed tool call; otherwise return assembled text/reasoning.
func RunOnce(ctx context.Context, req Request, opts Options, meta toolcall.ResponseMeta, hooks boundary.Hooks) (map[string]any, error) {
	if hooks == nil {
		hooks = boundary.NopHooks{}
	}
	payload, err := promptbuilder.Build(req.Model, req.Messages, req.Tools)
	if err != nil {
		return nil, err
	}
	body, err := promptbuilder.Marshal(payload)
	if err != nil {
		return nil, err
	}

	proc, err := upstream.Spawn(ctx, upstream.SpawnSpec{
		Bin:  opts.UpstreamBin,
		Args: opts.UpstreamArgs,
		Dir:  req.Directory,
	})
	if err != nil {
		return nil, err
	}
	defer proc.Kill()

	if _, err := proc.In.Write(body); err != nil {
		return nil, err
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

	stderrDone := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(proc.Err)
		stderrDone <- b
	}()

	lines := upstream.NewLineSplitter(proc.Out)

	var text, reasoning string
	for {
		line, err := lines.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		ev, perr := upstream.ParseEvent(line)
		if perr != nil {
			continue
		}

		if ev.Type == upstream.EventToolCall {
			outcome, ierr := ic.Intercept(ev)
			if ierr != nil {
				return nil, ierr
			}
			if outcome.Kind == intercept.OutcomeIntercepted {
				return rc.CreateNonStreamToolCallResponse(meta, *outcome.Call), nil
			}
			if outcome.Kind == intercept.OutcomeTerminate && !outcome.Silent {
				return nonStreamTextResponse(meta, outcome.Message, ""), nil
			}
			if outcome.Kind == intercept.OutcomeExecuteLocal {
				if err := executeLocalAndContinue(ctx, proc, registry, *outcome.Call, hooks); err != nil {
					return nil, err
				}
			}
			continue
		}

		switch ev.Type {
		case upstream.EventAssistant:
			text = ev.Text
		case upstream.EventThinking:
			reasoning = ev.ThinkingDelta
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
		return nonStreamTextResponse(meta, classified.UserMessage, ""), nil
	}

	return nonStreamTextResponse(meta, text, reasoning), nil
}

func nonStreamTextResponse(meta toolcall.ResponseMeta, text, reasoning string) map[string]any {
	message := map[string]any{
		"role":    "assistant",
		"content": text,
	}
	if reasoning != "" {
		message["reasoning_content"] = reasoning
	}
	return map[string]any{
		"id":      meta.ID,
		"object":  "chat.completion",
		"created": meta.Created,
		"model":   meta.Model,
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       message,
				"finish_reason": "stop",
			},
		},
	}
}
