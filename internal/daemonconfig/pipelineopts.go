package daemonconfig

import (
	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/pipeline"
)

// PipelineOptions converts the resolved daemon config into pipeline.Options,
// shared by every entrypoint that drives the Pipeline Orchestrator
// (cmd/daemon's HTTP surface and cmd/acpbridge's stdio surface alike).
func (cfg Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		UpstreamBin:          cfg.UpstreamBin,
		UpstreamArgs:         cfg.UpstreamArgs,
		ToolLoopMode:         cfg.ToolLoopMode,
		ToolLoopMaxRepeat:    cfg.ToolLoopMaxRepeat,
		ForwardToolCalls:     cfg.ForwardToolCalls,
		EmitToolUpdates:      cfg.EmitToolUpdates,
		AutoFallbackToLegacy: cfg.AutoFallbackToLegacy,
		InitialBoundary:      InitialBoundary(cfg.ProviderBoundary),
		ToolTimeoutMs:        cfg.ToolTimeoutMs,
	}
}

// InitialBoundary maps the configured provider-boundary mode to its
// singleton boundary.Boundary strategy instance.
func InitialBoundary(mode boundary.Mode) boundary.Boundary {
	if mode == boundary.ModeLegacy {
		return boundary.Legacy
	}
	return boundary.V1
}
