// Package daemonconfig loads the daemon's configuration (spec §6), merging
// the installer-written file with environment variable overrides, in the
// teacher's own precedence order: environment wins over the persisted file,
// and the persisted file wins over built-in defaults.
package daemonconfig

import (
	"os"
	"strconv"
	"strings"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/installerconfig"
)

// Config is the daemon's fully-resolved, merged configuration.
type Config struct {
	// spec.md §6 fields.
	ToolLoopMode         boundary.ToolLoopMode
	ProviderBoundary     boundary.Mode
	AutoFallbackToLegacy bool
	ToolLoopMaxRepeat    int
	ForceToolMode        bool
	EmitToolUpdates      bool
	ForwardToolCalls     bool
	ReuseExistingProxy   bool
	EditCompatRepair     bool
	WorkspaceOverride    string
	ToolTimeoutMs        int

	// SPEC_FULL.md §6 ambient additions.
	Port         string
	UpstreamBin  string
	UpstreamArgs []string
	Models       []string
	LogLevel     string
	ConfigPath   string
}

// defaults mirrors spec.md §6's stated defaults.
func defaults() Config {
	return Config{
		ToolLoopMode:         boundary.LoopOpenCode,
		ProviderBoundary:     boundary.ModeV1,
		AutoFallbackToLegacy: false,
		ToolLoopMaxRepeat:    2,
		ForceToolMode:        false,
		EmitToolUpdates:      false,
		ForwardToolCalls:     false,
		ReuseExistingProxy:   true,
		EditCompatRepair:     true,
		WorkspaceOverride:    "",
		ToolTimeoutMs:        120_000,
		Port:                 "4718",
		UpstreamBin:          "",
		LogLevel:             "info",
	}
}

// Load resolves the daemon configuration: defaults, then the installer file
// (if present), then environment variable overrides.
func Load() (Config, error) {
	cfg := defaults()

	configPath := os.Getenv("DODO_PROXY_CONFIG_PATH")
	mgr := installerconfig.NewManager(configPath)
	persisted, err := mgr.Load()
	if err != nil {
		return Config{}, err
	}
	cfg.ConfigPath = mgr.GetConfigPath()
	applyPersisted(&cfg, persisted)
	applyEnv(&cfg)
	return cfg, nil
}

func applyPersisted(cfg *Config, p installerconfig.Config) {
	if p.UpstreamBin != "" {
		cfg.UpstreamBin = p.UpstreamBin
	}
	if p.WorkspaceOverride != "" {
		cfg.WorkspaceOverride = p.WorkspaceOverride
	}
	if p.ToolLoopMode != "" {
		cfg.ToolLoopMode = boundary.ToolLoopMode(p.ToolLoopMode)
	}
	if p.ToolLoopMaxRepeat > 0 {
		cfg.ToolLoopMaxRepeat = p.ToolLoopMaxRepeat
	}
}

func applyEnv(cfg *Config) {
	if v, ok := lookupBool("DODO_PROXY_AUTO_FALLBACK_TO_LEGACY"); ok {
		cfg.AutoFallbackToLegacy = v
	}
	if v, ok := os.LookupEnv("DODO_PROXY_TOOL_LOOP_MODE"); ok {
		cfg.ToolLoopMode = boundary.ToolLoopMode(v)
	}
	if v, ok := os.LookupEnv("DODO_PROXY_PROVIDER_BOUNDARY"); ok {
		cfg.ProviderBoundary = boundary.Mode(v)
	}
	if v, ok := lookupInt("DODO_PROXY_TOOL_LOOP_MAX_REPEAT"); ok {
		cfg.ToolLoopMaxRepeat = v
	}
	if v, ok := lookupBool("DODO_PROXY_FORCE_TOOL_MODE"); ok {
		cfg.ForceToolMode = v
	}
	if v, ok := lookupBool("DODO_PROXY_EMIT_TOOL_UPDATES"); ok {
		cfg.EmitToolUpdates = v
	}
	if v, ok := lookupBool("DODO_PROXY_FORWARD_TOOL_CALLS"); ok {
		cfg.ForwardToolCalls = v
	}
	if v, ok := lookupBool("DODO_PROXY_REUSE_EXISTING_PROXY"); ok {
		cfg.ReuseExistingProxy = v
	}
	if v, ok := lookupBool("DODO_PROXY_EDIT_COMPAT_REPAIR"); ok {
		cfg.EditCompatRepair = v
	}
	if v, ok := os.LookupEnv("DODO_PROXY_WORKSPACE_OVERRIDE"); ok {
		cfg.WorkspaceOverride = v
	}
	if v, ok := lookupInt("DODO_PROXY_TOOL_TIMEOUT_MS"); ok {
		cfg.ToolTimeoutMs = v
	}

	if v, ok := os.LookupEnv("DODO_PROXY_PORT"); ok {
		cfg.Port = v
	}
	if v, ok := os.LookupEnv("DODO_PROXY_UPSTREAM_BIN"); ok {
		cfg.UpstreamBin = v
	}
	if v, ok := os.LookupEnv("DODO_PROXY_UPSTREAM_ARGS"); ok {
		cfg.UpstreamArgs = strings.Fields(v)
	}
	if v, ok := os.LookupEnv("DODO_PROXY_MODELS"); ok {
		cfg.Models = splitCSV(v)
	}
	if v, ok := os.LookupEnv("DODO_PROXY_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

func lookupBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
