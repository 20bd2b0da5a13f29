package daemonconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	clearEnv(t, "DODO_PROXY_CONFIG_PATH", "DODO_PROXY_TOOL_LOOP_MAX_REPEAT", "DODO_PROXY_PORT")
	os.Setenv("DODO_PROXY_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, boundary.LoopOpenCode, cfg.ToolLoopMode)
	require.Equal(t, 2, cfg.ToolLoopMaxRepeat)
	require.Equal(t, "4718", cfg.Port)
	require.True(t, cfg.EditCompatRepair)
}

func TestEnvOverridesPersistedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tool_loop_max_repeat": 5, "upstream_bin": "/bin/from-file"}`), 0600))

	clearEnv(t, "DODO_PROXY_CONFIG_PATH", "DODO_PROXY_TOOL_LOOP_MAX_REPEAT", "DODO_PROXY_UPSTREAM_BIN")
	os.Setenv("DODO_PROXY_CONFIG_PATH", path)
	os.Setenv("DODO_PROXY_TOOL_LOOP_MAX_REPEAT", "9")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9, cfg.ToolLoopMaxRepeat)        // env wins over file
	require.Equal(t, "/bin/from-file", cfg.UpstreamBin) // file wins over default
}

func TestModelsEnvIsSplitAndTrimmed(t *testing.T) {
	clearEnv(t, "DODO_PROXY_CONFIG_PATH", "DODO_PROXY_MODELS")
	os.Setenv("DODO_PROXY_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	os.Setenv("DODO_PROXY_MODELS", "gpt-4o, claude-3-5-sonnet ,gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"gpt-4o", "claude-3-5-sonnet", "gpt-4o-mini"}, cfg.Models)
}
