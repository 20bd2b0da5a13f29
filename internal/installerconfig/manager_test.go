package installerconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsZeroConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	mgr := NewManager(path)

	require.False(t, mgr.Exists())
	cfg, err := mgr.Load()
	require.NoError(t, err)
	require.Equal(t, Config{}, cfg)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	mgr := NewManager(path)

	cfg := Config{
		UpstreamBin:       "/usr/local/bin/coder",
		WorkspaceOverride: "/work/repo",
		ToolLoopMode:      "opencode",
		ToolLoopMaxRepeat: 3,
	}
	require.NoError(t, mgr.Save(cfg))
	require.True(t, mgr.Exists())

	loaded, err := mgr.Load()
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}
