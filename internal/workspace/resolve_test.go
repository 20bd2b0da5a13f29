package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveEnvOverrideWins(t *testing.T) {
	r := NewResolver(t.TempDir())
	dir := t.TempDir()
	got, err := r.Resolve(Request{EnvOverride: dir})
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(dir)
	require.Equal(t, want, got)
}

func TestResolveWithoutHintsUsesWorkingDirectory(t *testing.T) {
	prefix := t.TempDir()
	r := NewResolver(prefix)
	cwd, _ := os.Getwd()
	want, _ := filepath.EvalSymlinks(cwd)
	got, err := r.Resolve(Request{})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSessionPinSurvivesLostWorktreeHint(t *testing.T) {
	prefix := t.TempDir()
	r := NewResolver(prefix)
	outside := t.TempDir()

	first, err := r.Resolve(Request{SessionID: "s1", Worktree: outside})
	require.NoError(t, err)

	second, err := r.Resolve(Request{SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSessionLRUEvictsOldest(t *testing.T) {
	c := newSessionLRU(2)
	c.Put("a", "/a")
	c.Put("b", "/b")
	c.Put("c", "/c")
	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}
