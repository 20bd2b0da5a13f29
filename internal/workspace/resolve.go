// Package workspace implements the pipeline's workspace-directory
// resolution order (spec §4.7) and the per-session pinned-workspace cache
// that backstops requests which lose their worktree hint.
package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const sessionCacheCapacity = 200

// Resolver holds the bounded LRU used by resolution step 3. One Resolver is
// shared process-wide; its Resolve method is safe only for the single
// request goroutine that owns a given sessionID at a time (matching the
// per-request ownership model of spec §3 — the cache itself is the only
// piece of state shared across requests).
type Resolver struct {
	configPrefix string
	sessions     *sessionLRU
}

// NewResolver constructs a resolver rooted at the daemon's config prefix.
func NewResolver(configPrefix string) *Resolver {
	return &Resolver{configPrefix: configPrefix, sessions: newSessionLRU(sessionCacheCapacity)}
}

// Request is the subset of request-derived workspace hints relevant to
// resolution.
type Request struct {
	EnvOverride string // explicit environment override, already resolved by the caller
	Worktree    string // caller-supplied `worktree` field
	Directory   string // caller-supplied `directory` field
	SessionID   string
}

// Resolve implements the six-step order of spec §4.7, canonicalizing the
// winning path through the filesystem (following symlinks).
func (r *Resolver) Resolve(req Request) (string, error) {
	if req.EnvOverride != "" {
		return r.finalize(req, req.EnvOverride)
	}
	if req.Worktree != "" && r.outsidePrefix(req.Worktree) {
		return r.finalize(req, req.Worktree)
	}
	if req.SessionID != "" {
		if pinned, ok := r.sessions.Get(req.SessionID); ok {
			return canonicalize(pinned)
		}
	}
	if req.Directory != "" && r.outsidePrefix(req.Directory) {
		return r.finalize(req, req.Directory)
	}
	if cwd, err := os.Getwd(); err == nil && cwd != "" {
		return r.finalize(req, cwd)
	}
	return r.finalize(req, r.configPrefix)
}

func (r *Resolver) finalize(req Request, candidate string) (string, error) {
	resolved, err := canonicalize(candidate)
	if err != nil {
		return "", err
	}
	if req.SessionID != "" {
		r.sessions.Put(req.SessionID, resolved)
	}
	return resolved, nil
}

// outsidePrefix reports whether path lies outside the daemon's config
// prefix, comparing case-insensitively on macOS per spec §4.7.
func (r *Resolver) outsidePrefix(path string) bool {
	if r.configPrefix == "" {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return true
	}
	prefix := r.configPrefix
	candidate := abs
	if runtime.GOOS == "darwin" {
		prefix = strings.ToLower(prefix)
		candidate = strings.ToLower(candidate)
	}
	return !strings.HasPrefix(candidate, prefix)
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// A path that doesn't exist yet (or a broken symlink) still
		// resolves to its absolute form rather than failing resolution.
		return abs, nil
	}
	return resolved, nil
}
