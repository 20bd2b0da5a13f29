// Package localtools backs toolLoopMode=proxy-exec (spec §4.1's
// computeToolLoopFlags / SPEC_FULL.md §4.9): a registry of the same shape as
// the teacher's internal/tools package, scoped per request to the
// pipeline's resolved workspace (§4.7) instead of the teacher's single
// REPL-wide repo root.
package localtools

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dodoproxy/dodo-proxy/internal/engine"
	"github.com/dodoproxy/dodo-proxy/internal/indexer"
	"github.com/dodoproxy/dodo-proxy/internal/toolcall"
	"github.com/dodoproxy/dodo-proxy/internal/tools/editing"
	"github.com/dodoproxy/dodo-proxy/internal/tools/execution"
	"github.com/dodoproxy/dodo-proxy/internal/tools/filesystem"
	"github.com/dodoproxy/dodo-proxy/internal/tools/search"
)

// Registry maps a tool name to its engine.Tool implementation, reusing the
// teacher's registration shape directly.
type Registry = engine.ToolRegistry

// NewRegistry builds the proxy-exec tool set rooted at dir: filesystem
// read/write/list/delete, a grep/search tool, an execution tool backed by
// the sandboxed runner, and the semantic codebase_search/read_span pair
// backed by a workspace-scoped indexer.Manager. The returned cleanup func
// stops that manager's background workers and must be called once the
// request is done with the registry.
func NewRegistry(ctx context.Context, dir string) (Registry, func()) {
	reg := make(Registry)
	reg["read_file"] = filesystem.NewReadFileTool(dir)
	reg["list_files"] = filesystem.NewListFilesTool(dir)
	reg["write_file"] = filesystem.NewWriteFileTool(dir)
	reg["delete_file"] = filesystem.NewDeleteFileTool(dir)
	reg["search_replace"] = editing.NewSearchReplaceTool(dir)
	reg["write"] = editing.NewWriteTool(dir)
	reg["grep"] = search.NewGrepTool(dir)
	reg["run_cmd"] = execution.NewRunCmdTool(dir)

	manager, cleanup := newIndexManager(ctx, dir)
	reg["codebase_search"] = search.NewCodebaseSearchTool(manager)
	reg["read_span"] = search.NewReadSpanTool(manager)

	return reg, cleanup
}

// newIndexManager builds the indexer.Manager backing codebase_search/
// read_span, scoped to dir (matching cmd/repl/env.go's setupIndexingManager,
// minus file watching: a proxy-exec registry is request-scoped and torn
// down at the end of the request, so there is nothing long-lived to watch).
// It uses a no-op embedder unless OPENAI_API_KEY is set. If the manager
// cannot be created it falls back to noopRetrieval, whose calls return an
// error, rather than failing the request outright, mirroring the teacher's
// own "continue without it" degradation.
func newIndexManager(ctx context.Context, dir string) (indexer.Retrieval, func()) {
	dbPath := filepath.Join(dir, ".dodo-proxy", "index.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Printf("localtools: failed to create index dir, codebase_search degraded: %v", err)
	}

	embedder := indexer.NewNoOpEmbedder(384)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		embedder = indexer.NewOpenAIEmbedder(apiKey, "text-embedding-3-small", 1536)
	}

	manager, err := indexer.NewManager(ctx, indexer.ManagerConfig{
		DBPath:            dbPath,
		RepoID:            repoID(dir),
		RepoRoot:          dir,
		Chunker:           indexer.NewDefaultChunker(),
		Embedder:          embedder,
		EnableFileWatcher: false,
	})
	if err != nil {
		log.Printf("localtools: failed to start index manager, codebase_search degraded: %v", err)
		return noopRetrieval{}, func() {}
	}

	if err := manager.QuickFreshness(ctx, 10); err != nil {
		log.Printf("localtools: quick freshness check failed, continuing with stale index: %v", err)
	}

	return manager, func() {
		if err := manager.Stop(); err != nil {
			log.Printf("localtools: failed to stop index manager: %v", err)
		}
	}
}

func repoID(dir string) string {
	hash := sha256.Sum256([]byte(dir))
	return fmt.Sprintf("%x", hash[:8])
}

// noopRetrieval answers codebase_search/read_span calls with an explanatory
// error instead of panicking when the index manager could not start.
type noopRetrieval struct{}

func (noopRetrieval) Search(ctx context.Context, query string, globs []string, k int) ([]indexer.Span, error) {
	return nil, fmt.Errorf("localtools: codebase search unavailable (index manager failed to start)")
}

func (noopRetrieval) ReadSpan(ctx context.Context, path string, start, end int) (string, error) {
	return "", fmt.Errorf("localtools: read_span unavailable (index manager failed to start)")
}

// Execute is the single call site the pipeline uses under proxy-exec: look
// up call.Name in registry, validate and decode its JSON arguments, and run
// the tool's Fn. The core never imports this package's internals beyond
// this function signature.
func Execute(ctx context.Context, call toolcall.InterceptedToolCall, registry Registry) (string, error) {
	tool, ok := registry[call.Name]
	if !ok {
		return "", fmt.Errorf("localtools: unknown tool %q", call.Name)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "", fmt.Errorf("localtools: decode arguments for %q: %w", call.Name, err)
	}

	if tool.SchemaJSON != "" {
		if err := tool.ValidateArgs(args); err != nil {
			return "", err
		}
	}

	return tool.Fn(ctx, args)
}
