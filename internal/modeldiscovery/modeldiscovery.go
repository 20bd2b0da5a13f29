// Package modeldiscovery answers GET /v1/models, merging three sources in
// order (spec.md SPEC_FULL.md §4.10): a static env-declared list, the
// upstream agent's own --list-models stdout (tolerantly text-parsed), and
// a live provider SDK listing when a provider API key is present.
package modeldiscovery

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"
)

// Model is one entry in the /v1/models response.
type Model struct {
	ID      string
	Created int64
	OwnedBy string
}

// List merges static, upstream-parsed, and live-SDK model ids, deduplicated
// by id with the static list taking naming precedence.
func List(ctx context.Context, staticModels []string, upstreamBin string) []Model {
	seen := map[string]bool{}
	var out []Model

	add := func(id, ownedBy string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, Model{ID: id, OwnedBy: ownedBy})
	}

	for _, id := range staticModels {
		add(id, "dodo-proxy")
	}

	for _, id := range parseUpstreamListModels(ctx, upstreamBin) {
		add(id, "upstream")
	}

	for _, id := range liveListing(ctx) {
		add(id, "provider")
	}

	return out
}

// parseUpstreamListModels shells out to the upstream binary's own
// --list-models flag and tolerantly scans its stdout line by line,
// skipping anything that doesn't look like a bare model id — mirroring
// the Unknown-variant tolerance the pipeline applies to upstream events.
func parseUpstreamListModels(ctx context.Context, upstreamBin string) []string {
	if upstreamBin == "" {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, upstreamBin, "--list-models")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil
	}

	var ids []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.ContainsAny(line, "{}[]") {
			continue // skip anything structured we don't recognize
		}
		ids = append(ids, line)
	}
	return ids
}

// liveListing queries whichever provider SDK has credentials in the
// environment. Anthropic's API exposes no model-listing endpoint in
// liushuangls/go-anthropic/v2, so presence of ANTHROPIC_API_KEY only
// confirms the provider is configured and contributes its known current
// model family; OpenAI's client lists models directly.
func liveListing(ctx context.Context) []string {
	var ids []string

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		client := openai.NewClient(key)
		if resp, err := client.ListModels(ctx); err == nil {
			for _, m := range resp.Models {
				ids = append(ids, m.ID)
			}
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		_ = anthropic.NewClient(key)
		ids = append(ids, anthropicKnownModels...)
	}

	return ids
}

var anthropicKnownModels = []string{
	"claude-3-5-sonnet-latest",
	"claude-3-5-haiku-latest",
	"claude-3-opus-latest",
}
