package httpapi

import (
	"bufio"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/daemonconfig"
)

func testServer(script string) *Server {
	cfg := daemonconfig.Config{
		UpstreamBin:       "/bin/sh",
		UpstreamArgs:      []string{"-c", script},
		ToolLoopMode:      boundary.LoopOpenCode,
		ToolLoopMaxRepeat: 2,
		ProviderBoundary:  boundary.ModeLegacy,
	}
	return New(cfg)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer("")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestChatCompletionsNonStreaming(t *testing.T) {
	script := `printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"text","text":"hi there"}]}}'`
	srv := testServer(script)

	body := `{"model":"gpt-test","messages":[{"role":"user","content":"hello"}],"stream":false}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "hi there")
	require.Contains(t, w.Body.String(), `"finish_reason":"stop"`)
}

func TestChatCompletionsStreamingEndsWithDone(t *testing.T) {
	script := `printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}'`
	srv := testServer(script)

	body := `{"model":"gpt-test","messages":[{"role":"user","content":"hello"}],"stream":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(bytes.NewReader(w.Body.Bytes()))
	var lastDataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			lastDataLine = line
		}
	}
	require.Equal(t, "data: [DONE]", lastDataLine)
}
