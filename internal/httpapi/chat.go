package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dodoproxy/dodo-proxy/internal/boundary"
	"github.com/dodoproxy/dodo-proxy/internal/pipeline"
	"github.com/dodoproxy/dodo-proxy/internal/promptbuilder"
	"github.com/dodoproxy/dodo-proxy/internal/sse"
	"github.com/dodoproxy/dodo-proxy/internal/workspace"
)

// chatRequest is the relevant subset of spec §6's chat request shape.
type chatRequest struct {
	Model     string                   `json:"model"`
	Messages  []promptbuilder.Message  `json:"messages"`
	Tools     []promptbuilder.ToolDecl `json:"tools"`
	Stream    bool                     `json:"stream"`
	SessionID string                   `json:"session_id"`
	Worktree  string                   `json:"worktree"`
	Directory string                   `json:"directory"`
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": err.Error()}})
		return
	}

	dir, err := s.resolver.Resolve(workspace.Request{
		Worktree:  req.Worktree,
		Directory: req.Directory,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": err.Error()}})
		return
	}

	pipeReq := pipeline.Request{
		Model:     req.Model,
		Messages:  req.Messages,
		Tools:     req.Tools,
		Stream:    req.Stream,
		SessionID: req.SessionID,
		Worktree:  req.Worktree,
		Directory: dir,
	}
	meta := pipeline.NewResponseMeta(newRequestID(), time.Now().Unix(), req.Model)

	if !req.Stream {
		resp, err := pipeline.RunOnce(r.Context(), pipeReq, s.pipeOpts, meta, boundary.NopHooks{})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": err.Error()}})
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	sink := &sseSink{w: w, flusher: flusher}

	_ = pipeline.Run(r.Context(), pipeReq, s.pipeOpts, meta, boundary.NopHooks{}, sink)
	if !sink.disconnected {
		w.Write(sse.Done)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// sseSink implements pipeline.ChunkSink over an http.ResponseWriter,
// treating a failed write as client disconnect (spec §4.1's
// "Cancellation").
type sseSink struct {
	w            http.ResponseWriter
	flusher      http.Flusher
	disconnected bool
}

func (s *sseSink) Send(chunk sse.Chunk) bool {
	frame, err := sse.Frame(chunk)
	if err != nil {
		s.disconnected = true
		return false
	}
	if _, err := s.w.Write(frame); err != nil {
		s.disconnected = true
		return false
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
