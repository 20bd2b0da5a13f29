// Package httpapi wires the Pipeline Orchestrator to an OpenAI-compatible
// chi.Router, grounded on the digitallysavvy-go-ai chi-server example's
// middleware/cors wiring.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/dodoproxy/dodo-proxy/internal/daemonconfig"
	"github.com/dodoproxy/dodo-proxy/internal/modeldiscovery"
	"github.com/dodoproxy/dodo-proxy/internal/pipeline"
	"github.com/dodoproxy/dodo-proxy/internal/workspace"
)

// Server holds the daemon-wide dependencies request handlers need.
type Server struct {
	cfg      daemonconfig.Config
	resolver *workspace.Resolver
	pipeOpts pipeline.Options
}

// New builds a Server from a resolved daemon configuration.
func New(cfg daemonconfig.Config) *Server {
	return &Server{
		cfg:      cfg,
		resolver: workspace.NewResolver(cfg.WorkspaceOverride),
		pipeOpts: cfg.PipelineOptions(),
	}
}

// Router assembles the chi router for the daemon.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/v1/models", s.handleModels)
	r.Get("/models", s.handleModels)
	r.Post("/v1/chat/completions", s.handleChatCompletions)
	r.Post("/chat/completions", s.handleChatCompletions)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := modeldiscovery.List(r.Context(), s.cfg.Models, s.cfg.UpstreamBin)
	created := time.Now().Unix()
	data := make([]map[string]any, 0, len(models))
	for _, m := range models {
		data = append(data, map[string]any{
			"id":       m.ID,
			"object":   "model",
			"created":  created,
			"owned_by": m.OwnedBy,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data})
}

func newRequestID() string {
	return "chatcmpl-" + uuid.NewString()
}
