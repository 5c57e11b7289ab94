package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/highlighter/internal/config"
	"github.com/dgallion1/highlighter/internal/extract"
	"github.com/dgallion1/highlighter/internal/pipeline"
)

// Server is the HTTP upload/download front end.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	points       *extract.PointExtractor
	log          *slog.Logger
	cfg          config.Config
	workDir      string
}

// NewServer creates and configures the HTTP server. points may be nil, in
// which case LLM stats are unavailable.
func NewServer(orch *pipeline.Orchestrator, points *extract.PointExtractor, log *slog.Logger, cfg config.Config) *Server {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "highlighter")
	}
	s := &Server{
		orchestrator: orch,
		points:       points,
		log:          log,
		cfg:          cfg,
		workDir:      workDir,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/highlight", s.handleHighlight)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/download", s.handleDownload)
		r.Get("/api/jobs/{jobID}/report", s.handleReport)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
