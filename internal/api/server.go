package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/workflow"
)

type Server struct {
	router  chi.Router
	service *workflow.Service
}

func NewServer(service *workflow.Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("workflow service required")
	}
	srv := &Server{
		router:  chi.NewRouter(),
		service: service,
	}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/jobs", s.handleCreateJob)
	s.router.Get("/v1/jobs/{jobID}", s.handleJobStatus)
	s.router.Get("/v1/jobs/{jobID}/draft", s.handleJobDraft)
	s.router.Post("/v1/jobs/{jobID}/approve", s.handleApprove)
	s.router.Get("/v1/scopes/{scopeID}/published", s.handlePublished)
	s.router.Get("/v1/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
