package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/workflow"
)

// runTimeout bounds a background engine run kicked off by job creation.
const runTimeout = 10 * time.Minute

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req workflow.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	jobID, err := s.service.Create(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, workflow.ErrJobExists):
			status = http.StatusConflict
		default:
			if strings.Contains(err.Error(), "required") {
				status = http.StatusBadRequest
			}
		}
		writeError(w, status, err)
		return
	}

	// The engine runs detached from the request: the client polls status
	// while phases execute.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := s.service.Run(ctx, jobID); err != nil {
			common.Logger().Warn("api: background run aborted", "job", jobID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "started"})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id required"))
		return
	}
	status, err := s.service.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, jobErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleJobDraft(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id required"))
		return
	}
	draft, err := s.service.Draft(r.Context(), jobID)
	if err != nil {
		writeError(w, jobErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id required"))
		return
	}
	var req struct {
		Indices *[]int `json:"indices"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	var indices []int
	if req.Indices != nil {
		indices = *req.Indices
	}
	resp, err := s.service.Approve(r.Context(), jobID, indices)
	if err != nil {
		if errors.Is(err, workflow.ErrAlreadyPublished) {
			// Idempotent retry: report the original result.
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeError(w, jobErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePublished(w http.ResponseWriter, r *http.Request) {
	scopeID := strings.TrimSpace(chi.URLParam(r, "scopeID"))
	if scopeID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("scope id required"))
		return
	}
	items, err := s.service.Published(r.Context(), scopeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scope_id": scopeID, "items": items})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := common.LogEntries()
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}

func jobErrorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrNotAwaitingReview):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrApprovalInFlight):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrJobExists):
		return http.StatusConflict
	default:
		if strings.Contains(err.Error(), "required") {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}
