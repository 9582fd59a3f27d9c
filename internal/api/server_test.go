package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/extract"
	"github.com/lessonforge/lessonforge/internal/job"
	"github.com/lessonforge/lessonforge/internal/llm/providers"
	"github.com/lessonforge/lessonforge/internal/vector"
	"github.com/lessonforge/lessonforge/internal/workflow"
)

type stubProvider struct {
	response string
}

func (p *stubProvider) Chat(ctx context.Context, messages []providers.Message) (string, error) {
	return p.response, nil
}

func (p *stubProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i := range input {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, nil
}

func (p *stubProvider) Name() string { return "stub" }

type stubVector struct{}

func (stubVector) Available() bool { return true }

func (stubVector) EnsureCollection(ctx context.Context, collection string, dim int) error {
	return nil
}

func (stubVector) UpsertChunks(ctx context.Context, collection string, chunks []extract.Chunk, vectors [][]float32) error {
	return nil
}

func (stubVector) Query(ctx context.Context, collection string, vec []float32, limit int) ([]vector.SearchResult, error) {
	return nil, nil
}

type memoryPublisher struct {
	scopes map[string][]content.PublishedItem
}

func (p *memoryPublisher) ReplacePublished(ctx context.Context, scopeID string, items []content.PublishedItem) ([]string, error) {
	if p.scopes == nil {
		p.scopes = make(map[string][]content.PublishedItem)
	}
	p.scopes[scopeID] = append([]content.PublishedItem(nil), items...)
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids, nil
}

func (p *memoryPublisher) PublishedForScope(ctx context.Context, scopeID string) ([]content.PublishedItem, error) {
	return append([]content.PublishedItem(nil), p.scopes[scopeID]...), nil
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	sourceRoot := t.TempDir()
	sourcePath := filepath.Join(sourceRoot, "unit.txt")
	if err := os.WriteFile(sourcePath, []byte("Mitosis is how cells divide. The phases are prophase, metaphase, anaphase and telophase."), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	provider := &stubProvider{response: `{"items": [
          {"title": "Mitosis", "prompt": "What is mitosis?", "answer": "Cell division"},
          {"title": "Phases", "prompt": "Name the phases", "answer": "PMAT"}
        ]}`}
	store := job.NewMemoryStore()
	publisher := &memoryPublisher{}
	engine := workflow.NewEngine(store, &extract.FileExtractor{Root: sourceRoot}, stubVector{}, provider, publisher, workflow.Config{})
	service := workflow.NewService(store, engine, publisher)

	srv, err := NewServer(service)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, "unit.txt"
}

func createJob(t *testing.T, srv *Server, jobID, sourceRef string) {
	t.Helper()
	body, _ := json.Marshal(workflow.StartRequest{
		JobID:     jobID,
		OwnerID:   "teacher-1",
		ScopeID:   "course-1",
		SourceRef: sourceRef,
		Requirements: job.Requirements{
			Topic: "mitosis",
			Count: 2,
		},
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create job status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func waitForPhase(t *testing.T, srv *Server, jobID string, want job.Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status request = %d, body %s", rec.Code, rec.Body.String())
		}
		var status workflow.StatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Phase == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached phase %s", jobID, want)
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	srv, sourceRef := newTestServer(t)

	createJob(t, srv, "job-http", sourceRef)
	waitForPhase(t, srv, "job-http", job.PhaseHumanReview)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/job-http/draft", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("draft status = %d, body %s", rec.Code, rec.Body.String())
	}
	var draft workflow.DraftResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if len(draft.Items) != 2 {
		t.Fatalf("draft items = %d, want 2", len(draft.Items))
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/job-http/approve", bytes.NewReader([]byte(`{"indices": [0]}`))))
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", rec.Code, rec.Body.String())
	}
	var approved workflow.ApproveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &approved); err != nil {
		t.Fatalf("decode approve: %v", err)
	}
	if len(approved.ItemIDs) != 1 {
		t.Fatalf("approved ids = %d, want 1", len(approved.ItemIDs))
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/scopes/course-1/published", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("published status = %d, body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Items []content.PublishedItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode published: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].Title != "Mitosis" {
		t.Fatalf("unexpected published items: %+v", payload.Items)
	}
}

func TestApproveRetryReturnsOriginalResult(t *testing.T) {
	srv, sourceRef := newTestServer(t)

	createJob(t, srv, "job-retry", sourceRef)
	waitForPhase(t, srv, "job-retry", job.PhaseHumanReview)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/job-retry/approve", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first approve = %d, body %s", rec.Code, rec.Body.String())
	}
	var first workflow.ApproveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode first approve: %v", err)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/job-retry/approve", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("retry approve = %d, body %s", rec.Code, rec.Body.String())
	}
	var retry workflow.ApproveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &retry); err != nil {
		t.Fatalf("decode retry approve: %v", err)
	}
	if fmt.Sprint(retry.ItemIDs) != fmt.Sprint(first.ItemIDs) {
		t.Fatalf("retry returned different ids: %v vs %v", retry.ItemIDs, first.ItemIDs)
	}
}

func TestCreateJobConflicts(t *testing.T) {
	srv, sourceRef := newTestServer(t)

	createJob(t, srv, "job-conflict", sourceRef)
	waitForPhase(t, srv, "job-conflict", job.PhaseHumanReview)

	body, _ := json.Marshal(workflow.StartRequest{
		JobID:     "job-conflict",
		ScopeID:   "course-1",
		SourceRef: sourceRef,
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(body)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create = %d, want 409", rec.Code)
	}
}

func TestUnknownJobReturnsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/nope/approve", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("approve = %d, want 404", rec.Code)
	}
}

func TestApproveBeforeReviewConflicts(t *testing.T) {
	srv, sourceRef := newTestServer(t)

	// Create without running the engine so the job stays in ingestion.
	body, _ := json.Marshal(workflow.StartRequest{
		JobID:     "job-early",
		ScopeID:   "course-1",
		SourceRef: sourceRef + ".missing",
	})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create = %d", rec.Code)
	}
	waitForPhase(t, srv, "job-early", job.PhaseError)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/job-early/approve", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("approve on errored job = %d, want 409", rec.Code)
	}
}
