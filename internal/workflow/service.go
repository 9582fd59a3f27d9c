package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/draft"
	"github.com/lessonforge/lessonforge/internal/job"
)

// StartRequest describes a new generation job. JobID is optional; when empty
// the service assigns one.
type StartRequest struct {
	JobID        string           `json:"job_id,omitempty"`
	OwnerID      string           `json:"owner_id"`
	ScopeID      string           `json:"scope_id"`
	SourceRef    string           `json:"source_ref"`
	Requirements job.Requirements `json:"requirements"`
}

type StatusResponse struct {
	JobID             string    `json:"job_id"`
	Phase             job.Phase `json:"phase"`
	PausedForApproval bool      `json:"paused_for_approval"`
	Error             string    `json:"error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type DraftResponse struct {
	JobID       string       `json:"job_id"`
	Phase       job.Phase    `json:"phase"`
	InProgress  bool         `json:"in_progress"`
	RepairLevel string       `json:"repair_level,omitempty"`
	Note        string       `json:"note,omitempty"`
	Items       []draft.Item `json:"items,omitempty"`
}

type ApproveResponse struct {
	JobID           string    `json:"job_id"`
	Phase           job.Phase `json:"phase"`
	ApprovedIndices []int     `json:"approved_indices"`
	ItemIDs         []string  `json:"item_ids"`
	PublishedAt     time.Time `json:"published_at"`
}

// Service is the single entry point for job lifecycle operations. It owns the
// approval gate: publishing runs exactly once per job no matter how often or
// how concurrently Approve is called.
type Service struct {
	store     job.Store
	engine    *Engine
	publisher content.Publisher
}

func NewService(store job.Store, engine *Engine, publisher content.Publisher) *Service {
	return &Service{store: store, engine: engine, publisher: publisher}
}

// Create registers the job without running any phase. A duplicate job id is
// rejected before the engine does any work.
func (s *Service) Create(ctx context.Context, req StartRequest) (string, error) {
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		generated, err := job.NewJobID()
		if err != nil {
			return "", fmt.Errorf("generate job id: %w", err)
		}
		jobID = generated
	}
	if strings.TrimSpace(req.ScopeID) == "" {
		return "", fmt.Errorf("scope id required")
	}
	if strings.TrimSpace(req.SourceRef) == "" {
		return "", fmt.Errorf("source ref required")
	}
	state := job.NewState(jobID, req.OwnerID, req.ScopeID, req.SourceRef, req.Requirements)
	if err := s.store.Create(ctx, state); err != nil {
		return "", err
	}
	common.Logger().Info("workflow: job created",
		"job", jobID, "scope", req.ScopeID, "source", req.SourceRef)
	return jobID, nil
}

// Run advances the job to its HumanReview pause or a terminal phase.
func (s *Service) Run(ctx context.Context, jobID string) error {
	return s.engine.Run(ctx, jobID)
}

// Start creates the job and runs it synchronously until it pauses. Handler
// failures are recorded in the job state, not returned: the caller learns
// about them through Status.
func (s *Service) Start(ctx context.Context, req StartRequest) (string, error) {
	jobID, err := s.Create(ctx, req)
	if err != nil {
		return "", err
	}
	if err := s.engine.Run(ctx, jobID); err != nil {
		common.Logger().Warn("workflow: run aborted", "job", jobID, "error", err)
	}
	return jobID, nil
}

func (s *Service) Status(ctx context.Context, jobID string) (StatusResponse, error) {
	state, err := s.store.Get(ctx, jobID)
	if err != nil {
		return StatusResponse{}, err
	}
	resp := StatusResponse{
		JobID:             state.JobID,
		Phase:             state.Phase,
		PausedForApproval: state.Phase == job.PhaseHumanReview,
		UpdatedAt:         state.UpdatedAt,
	}
	if state.Failure != nil {
		resp.Error = fmt.Sprintf("%s: %s", state.Failure.Phase, state.Failure.Message)
	}
	return resp, nil
}

// Draft returns the current draft. A job still working toward HumanReview is
// reported as in progress, which is a status rather than an error.
func (s *Service) Draft(ctx context.Context, jobID string) (DraftResponse, error) {
	state, err := s.store.Get(ctx, jobID)
	if err != nil {
		return DraftResponse{}, err
	}
	resp := DraftResponse{JobID: state.JobID, Phase: state.Phase}
	if state.Draft == nil {
		switch state.Phase {
		case job.PhaseIngestion, job.PhaseGeneration:
			resp.InProgress = true
			return resp, nil
		default:
			return resp, ErrNoDraft
		}
	}
	resp.RepairLevel = state.Draft.RepairLevel
	resp.Note = state.Draft.Note
	resp.Items = append([]draft.Item(nil), state.Draft.Items...)
	return resp, nil
}

// Approve publishes the selected draft items. A nil indices slice approves
// every item; out-of-range indices are dropped. Approving an already
// published job returns the original publish result alongside
// ErrAlreadyPublished so retries stay idempotent.
func (s *Service) Approve(ctx context.Context, jobID string, indices []int) (ApproveResponse, error) {
	state, err := s.store.Get(ctx, jobID)
	if err != nil {
		return ApproveResponse{}, err
	}
	switch state.Phase {
	case job.PhaseHumanReview:
	case job.PhasePublish:
		return publishedResponse(state), ErrAlreadyPublished
	default:
		return ApproveResponse{}, fmt.Errorf("phase %s: %w", state.Phase, ErrNotAwaitingReview)
	}
	if state.Draft == nil {
		return ApproveResponse{}, ErrNoDraft
	}
	if state.Approval != nil {
		// A claim is already checkpointed; its owner is publishing right now.
		return ApproveResponse{}, ErrApprovalInFlight
	}

	// Claim the job through the store before touching the content store.
	// The version bump makes any concurrent approval lose the compare-and-
	// swap here, so ReplacePublished runs exactly once per job.
	approved := normalizeIndices(indices, len(state.Draft.Items))
	claimed := state.Clone()
	claimed.Approval = &job.ApprovalResult{Indices: approved, ApprovedAt: time.Now().UTC()}
	if err := s.store.Update(ctx, claimed); err != nil {
		if errors.Is(err, job.ErrVersionConflict) {
			return s.lostApprovalRace(ctx, jobID)
		}
		return ApproveResponse{}, fmt.Errorf("claim approval: %w", err)
	}
	claimed.Version++ // mirror the store's CAS advance

	next := claimed.Clone()
	if err := s.engine.publishApproved(ctx, &next); err != nil {
		failed := claimed.Clone()
		failed.Phase = job.PhaseError
		failed.Failure = &job.FailureInfo{Phase: job.PhasePublish, Message: err.Error()}
		if uerr := s.store.Update(ctx, failed); uerr != nil {
			common.Logger().Warn("workflow: record publish failure",
				"job", jobID, "error", uerr)
		}
		return ApproveResponse{}, err
	}

	next.Phase = job.PhasePublish
	if err := s.store.Update(ctx, next); err != nil {
		return ApproveResponse{}, fmt.Errorf("checkpoint publish: %w", err)
	}
	return publishedResponse(next), nil
}

// lostApprovalRace resolves a claim that lost the compare-and-swap to a
// concurrent approval: report the winner's result when it already published,
// otherwise the winner is still mid-publish.
func (s *Service) lostApprovalRace(ctx context.Context, jobID string) (ApproveResponse, error) {
	current, err := s.store.Get(ctx, jobID)
	if err != nil {
		return ApproveResponse{}, err
	}
	if current.Phase == job.PhasePublish {
		return publishedResponse(current), ErrAlreadyPublished
	}
	return ApproveResponse{}, ErrApprovalInFlight
}

// Published returns the committed content for a scope in position order.
func (s *Service) Published(ctx context.Context, scopeID string) ([]content.PublishedItem, error) {
	return s.publisher.PublishedForScope(ctx, scopeID)
}

func publishedResponse(state job.State) ApproveResponse {
	resp := ApproveResponse{JobID: state.JobID, Phase: state.Phase}
	if state.Approval != nil {
		resp.ApprovedIndices = append([]int(nil), state.Approval.Indices...)
	}
	if state.Publish != nil {
		resp.ItemIDs = append([]string(nil), state.Publish.ItemIDs...)
		resp.PublishedAt = state.Publish.PublishedAt
	}
	return resp
}

// normalizeIndices resolves the reviewer's selection against the draft size:
// nil means approve everything, out-of-range entries are dropped and
// duplicates collapse to the first occurrence.
func normalizeIndices(indices []int, draftLen int) []int {
	if indices == nil {
		all := make([]int, draftLen)
		for i := range all {
			all[i] = i
		}
		return all
	}
	seen := make(map[int]struct{}, len(indices))
	approved := make([]int, 0, len(indices))
	for _, index := range indices {
		if index < 0 || index >= draftLen {
			continue
		}
		if _, ok := seen[index]; ok {
			continue
		}
		seen[index] = struct{}{}
		approved = append(approved, index)
	}
	return approved
}
