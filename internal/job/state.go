package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/lessonforge/lessonforge/internal/draft"
)

// Phase is a job's current stage in the fixed workflow graph.
type Phase string

const (
	PhaseIngestion   Phase = "ingestion"
	PhaseGeneration  Phase = "generation"
	PhaseHumanReview Phase = "human_review"
	PhasePublish     Phase = "publish"
	PhaseError       Phase = "error"
)

// Terminal reports whether no further phase handler may ever run.
// HumanReview is an execution pause, not a data-terminal state.
func (p Phase) Terminal() bool {
	return p == PhasePublish || p == PhaseError
}

func (p Phase) Valid() bool {
	switch p {
	case PhaseIngestion, PhaseGeneration, PhaseHumanReview, PhasePublish, PhaseError:
		return true
	}
	return false
}

// Requirements is the caller-supplied, immutable description of the desired
// output.
type Requirements struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty,omitempty"`
	Count      int    `json:"count,omitempty"`
	Language   string `json:"language,omitempty"`
	ItemKind   string `json:"item_kind,omitempty"`
}

// IngestionResult is the section populated when Ingestion succeeds.
type IngestionResult struct {
	Collection string `json:"collection"`
	ChunkCount int    `json:"chunk_count"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// DraftResult is the section populated when Generation completes. It is
// write-once per generation attempt: a retry replaces it wholesale.
type DraftResult struct {
	Items       []draft.Item `json:"items"`
	RepairLevel string       `json:"repair_level"`
	Note        string       `json:"note,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ApprovalResult records the reviewer's selection.
type ApprovalResult struct {
	Indices    []int     `json:"indices"`
	ApprovedAt time.Time `json:"approved_at"`
}

// PublishResult records the committed output of a successful Publish.
type PublishResult struct {
	ItemIDs     []string  `json:"item_ids"`
	PublishedAt time.Time `json:"published_at"`
}

// FailureInfo is present only while the job sits in the Error phase.
type FailureInfo struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message"`
}

// State is the checkpointed snapshot of one job. The per-phase sections are
// tagged: only the sections the current phase permits may be populated, which
// Validate enforces before every write.
type State struct {
	JobID        string       `json:"job_id" db:"job_id"`
	OwnerID      string       `json:"owner_id"`
	ScopeID      string       `json:"scope_id"`
	SourceRef    string       `json:"source_ref"`
	Requirements Requirements `json:"requirements"`

	Phase   Phase `json:"phase"`
	Version int64 `json:"version"`

	Ingestion *IngestionResult `json:"ingestion,omitempty"`
	Draft     *DraftResult     `json:"draft,omitempty"`
	Approval  *ApprovalResult  `json:"approval,omitempty"`
	Publish   *PublishResult   `json:"publish,omitempty"`
	Failure   *FailureInfo     `json:"failure,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState builds the initial snapshot for a freshly created job.
func NewState(jobID, ownerID, scopeID, sourceRef string, reqs Requirements) State {
	now := time.Now().UTC()
	return State{
		JobID:        strings.TrimSpace(jobID),
		OwnerID:      strings.TrimSpace(ownerID),
		ScopeID:      strings.TrimSpace(scopeID),
		SourceRef:    strings.TrimSpace(sourceRef),
		Requirements: reqs,
		Phase:        PhaseIngestion,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate rejects snapshots whose sections do not match their phase, making
// the illegal combinations the workflow graph forbids unstorable.
func (s State) Validate() error {
	if strings.TrimSpace(s.JobID) == "" {
		return fmt.Errorf("job id required")
	}
	if !s.Phase.Valid() {
		return fmt.Errorf("invalid phase %q", s.Phase)
	}
	switch s.Phase {
	case PhaseIngestion:
		if s.Ingestion != nil || s.Draft != nil || s.Approval != nil || s.Publish != nil {
			return fmt.Errorf("phase %s permits no result sections", s.Phase)
		}
	case PhaseGeneration:
		if s.Ingestion == nil {
			return fmt.Errorf("phase %s requires an ingestion result", s.Phase)
		}
		if s.Draft != nil || s.Approval != nil || s.Publish != nil {
			return fmt.Errorf("phase %s permits no draft or publish sections", s.Phase)
		}
	case PhaseHumanReview:
		if s.Ingestion == nil || s.Draft == nil {
			return fmt.Errorf("phase %s requires ingestion and draft results", s.Phase)
		}
		if s.Publish != nil {
			return fmt.Errorf("phase %s permits no publish section", s.Phase)
		}
	case PhasePublish:
		if s.Draft == nil || s.Approval == nil || s.Publish == nil {
			return fmt.Errorf("phase %s requires draft, approval and publish results", s.Phase)
		}
	case PhaseError:
		if s.Failure == nil {
			return fmt.Errorf("phase %s requires failure info", s.Phase)
		}
	}
	if s.Phase != PhaseError && s.Failure != nil {
		return fmt.Errorf("failure info only valid in phase %s", PhaseError)
	}
	return nil
}

// Clone returns a deep copy of the snapshot so callers can mutate it without
// aliasing stored state.
func (s State) Clone() State {
	clone := s
	if s.Ingestion != nil {
		section := *s.Ingestion
		clone.Ingestion = &section
	}
	if s.Draft != nil {
		section := *s.Draft
		section.Items = append([]draft.Item(nil), s.Draft.Items...)
		clone.Draft = &section
	}
	if s.Approval != nil {
		section := *s.Approval
		section.Indices = append([]int(nil), s.Approval.Indices...)
		clone.Approval = &section
	}
	if s.Publish != nil {
		section := *s.Publish
		section.ItemIDs = append([]string(nil), s.Publish.ItemIDs...)
		clone.Publish = &section
	}
	if s.Failure != nil {
		section := *s.Failure
		clone.Failure = &section
	}
	return clone
}
