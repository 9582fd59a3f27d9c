package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lessonforge/lessonforge/internal/draft"
)

func reviewableState(jobID string) State {
	state := NewState(jobID, "teacher-1", "course-7", "/uploads/lesson.md", Requirements{Topic: "cells", Count: 3})
	state.Phase = PhaseHumanReview
	state.Ingestion = &IngestionResult{Collection: "job_x", ChunkCount: 4, Excerpt: "cells..."}
	state.Draft = &DraftResult{
		Items:       []draft.Item{{Title: "A"}, {Title: "B"}},
		RepairLevel: "strict",
		GeneratedAt: time.Now().UTC(),
	}
	return state
}

func TestValidateRejectsIllegalSections(t *testing.T) {
	state := NewState("j1", "o", "s", "ref", Requirements{Topic: "t"})
	state.Draft = &DraftResult{Items: []draft.Item{{Title: "A"}}}
	if err := state.Validate(); err == nil {
		t.Fatal("expected draft section to be rejected in ingestion phase")
	}

	state = reviewableState("j2")
	state.Publish = &PublishResult{ItemIDs: []string{"x"}}
	if err := state.Validate(); err == nil {
		t.Fatal("expected publish section to be rejected in human review phase")
	}

	state = reviewableState("j3")
	state.Phase = PhaseError
	if err := state.Validate(); err == nil {
		t.Fatal("expected error phase without failure info to be rejected")
	}
}

func TestValidateAcceptsLegalStates(t *testing.T) {
	state := NewState("j1", "o", "s", "ref", Requirements{Topic: "t"})
	if err := state.Validate(); err != nil {
		t.Fatalf("fresh state should validate: %v", err)
	}
	if err := reviewableState("j2").Validate(); err != nil {
		t.Fatalf("review state should validate: %v", err)
	}
}

func TestMemoryStoreCreateRejectsDuplicates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	state := NewState("dup", "o", "s", "ref", Requirements{Topic: "t"})
	if err := store.Create(ctx, state); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := store.Create(ctx, state); !errors.Is(err, ErrJobExists) {
		t.Fatalf("expected ErrJobExists, got %v", err)
	}
}

func TestMemoryStoreCompareAndSwap(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Create(ctx, reviewableState("cas")); err != nil {
		t.Fatal(err)
	}
	first, err := store.Get(ctx, "cas")
	if err != nil {
		t.Fatal(err)
	}
	second := first.Clone()

	first.Approval = &ApprovalResult{Indices: []int{0}, ApprovedAt: time.Now().UTC()}
	first.Publish = &PublishResult{ItemIDs: []string{"id-0"}, PublishedAt: time.Now().UTC()}
	first.Phase = PhasePublish
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	second.Phase = PhaseError
	second.Ingestion = nil
	second.Draft = nil
	second.Failure = &FailureInfo{Phase: PhaseGeneration, Message: "boom"}
	if err := store.Update(ctx, second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	stored, err := store.Get(ctx, "cas")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Phase != PhasePublish {
		t.Fatalf("stale writer overwrote state: phase %s", stored.Phase)
	}
	if stored.Version != first.Version+1 {
		t.Fatalf("version did not advance: %d", stored.Version)
	}
}

func TestMemoryStoreUpdatedAtMonotonic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	state := reviewableState("mono")
	if err := store.Create(ctx, state); err != nil {
		t.Fatal(err)
	}
	previous := state.UpdatedAt
	for i := 0; i < 3; i++ {
		current, err := store.Get(ctx, "mono")
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Update(ctx, current); err != nil {
			t.Fatal(err)
		}
		updated, err := store.Get(ctx, "mono")
		if err != nil {
			t.Fatal(err)
		}
		if !updated.UpdatedAt.After(previous) {
			t.Fatalf("updated_at did not advance on write %d", i)
		}
		previous = updated.UpdatedAt
	}
}
