package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/extract"
	"github.com/lessonforge/lessonforge/internal/job"
	"github.com/lessonforge/lessonforge/internal/llm/providers"
	"github.com/lessonforge/lessonforge/internal/vector"
)

// transition names the phase a job moves to when its current handler
// succeeds or fails.
type transition struct {
	onSuccess job.Phase
	onFailure job.Phase
}

// transitions is the complete workflow graph. HumanReview has no automatic
// successor: the engine pauses there until a reviewer approves, and approval
// routes through its entry below. Publish and Error are terminal and never
// appear as keys.
var transitions = map[job.Phase]transition{
	job.PhaseIngestion:   {onSuccess: job.PhaseGeneration, onFailure: job.PhaseError},
	job.PhaseGeneration:  {onSuccess: job.PhaseHumanReview, onFailure: job.PhaseError},
	job.PhaseHumanReview: {onSuccess: job.PhasePublish, onFailure: job.PhaseError},
}

// Engine drives a job through the workflow graph, checkpointing after every
// phase. It holds no per-job state of its own: everything lives in the job
// store, so any engine instance can resume any job.
type Engine struct {
	store     job.Store
	extractor extract.Extractor
	vector    vector.Store
	provider  providers.Provider
	publisher content.Publisher
	cfg       Config
}

func NewEngine(store job.Store, extractor extract.Extractor, vectorStore vector.Store, provider providers.Provider, publisher content.Publisher, cfg Config) *Engine {
	return &Engine{
		store:     store,
		extractor: extractor,
		vector:    vectorStore,
		provider:  provider,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
	}
}

// Run advances the job until it reaches the HumanReview pause or a terminal
// phase. Handler failures are routed into the Error phase and checkpointed;
// they do not surface as a return error. The returned error covers engine
// infrastructure only: a missing job, a failed checkpoint write, or a version
// conflict when another engine owns the job.
func (e *Engine) Run(ctx context.Context, jobID string) error {
	for {
		state, err := e.store.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("load job %s: %w", jobID, err)
		}
		if state.Phase.Terminal() {
			return nil
		}
		if state.Phase == job.PhaseHumanReview {
			return nil
		}
		route, ok := transitions[state.Phase]
		if !ok {
			return fmt.Errorf("no transition from phase %s", state.Phase)
		}

		next := state.Clone()
		handlerErr := e.runPhase(ctx, &next)
		if handlerErr != nil {
			next.Phase = route.onFailure
			next.Failure = &job.FailureInfo{Phase: state.Phase, Message: handlerErr.Error()}
			common.Logger().Warn("workflow: phase failed",
				"job", jobID, "phase", state.Phase, "error", handlerErr)
		} else {
			next.Phase = route.onSuccess
		}

		if err := e.store.Update(ctx, next); err != nil {
			if errors.Is(err, job.ErrVersionConflict) {
				common.Logger().Warn("workflow: lost job to concurrent writer",
					"job", jobID, "phase", state.Phase)
			}
			return fmt.Errorf("checkpoint job %s: %w", jobID, err)
		}
		common.Logger().Info("workflow: phase complete",
			"job", jobID, "from", state.Phase, "to", next.Phase)
	}
}

func (e *Engine) runPhase(ctx context.Context, state *job.State) error {
	switch state.Phase {
	case job.PhaseIngestion:
		return e.runIngestion(ctx, state)
	case job.PhaseGeneration:
		return e.runGeneration(ctx, state)
	default:
		return fmt.Errorf("phase %s has no handler", state.Phase)
	}
}
