package job

import (
	"context"
	"errors"

	nanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrJobExists       = errors.New("job already exists")
	ErrJobNotFound     = errors.New("job not found")
	ErrVersionConflict = errors.New("job version conflict")
)

// Store is the durable checkpoint store for job snapshots. It is the sole
// source of truth: the workflow engine keeps no state that outlives a call.
//
// Update performs a compare-and-swap on State.Version: the write succeeds
// only when the stored version equals the snapshot's version, and the stored
// version is advanced by one. ErrVersionConflict signals that another
// orchestrator instance owns the job.
type Store interface {
	Create(ctx context.Context, state State) error
	Get(ctx context.Context, jobID string) (State, error)
	Update(ctx context.Context, state State) error
}

const jobIDLength = 14

// NewJobID generates an opaque job identifier for callers that do not assign
// their own.
func NewJobID() (string, error) {
	return nanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", jobIDLength)
}
