package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same compare-and-swap contract
// as the durable implementation. It backs tests and zero-configuration runs;
// it does not survive restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]State)}
}

func (s *MemoryStore) Create(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid job state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[state.JobID]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, state.JobID)
	}
	s.jobs[state.JobID] = state.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	trimmed := strings.TrimSpace(jobID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.jobs[trimmed]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrJobNotFound, trimmed)
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid job state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[state.JobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, state.JobID)
	}
	if current.Version != state.Version {
		return fmt.Errorf("%w: have %d, want %d", ErrVersionConflict, current.Version, state.Version)
	}
	next := state.Clone()
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	if !next.UpdatedAt.After(current.UpdatedAt) {
		next.UpdatedAt = current.UpdatedAt.Add(time.Microsecond)
	}
	s.jobs[state.JobID] = next
	return nil
}

var _ Store = (*MemoryStore)(nil)
