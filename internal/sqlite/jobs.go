package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lessonforge/lessonforge/internal/job"
)

// JobStore implements job.Store on the shared SQLite database, using
// optimistic concurrency so multiple orchestrator processes can share job
// state safely.
type JobStore struct {
	store *Store
}

func NewJobStore(store *Store) *JobStore {
	return &JobStore{store: store}
}

func (s *JobStore) Create(ctx context.Context, state job.State) error {
	if s == nil || s.store == nil || s.store.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid job state: %w", err)
	}
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal job snapshot: %w", err)
	}
	_, err = s.store.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, version, phase, snapshot, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?)`,
		state.JobID, state.Version, string(state.Phase), string(snapshot),
		state.CreatedAt.UTC().Format(time.RFC3339Nano),
		state.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", job.ErrJobExists, state.JobID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (job.State, error) {
	if s == nil || s.store == nil || s.store.db == nil {
		return job.State{}, errors.New("sqlite store not initialised")
	}
	trimmed := strings.TrimSpace(jobID)
	var snapshot string
	err := s.store.db.GetContext(ctx, &snapshot, `SELECT snapshot FROM jobs WHERE job_id = ?`, trimmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job.State{}, fmt.Errorf("%w: %s", job.ErrJobNotFound, trimmed)
		}
		return job.State{}, fmt.Errorf("select job: %w", err)
	}
	var state job.State
	if err := json.Unmarshal([]byte(snapshot), &state); err != nil {
		return job.State{}, fmt.Errorf("unmarshal job snapshot: %w", err)
	}
	return state, nil
}

func (s *JobStore) Update(ctx context.Context, state job.State) error {
	if s == nil || s.store == nil || s.store.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid job state: %w", err)
	}
	next := state.Clone()
	next.Version = state.Version + 1
	next.UpdatedAt = time.Now().UTC()
	if !next.UpdatedAt.After(state.UpdatedAt) {
		next.UpdatedAt = state.UpdatedAt.Add(time.Microsecond)
	}
	snapshot, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal job snapshot: %w", err)
	}
	result, err := s.store.db.ExecContext(ctx,
		`UPDATE jobs SET version = ?, phase = ?, snapshot = ?, updated_at = ?
                 WHERE job_id = ? AND version = ?`,
		next.Version, string(next.Phase), string(snapshot),
		next.UpdatedAt.Format(time.RFC3339Nano),
		state.JobID, state.Version,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := s.store.db.GetContext(ctx, &exists, `SELECT COUNT(1) FROM jobs WHERE job_id = ?`, state.JobID); err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", job.ErrJobNotFound, state.JobID)
		}
		return fmt.Errorf("%w: %s at version %d", job.ErrVersionConflict, state.JobID, state.Version)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}

var _ job.Store = (*JobStore)(nil)
