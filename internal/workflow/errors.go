package workflow

import (
	"errors"

	"github.com/lessonforge/lessonforge/internal/job"
)

var (
	// ErrJobExists and ErrJobNotFound surface the store sentinels so API
	// callers only need this package's error set.
	ErrJobExists   = job.ErrJobExists
	ErrJobNotFound = job.ErrJobNotFound

	ErrNotAwaitingReview = errors.New("job not awaiting review")
	ErrAlreadyPublished  = errors.New("job already published")
	ErrApprovalInFlight  = errors.New("approval already in flight")
	ErrNoDraft           = errors.New("no draft available")
)
