package content

import (
	"context"

	"github.com/google/uuid"
)

// PublishedItem is the persisted shape of one approved content item inside a
// target scope (a course or unit the output joins).
type PublishedItem struct {
	ID          string   `json:"id" db:"id"`
	ScopeID     string   `json:"scope_id" db:"scope_id"`
	JobID       string   `json:"job_id" db:"job_id"`
	Position    int      `json:"position" db:"position"`
	Title       string   `json:"title" db:"title"`
	Prompt      string   `json:"prompt,omitempty" db:"prompt"`
	Answer      string   `json:"answer,omitempty" db:"answer"`
	Explanation string   `json:"explanation,omitempty" db:"-"`
	Choices     []string `json:"choices,omitempty" db:"-"`
}

// Publisher commits approved items to a scope. ReplacePublished must be
// atomic: it replaces whatever the scope previously held, and on failure the
// scope is left exactly as it was. Replace semantics keep a retried publish
// from duplicating content.
type Publisher interface {
	ReplacePublished(ctx context.Context, scopeID string, items []PublishedItem) ([]string, error)
	PublishedForScope(ctx context.Context, scopeID string) ([]PublishedItem, error)
}

// NewItemID generates the identifier a published item carries for the rest
// of its life.
func NewItemID() string {
	return uuid.NewString()
}
