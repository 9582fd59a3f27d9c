package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/job"
)

// publishApproved maps the approved draft items to published content and
// commits them in a single atomic replace. On success it fills the Publish
// section; on failure the scope's previous contents are untouched and the
// caller routes the job to the Error phase.
func (e *Engine) publishApproved(ctx context.Context, state *job.State) error {
	if state.Draft == nil || state.Approval == nil {
		return fmt.Errorf("publish requires draft and approval")
	}
	items := make([]content.PublishedItem, 0, len(state.Approval.Indices))
	for position, index := range state.Approval.Indices {
		if index < 0 || index >= len(state.Draft.Items) {
			return fmt.Errorf("approved index %d out of range", index)
		}
		source := state.Draft.Items[index]
		items = append(items, content.PublishedItem{
			ID:          content.NewItemID(),
			ScopeID:     state.ScopeID,
			JobID:       state.JobID,
			Position:    position,
			Title:       source.Title,
			Prompt:      source.Prompt,
			Answer:      source.Answer,
			Explanation: source.Explanation,
			Choices:     append([]string(nil), source.Choices...),
		})
	}
	ids, err := e.publisher.ReplacePublished(ctx, state.ScopeID, items)
	if err != nil {
		return fmt.Errorf("publish to scope %s: %w", state.ScopeID, err)
	}
	state.Publish = &job.PublishResult{
		ItemIDs:     ids,
		PublishedAt: time.Now().UTC(),
	}
	common.Logger().Info("workflow: published approved items",
		"job", state.JobID, "scope", state.ScopeID, "count", len(ids))
	return nil
}
