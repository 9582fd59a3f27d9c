package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/draft"
	"github.com/lessonforge/lessonforge/internal/job"
	"github.com/lessonforge/lessonforge/internal/llm/providers"
)

// runGeneration retrieves the most relevant source passages for the job's
// requirements, asks the provider for a draft and runs whatever comes back
// through the repair cascade. Only a transport failure fails the phase: a
// malformed response still yields a draft for the reviewer, tagged with the
// repair level it needed. A retry replaces the prior draft wholesale.
func (e *Engine) runGeneration(ctx context.Context, state *job.State) error {
	if state.Ingestion == nil {
		return fmt.Errorf("generation requires an ingestion result")
	}

	count := state.Requirements.Count
	if count <= 0 {
		count = e.cfg.DefaultItemCount
	}

	passages := e.retrievePassages(ctx, state)
	messages := buildDraftMessages(state.Requirements, count, passages)
	raw, err := e.provider.Chat(ctx, messages)
	if err != nil {
		return fmt.Errorf("draft request: %w", err)
	}

	result := draft.Repair(raw)
	if result.Degraded() {
		common.Logger().Warn("workflow: draft needed repair",
			"job", state.JobID, "level", result.Level.String(), "note", result.Note)
	}
	if len(result.Items) != count {
		common.Logger().Warn("workflow: draft item count mismatch",
			"job", state.JobID, "requested", count, "got", len(result.Items))
	}

	state.Draft = &job.DraftResult{
		Items:       result.Items,
		RepairLevel: result.Level.String(),
		Note:        result.Note,
		GeneratedAt: time.Now().UTC(),
	}
	state.Approval = nil
	return nil
}

// retrievePassages queries the job's collection for the passages closest to
// the requirements. Retrieval is best-effort: on any failure it falls back to
// the ingestion excerpt so a flaky vector store cannot fail the phase.
func (e *Engine) retrievePassages(ctx context.Context, state *job.State) []string {
	query := buildRetrievalQuery(state.Requirements)
	vectors, err := e.provider.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		common.Logger().Warn("workflow: query embedding failed, using excerpt",
			"job", state.JobID, "error", err)
		return excerptPassages(state)
	}
	results, err := e.vector.Query(ctx, state.Ingestion.Collection, vectors[0], e.cfg.TopK)
	if err != nil || len(results) == 0 {
		common.Logger().Warn("workflow: retrieval failed, using excerpt",
			"job", state.JobID, "error", err)
		return excerptPassages(state)
	}
	passages := make([]string, 0, len(results))
	for _, res := range results {
		if content := strings.TrimSpace(res.Content); content != "" {
			passages = append(passages, content)
		}
	}
	if len(passages) == 0 {
		return excerptPassages(state)
	}
	return passages
}

func excerptPassages(state *job.State) []string {
	if state.Ingestion == nil || strings.TrimSpace(state.Ingestion.Excerpt) == "" {
		return nil
	}
	return []string{state.Ingestion.Excerpt}
}

func buildRetrievalQuery(reqs job.Requirements) string {
	parts := make([]string, 0, 3)
	if reqs.Topic != "" {
		parts = append(parts, reqs.Topic)
	}
	if reqs.ItemKind != "" {
		parts = append(parts, reqs.ItemKind)
	}
	if reqs.Difficulty != "" {
		parts = append(parts, reqs.Difficulty)
	}
	if len(parts) == 0 {
		return "lesson content"
	}
	return strings.Join(parts, " ")
}

func buildDraftMessages(reqs job.Requirements, count int, passages []string) []providers.Message {
	systemPrompt := "You are a content author for a tutoring platform who writes practice items grounded strictly in the supplied source material." +
		" Respond with a single JSON object of the form {\"items\": [...]} where each item has the fields title, prompt, answer, choices (optional) and explanation (optional)." +
		" Output nothing outside the JSON object."
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Write %d practice items.\n", count))
	if reqs.Topic != "" {
		builder.WriteString("Topic: ")
		builder.WriteString(reqs.Topic)
		builder.WriteString("\n")
	}
	if reqs.Difficulty != "" {
		builder.WriteString("Difficulty: ")
		builder.WriteString(reqs.Difficulty)
		builder.WriteString("\n")
	}
	if reqs.ItemKind != "" {
		builder.WriteString("Item kind: ")
		builder.WriteString(reqs.ItemKind)
		builder.WriteString("\n")
	}
	if reqs.Language != "" {
		builder.WriteString("Language: ")
		builder.WriteString(reqs.Language)
		builder.WriteString("\n")
	}
	if len(passages) > 0 {
		builder.WriteString("\nSource material:\n")
		for _, passage := range passages {
			builder.WriteString(passage)
			builder.WriteString("\n---\n")
		}
	}
	return []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: builder.String()},
	}
}
