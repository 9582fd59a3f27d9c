package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/lessonforge/lessonforge/internal/common"
	"github.com/lessonforge/lessonforge/internal/extract"
	"github.com/lessonforge/lessonforge/internal/job"
	"github.com/lessonforge/lessonforge/internal/vector"
)

// runIngestion reads the source material, chunks it, embeds every chunk and
// indexes the result in a job-scoped collection. The stored section carries
// the collection handle and a bounded excerpt so generation can run without
// re-reading the source.
func (e *Engine) runIngestion(ctx context.Context, state *job.State) error {
	text, err := e.extractor.Extract(ctx, state.SourceRef)
	if err != nil {
		return fmt.Errorf("extract source %q: %w", state.SourceRef, err)
	}
	chunks := extract.ChunkText(text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return errors.New("source produced no content")
	}

	contents := make([]string, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Content
	}
	vectors, err := e.provider.Embed(ctx, contents)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	collection := vector.JobCollectionName(state.JobID)
	if err := e.vector.EnsureCollection(ctx, collection, len(vectors[0])); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	if err := e.vector.UpsertChunks(ctx, collection, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	state.Ingestion = &job.IngestionResult{
		Collection: collection,
		ChunkCount: len(chunks),
		Excerpt:    truncateRunes(text, e.cfg.ExcerptLimit),
	}
	common.Logger().Info("workflow: ingested source",
		"job", state.JobID, "chunks", len(chunks), "collection", collection)
	return nil
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
