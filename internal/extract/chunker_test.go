package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30)
	chunks := ChunkText(text, 100, 20)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Seq != i {
			t.Fatalf("chunk %d has seq %d", i, chunk.Seq)
		}
	}
	// Each window after the first must start with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Content
		tail := prev[len(prev)-20:]
		if !strings.HasPrefix(chunks[i].Content, tail) {
			t.Fatalf("chunk %d does not overlap its predecessor", i)
		}
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("short lesson", 800, 120)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short lesson" {
		t.Fatalf("unexpected chunk content %q", chunks[0].Content)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("   \n\t", 800, 120); chunks != nil {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestFileExtractor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lesson.md")
	if err := os.WriteFile(path, []byte("# Photosynthesis\n\nPlants convert light."), 0o644); err != nil {
		t.Fatal(err)
	}
	extractor := NewFileExtractor("")
	text, err := extractor.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(text, "Photosynthesis") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestFileExtractorMissing(t *testing.T) {
	extractor := NewFileExtractor("")
	_, err := extractor.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.md"))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}
