package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/lessonforge/lessonforge/internal/common"
)

var (
	ErrSourceNotFound   = errors.New("source material not found")
	ErrSourceUnreadable = errors.New("source material unreadable")
)

// Extractor turns a caller-owned source reference into raw text.
type Extractor interface {
	Extract(ctx context.Context, sourceRef string) (string, error)
}

// FileExtractor reads plain-text teaching material from the local
// filesystem. Binary uploads are handled upstream by a conversion service;
// by the time a job references a file it is expected to be text.
type FileExtractor struct {
	// Root, when set, confines source references to a directory subtree.
	Root string
}

func NewFileExtractor(root string) *FileExtractor {
	return &FileExtractor{Root: strings.TrimSpace(root)}
}

func (e *FileExtractor) Extract(ctx context.Context, sourceRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(sourceRef)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty source reference", ErrSourceNotFound)
	}
	path := trimmed
	if e.Root != "" {
		abs, err := filepath.Abs(filepath.Join(e.Root, filepath.Clean("/"+trimmed)))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
		}
		path = abs
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, trimmed)
		}
		return "", fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid text", ErrSourceUnreadable, trimmed)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrSourceUnreadable, trimmed)
	}
	common.Logger().Debug("extract: source read", "source", trimmed, "bytes", len(data))
	return text, nil
}

var _ Extractor = (*FileExtractor)(nil)
