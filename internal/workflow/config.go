package workflow

import (
	"os"
	"strconv"
	"strings"

	"github.com/lessonforge/lessonforge/internal/common"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 120
	defaultTopK         = 10
	defaultExcerptLimit = 5000
	defaultItemCount    = 5
)

// Config carries the engine's tuning knobs. Zero values fall back to the
// defaults above.
type Config struct {
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	ExcerptLimit     int
	DefaultItemCount int
}

func LoadConfig() Config {
	return Config{
		ChunkSize:        loadEnvInt("LESSONFORGE_CHUNK_SIZE", defaultChunkSize),
		ChunkOverlap:     loadEnvInt("LESSONFORGE_CHUNK_OVERLAP", defaultChunkOverlap),
		TopK:             loadEnvInt("LESSONFORGE_TOP_K", defaultTopK),
		ExcerptLimit:     loadEnvInt("LESSONFORGE_EXCERPT_LIMIT", defaultExcerptLimit),
		DefaultItemCount: loadEnvInt("LESSONFORGE_ITEM_COUNT", defaultItemCount),
	}
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = defaultChunkOverlap
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.ExcerptLimit <= 0 {
		c.ExcerptLimit = defaultExcerptLimit
	}
	if c.DefaultItemCount <= 0 {
		c.DefaultItemCount = defaultItemCount
	}
	return c
}

func loadEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		common.Logger().Warn("workflow: invalid config value", "key", key, "value", value, "error", err)
		return fallback
	}
	if parsed <= 0 {
		return fallback
	}
	return parsed
}
