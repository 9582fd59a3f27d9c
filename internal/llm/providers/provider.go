package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

type Message struct {
	Role    string
	Content string
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Embed(ctx context.Context, input []string) ([][]float32, error)
	Name() string
}

// LocalProvider is the keyless fallback. It drafts nothing useful but lets
// the full pipeline run end to end in development and tests.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	last := messages[len(messages)-1].Content
	return "[local-stub] " + strings.TrimSpace(last), nil
}

func (l *LocalProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	vectors := make([][]float32, len(input))
	for i, text := range input {
		hash := fnv.New32a()
		_, _ = hash.Write([]byte(text))
		sum := hash.Sum32()
		vectors[i] = []float32{
			float32(sum%251) / 251,
			float32(sum%509) / 509,
			float32(sum%1021) / 1021,
		}
	}
	return vectors, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
