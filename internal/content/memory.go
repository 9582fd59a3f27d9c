package content

import (
	"context"
	"strings"
	"sync"
)

// MemoryPublisher keeps published content in process memory. It backs tests
// and the database-less development mode.
type MemoryPublisher struct {
	mu     sync.RWMutex
	scopes map[string][]PublishedItem
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{scopes: make(map[string][]PublishedItem)}
}

func (p *MemoryPublisher) ReplacePublished(ctx context.Context, scopeID string, items []PublishedItem) ([]string, error) {
	scope := strings.TrimSpace(scopeID)
	stored := make([]PublishedItem, len(items))
	ids := make([]string, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			item.ID = NewItemID()
		}
		item.ScopeID = scope
		stored[i] = item
		ids[i] = item.ID
	}
	p.mu.Lock()
	p.scopes[scope] = stored
	p.mu.Unlock()
	return ids, nil
}

func (p *MemoryPublisher) PublishedForScope(ctx context.Context, scopeID string) ([]PublishedItem, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]PublishedItem(nil), p.scopes[strings.TrimSpace(scopeID)]...), nil
}

var _ Publisher = (*MemoryPublisher)(nil)
