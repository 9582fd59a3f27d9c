package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lessonforge/lessonforge/internal/content"
)

// ContentStore implements content.Publisher on the shared SQLite database.
type ContentStore struct {
	store *Store
}

func NewContentStore(store *Store) *ContentStore {
	return &ContentStore{store: store}
}

// ReplacePublished swaps the scope's published content for the provided
// items inside a single transaction: either every item is visible afterwards
// or the previous contents remain untouched.
func (s *ContentStore) ReplacePublished(ctx context.Context, scopeID string, items []content.PublishedItem) ([]string, error) {
	if s == nil || s.store == nil || s.store.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	scope := strings.TrimSpace(scopeID)
	if scope == "" {
		return nil, fmt.Errorf("scope id required")
	}
	ids := make([]string, 0, len(items))
	err := withTx(ctx, s.store.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM published_items WHERE scope_id = ?`, scope); err != nil {
			return fmt.Errorf("clear scope: %w", err)
		}
		for _, item := range items {
			if strings.TrimSpace(item.ID) == "" {
				item.ID = content.NewItemID()
			}
			item.ScopeID = scope
			payload, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("marshal published item: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO published_items (id, scope_id, job_id, position, payload)
                                 VALUES (?, ?, ?, ?, ?)`,
				item.ID, scope, item.JobID, item.Position, string(payload),
			); err != nil {
				return fmt.Errorf("insert published item: %w", err)
			}
			ids = append(ids, item.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PublishedForScope returns the scope's committed items in position order.
func (s *ContentStore) PublishedForScope(ctx context.Context, scopeID string) ([]content.PublishedItem, error) {
	if s == nil || s.store == nil || s.store.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	scope := strings.TrimSpace(scopeID)
	payloads := []string{}
	if err := s.store.db.SelectContext(ctx, &payloads,
		`SELECT payload FROM published_items WHERE scope_id = ? ORDER BY position`, scope); err != nil {
		return nil, fmt.Errorf("select published items: %w", err)
	}
	items := make([]content.PublishedItem, 0, len(payloads))
	for _, payload := range payloads {
		var item content.PublishedItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("unmarshal published item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

var _ content.Publisher = (*ContentStore)(nil)
