// Package inbox records consumed event ids so redelivered messages are applied once.
package inbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/md-rashed-zaman/pawwalk/libs/db"
)

// Recorder runs fn at most once per event id. The id is recorded only when fn
// succeeds, so a failed event is applied again on redelivery.
type Recorder interface {
	Once(ctx context.Context, eventID, eventType string, fn func(ctx context.Context) error) (bool, error)
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Once inserts the inbox row in a transaction that stays open while fn runs.
// The uncommitted row holds the key, so a concurrent delivery of the same
// event waits and then sees it as a duplicate. fn failing rolls the row back.
func (r *Repository) Once(ctx context.Context, eventID, eventType string, fn func(ctx context.Context) error) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin inbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("inbox insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := fn(ctx); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("inbox commit: %w", err)
	}
	return true, nil
}

// Memory is the Recorder used with the in-process store.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Once(ctx context.Context, eventID, _ string, fn func(ctx context.Context) error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	if err := fn(ctx); err != nil {
		return false, err
	}
	m.seen[eventID] = struct{}{}
	return true, nil
}
