package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/tableside/internal/model"
)

// Listener is called after a commit that changed the given collection.
// Listeners run on the committing goroutine and must not block.
type Listener func(kind model.Kind)

// Listen registers l for change notifications.
// The returned function unregisters it; calling it more than once is safe.
func (s *Store) Listen(l Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(kind model.Kind) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(kind)
	}
}

// Versions returns the current change counter of every collection.
func (s *Store) Versions(ctx context.Context) (map[model.Kind]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, version FROM collection_versions`)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[model.Kind]int64, len(model.Kinds))
	for rows.Next() {
		var kind string
		var v int64
		if err := rows.Scan(&kind, &v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions[model.Kind(kind)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// CheckExternal compares collection versions with the last ones this
// process committed or observed and notifies listeners for every collection
// another writer has changed. It returns the kinds that changed.
func (s *Store) CheckExternal(ctx context.Context) ([]model.Kind, error) {
	versions, err := s.Versions(ctx)
	if err != nil {
		return nil, err
	}

	var changed []model.Kind
	s.mu.Lock()
	for _, kind := range model.Kinds {
		if versions[kind] > s.seen[kind] {
			s.seen[kind] = versions[kind]
			changed = append(changed, kind)
		}
	}
	s.mu.Unlock()

	for _, kind := range changed {
		s.notify(kind)
	}
	return changed, nil
}

// Poll calls CheckExternal every interval until ctx is cancelled.
// Returns ctx.Err() on cancellation.
func (s *Store) Poll(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.CheckExternal(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("poll collection versions: %w", err)
			}
		}
	}
}
