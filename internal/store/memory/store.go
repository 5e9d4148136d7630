package memory

import (
	"context"
	"sync"
	"time"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/store"
)

// Store is an in-process snapshot store. It is the last-resort backend when
// neither PostgreSQL nor Redis is available, and the default in tests; the
// snapshot does not survive a restart.
type Store struct {
	mu       sync.RWMutex
	items    []domain.SearchIndexItem
	lastSync time.Time
}

func New() *Store { return &Store{} }

func (s *Store) Name() string { return "memory" }

func (s *Store) LoadAll(_ context.Context) ([]domain.SearchIndexItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return nil, store.ErrEmpty
	}
	out := make([]domain.SearchIndexItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Store) ReplaceAll(_ context.Context, items []domain.SearchIndexItem) error {
	cp := make([]domain.SearchIndexItem, len(items))
	copy(cp, items)

	s.mu.Lock()
	s.items = cp
	s.mu.Unlock()
	return nil
}

func (s *Store) LastSyncTime(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync, nil
}

func (s *Store) SetLastSyncTime(_ context.Context, t time.Time) error {
	s.mu.Lock()
	s.lastSync = t
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }
