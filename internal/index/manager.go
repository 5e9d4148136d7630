package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/search"
	"github.com/harborline/storefront-search/internal/store"
)

// Fetcher pulls the complete catalogue for a full index rebuild.
type Fetcher interface {
	FetchAll(ctx context.Context) (domain.Bundle, error)
}

// Config tunes the index manager.
type Config struct {
	// StaleAfter is the snapshot age past which a background resync is
	// scheduled on startup and by the staleness watcher.
	StaleAfter time.Duration

	// SyncTimeout bounds one full catalogue fetch plus persist.
	SyncTimeout time.Duration

	// WatchInterval is how often the staleness watcher re-checks.
	WatchInterval time.Duration
}

// DefaultConfig matches the persisted-snapshot lifecycle: a snapshot is
// trusted for a day before it is rebuilt.
func DefaultConfig() Config {
	return Config{
		StaleAfter:    24 * time.Hour,
		SyncTimeout:   2 * time.Minute,
		WatchInterval: 15 * time.Minute,
	}
}

// Manager owns the in-memory search index: loading the persisted snapshot on
// startup, rebuilding it from the catalogue, swapping it atomically, and
// serving reads. All methods are safe for concurrent use.
type Manager struct {
	store store.Store
	fetch Fetcher
	log   *slog.Logger
	cfg   Config

	// onSynced is invoked after each successful sync, outside the index
	// lock, with the item count.
	onSynced func(ctx context.Context, count int)

	mu          sync.RWMutex
	items       []domain.SearchIndexItem
	lastSync    time.Time
	ready       bool
	initialized bool

	syncMu sync.Mutex
}

func NewManager(st store.Store, fetch Fetcher, log *slog.Logger, cfg Config) *Manager {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultConfig().StaleAfter
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = DefaultConfig().SyncTimeout
	}
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = DefaultConfig().WatchInterval
	}
	return &Manager{store: st, fetch: fetch, log: log, cfg: cfg}
}

// OnSynced registers a post-sync hook. Call before Initialize.
func (m *Manager) OnSynced(fn func(ctx context.Context, count int)) {
	m.onSynced = fn
}

// Initialize brings the index up: the persisted snapshot is served
// immediately when one exists, with a background resync if it has gone
// stale; a cold start with no usable snapshot blocks on a full sync.
// Repeat calls after a successful initialization are no-ops.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	items, err := m.store.LoadAll(ctx)
	if err == nil {
		lastSync, tsErr := m.store.LastSyncTime(ctx)
		if tsErr != nil {
			m.log.WarnContext(ctx, "last sync time unavailable, treating snapshot as stale",
				"error", tsErr)
		}

		m.swap(items, lastSync)
		m.markInitialized()
		m.log.InfoContext(ctx, "search index restored from snapshot",
			"items", len(items), "last_sync", lastSync)

		if time.Since(lastSync) > m.cfg.StaleAfter {
			m.log.InfoContext(ctx, "snapshot stale, scheduling background resync",
				"age", time.Since(lastSync).String())
			go func() {
				if err := m.Resync(context.WithoutCancel(ctx)); err != nil {
					m.log.Error("background resync failed", "error", err)
				}
			}()
		}
		return nil
	}

	if !errors.Is(err, store.ErrEmpty) {
		m.log.WarnContext(ctx, "snapshot load failed, falling back to full sync", "error", err)
	}

	// Cold start: nothing to serve until the catalogue has been fetched.
	if err := m.Resync(ctx); err != nil {
		return fmt.Errorf("initial index sync: %w", err)
	}
	m.markInitialized()
	return nil
}

// Resync rebuilds the index from the catalogue and persists the new
// snapshot. Concurrent calls coalesce behind one rebuild at a time.
func (m *Manager) Resync(ctx context.Context) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.SyncTimeout)
	defer cancel()

	start := time.Now()

	bundle, err := m.fetch.FetchAll(ctx)
	if err != nil {
		indexSyncsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("fetch catalogue: %w", err)
	}

	items := NormalizeBundle(bundle)
	now := time.Now()
	m.swap(items, now)

	// Persistence failures degrade the next restart, not this process;
	// the in-memory index is already live.
	if err := m.store.ReplaceAll(ctx, items); err != nil {
		m.log.WarnContext(ctx, "index snapshot persist failed", "error", err)
	} else if err := m.store.SetLastSyncTime(ctx, now); err != nil {
		m.log.WarnContext(ctx, "last sync time persist failed", "error", err)
	}

	indexSyncsTotal.WithLabelValues("success").Inc()
	indexSyncDuration.Observe(time.Since(start).Seconds())
	indexLastSyncTimestamp.Set(float64(now.Unix()))

	m.log.InfoContext(ctx, "search index synced",
		"items", len(items),
		"products", len(bundle.Products),
		"categories", len(bundle.Categories),
		"brands", len(bundle.Brands),
		"tags", len(bundle.Tags),
		"duration", time.Since(start).String(),
	)

	if m.onSynced != nil {
		m.onSynced(ctx, len(items))
	}
	return nil
}

// Watch periodically resyncs the index once the snapshot passes its
// staleness threshold. Blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(m.LastSync()) <= m.cfg.StaleAfter {
				continue
			}
			if err := m.Resync(ctx); err != nil {
				m.log.Error("scheduled resync failed", "error", err)
			}
		}
	}
}

// Search ranks the current index against the parsed query. Returns nil when
// the index is not ready; callers fall back to the live path.
func (m *Manager) Search(q search.Query, limit int) []domain.SearchIndexItem {
	m.mu.RLock()
	items := m.items
	ready := m.ready
	m.mu.RUnlock()

	if !ready {
		return nil
	}
	return search.Rank(q, items, limit)
}

// IsReady reports whether the index holds a servable snapshot.
func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// TotalCount returns the number of indexed product items. Term items are
// excluded; status consumers only care about catalogue size.
func (m *Manager) TotalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for i := range m.items {
		if m.items[i].Type == domain.TypeProduct {
			n++
		}
	}
	return n
}

// LastSync returns the time of the last successful sync.
func (m *Manager) LastSync() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync
}

// swap publishes a new snapshot. Readers holding the previous slice keep a
// consistent view; the slice is never mutated after publication.
func (m *Manager) swap(items []domain.SearchIndexItem, syncedAt time.Time) {
	m.mu.Lock()
	m.items = items
	m.lastSync = syncedAt
	m.ready = true
	m.mu.Unlock()

	indexItems.Set(float64(len(items)))
}

func (m *Manager) markInitialized() {
	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
}
