package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harborline/storefront-search/internal/domain"
)

// ErrEmpty reports a backend that is reachable but holds no snapshot yet.
var ErrEmpty = errors.New("store: no index snapshot")

// Store persists the search index snapshot between restarts. Implementations
// must treat ReplaceAll as a wholesale swap: after it returns, LoadAll
// observes exactly the given items and nothing from earlier snapshots.
type Store interface {
	// LoadAll returns the complete persisted snapshot.
	LoadAll(ctx context.Context) ([]domain.SearchIndexItem, error)

	// ReplaceAll atomically replaces the snapshot with items.
	ReplaceAll(ctx context.Context, items []domain.SearchIndexItem) error

	// LastSyncTime returns the timestamp of the last successful sync, or
	// the zero time when none is recorded.
	LastSyncTime(ctx context.Context) (time.Time, error)

	// SetLastSyncTime records the timestamp of a successful sync.
	SetLastSyncTime(ctx context.Context, t time.Time) error

	// Ping reports whether the backend is usable.
	Ping(ctx context.Context) error

	// Name identifies the backend in logs and health output.
	Name() string
}

// Failover reads from the first healthy backend and writes through to every
// backend it can reach. A write that lands on at least one backend succeeds;
// per-backend write failures are logged and swallowed so a degraded cache
// never blocks a sync.
type Failover struct {
	backends []Store
	log      *slog.Logger
}

// NewFailover builds a failover store over the given backends in priority
// order. Nil backends are skipped so callers can pass optional ones directly.
func NewFailover(log *slog.Logger, backends ...Store) *Failover {
	fs := &Failover{log: log}
	for _, b := range backends {
		if b != nil {
			fs.backends = append(fs.backends, b)
		}
	}
	return fs
}

// Backends returns the active backends in priority order.
func (f *Failover) Backends() []Store { return f.backends }

func (f *Failover) Name() string { return "failover" }

func (f *Failover) LoadAll(ctx context.Context) ([]domain.SearchIndexItem, error) {
	var lastErr error = ErrEmpty
	for _, b := range f.backends {
		items, err := b.LoadAll(ctx)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, ErrEmpty) {
			f.log.WarnContext(ctx, "index load failed, trying next backend",
				"backend", b.Name(), "error", err)
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Failover) ReplaceAll(ctx context.Context, items []domain.SearchIndexItem) error {
	var ok bool
	var lastErr error
	for _, b := range f.backends {
		if err := b.ReplaceAll(ctx, items); err != nil {
			f.log.WarnContext(ctx, "index snapshot write failed",
				"backend", b.Name(), "items", len(items), "error", err)
			lastErr = err
			continue
		}
		ok = true
	}
	if !ok && lastErr != nil {
		return lastErr
	}
	return nil
}

func (f *Failover) LastSyncTime(ctx context.Context) (time.Time, error) {
	var lastErr error
	for _, b := range f.backends {
		t, err := b.LastSyncTime(ctx)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return time.Time{}, lastErr
	}
	return time.Time{}, nil
}

func (f *Failover) SetLastSyncTime(ctx context.Context, t time.Time) error {
	var ok bool
	var lastErr error
	for _, b := range f.backends {
		if err := b.SetLastSyncTime(ctx, t); err != nil {
			lastErr = err
			continue
		}
		ok = true
	}
	if !ok && lastErr != nil {
		return lastErr
	}
	return nil
}

func (f *Failover) Ping(ctx context.Context) error {
	var lastErr error
	for _, b := range f.backends {
		err := b.Ping(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}
