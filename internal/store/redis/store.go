package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/store"
)

const (
	itemsKey    = "search:index:items"
	lastSyncKey = "search:index:last_sync"
)

// DefaultMaxSnapshotBytes caps the serialized snapshot a redis backend will
// hold. An index that encodes past the cap is truncated to the longest item
// prefix that fits.
const DefaultMaxSnapshotBytes = 8 << 20

// ErrSnapshotTooLarge reports that not even a single item fits the cap.
var ErrSnapshotTooLarge = fmt.Errorf("redis store: snapshot exceeds size cap")

// Store persists the index snapshot in Redis as a single JSON document plus
// a decimal millisecond sync timestamp. Intended as the fast secondary
// behind the PostgreSQL backend.
type Store struct {
	client   *redis.Client
	maxBytes int
}

func New(client *redis.Client, maxBytes int) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSnapshotBytes
	}
	return &Store{client: client, maxBytes: maxBytes}
}

func (s *Store) Name() string { return "redis" }

func (s *Store) LoadAll(ctx context.Context) ([]domain.SearchIndexItem, error) {
	raw, err := s.client.Get(ctx, itemsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, store.ErrEmpty
		}
		return nil, fmt.Errorf("load index snapshot: %w", err)
	}

	var items []domain.SearchIndexItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode index snapshot: %w", err)
	}
	if len(items) == 0 {
		return nil, store.ErrEmpty
	}
	return items, nil
}

// ReplaceAll stores the snapshot as one JSON document. When the full index
// does not fit the byte cap the snapshot is capped to the first items that
// do; a partial snapshot restores faster than refetching the catalogue.
func (s *Store) ReplaceAll(ctx context.Context, items []domain.SearchIndexItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}
	if len(raw) > s.maxBytes {
		raw, err = s.truncateToFit(items)
		if err != nil {
			return err
		}
	}

	if err := s.client.Set(ctx, itemsKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("save index snapshot: %w", err)
	}
	return nil
}

// truncateToFit binary-searches the longest item prefix whose encoding stays
// within the cap.
func (s *Store) truncateToFit(items []domain.SearchIndexItem) ([]byte, error) {
	var best []byte
	lo, hi := 0, len(items)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		raw, err := json.Marshal(items[:mid])
		if err != nil {
			return nil, fmt.Errorf("encode index snapshot: %w", err)
		}
		if len(raw) <= s.maxBytes {
			best = raw
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return nil, fmt.Errorf("%w: no item fits %d bytes", ErrSnapshotTooLarge, s.maxBytes)
	}
	return best, nil
}

func (s *Store) LastSyncTime(ctx context.Context) (time.Time, error) {
	value, err := s.client.Get(ctx, lastSyncKey).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("load last sync time: %w", err)
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sync time %q: %w", value, err)
	}
	return time.UnixMilli(ms), nil
}

func (s *Store) SetLastSyncTime(ctx context.Context, t time.Time) error {
	value := strconv.FormatInt(t.UnixMilli(), 10)
	if err := s.client.Set(ctx, lastSyncKey, value, 0).Err(); err != nil {
		return fmt.Errorf("save last sync time: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
