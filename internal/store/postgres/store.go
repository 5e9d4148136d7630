package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/store"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const lastSyncKey = "last_sync_time"

// insertBatchSize bounds the rows per batched INSERT inside the snapshot
// transaction.
const insertBatchSize = 500

// Store persists the index snapshot in PostgreSQL: one JSONB row per item in
// search_index, and sync bookkeeping in search_meta.
type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Name() string { return "postgres" }

// EnsureSchema creates the snapshot tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS search_index (
			pos  INTEGER NOT NULL,
			key  TEXT PRIMARY KEY,
			item JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS search_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure search schema: %w", err)
	}
	return nil
}

// LoadAll returns the snapshot in its original index order. Ranking breaks
// score ties by position, so reload order is part of the contract.
func (s *Store) LoadAll(ctx context.Context) ([]domain.SearchIndexItem, error) {
	rows, err := s.db.Query(ctx, `SELECT item FROM search_index ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("load search index: %w", err)
	}
	defer rows.Close()

	var items []domain.SearchIndexItem
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan search index row: %w", err)
		}
		var item domain.SearchIndexItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode search index row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search index rows: %w", err)
	}
	if len(items) == 0 {
		return nil, store.ErrEmpty
	}
	return items, nil
}

// ReplaceAll swaps the snapshot in one transaction: clear, then batched
// inserts. Readers never observe a partially written snapshot.
func (s *Store) ReplaceAll(ctx context.Context, items []domain.SearchIndexItem) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM search_index`); err != nil {
		return fmt.Errorf("clear search index: %w", err)
	}

	for start := 0; start < len(items); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(items) {
			end = len(items)
		}

		batch := &pgx.Batch{}
		for i, item := range items[start:end] {
			raw, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("encode index item %s: %w", item.Key, err)
			}
			batch.Queue(`INSERT INTO search_index (pos, key, item) VALUES ($1, $2, $3)`,
				start+i, item.Key, raw)
		}

		br := tx.SendBatch(ctx, batch)
		for range items[start:end] {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert index items: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close index batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

func (s *Store) LastSyncTime(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM search_meta WHERE key = $1`, lastSyncKey).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	_, err := s.db.Exec(ctx, `
		INSERT INTO search_meta (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		lastSyncKey, strconv.FormatInt(t.UnixMilli(), 10))
	if err != nil {
		return fmt.Errorf("save last sync time: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
