package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/store"
	"github.com/harborline/storefront-search/pkg/database"
)

func setupStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return New(mock), mock
}

func sampleItems() []domain.SearchIndexItem {
	return []domain.SearchIndexItem{
		{
			Key:            "product-1",
			ID:             1,
			Type:           domain.TypeProduct,
			Name:           "Nitrile Gloves",
			Slug:           "nitrile-gloves",
			SKU:            "GLV-200",
			SearchableText: "nitrile gloves glv-200 glv200",
			Tokens:         []string{"nitrile", "gloves", "glv-200", "glv200"},
		},
		{
			Key:            "category-7",
			ID:             7,
			Type:           domain.TypeCategory,
			Name:           "Safety",
			Slug:           "safety",
			SearchableText: "safety",
			Tokens:         []string{"safety"},
		},
	}
}

func TestStore_LoadAll_Success(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	items := sampleItems()
	rows := pgxmock.NewRows([]string{"item"})
	for _, item := range items {
		raw, err := json.Marshal(item)
		require.NoError(t, err)
		rows.AddRow(raw)
	}
	mock.ExpectQuery("SELECT item FROM search_index ORDER BY pos").WillReturnRows(rows)

	got, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, items, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadAll_EmptyIsErrEmpty(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT item FROM search_index ORDER BY pos").
		WillReturnRows(pgxmock.NewRows([]string{"item"}))

	_, err := s.LoadAll(context.Background())
	assert.ErrorIs(t, err, store.ErrEmpty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadAll_QueryError(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT item FROM search_index").
		WillReturnError(errors.New("connection refused"))

	_, err := s.LoadAll(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceAll_ClearsThenInserts(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	items := sampleItems()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM search_index").
		WillReturnResult(pgxmock.NewResult("DELETE", 10))

	batch := mock.ExpectBatch()
	for i, item := range items {
		raw, err := json.Marshal(item)
		require.NoError(t, err)
		batch.ExpectExec("INSERT INTO search_index").
			WithArgs(i, item.Key, raw).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	err := s.ReplaceAll(context.Background(), items)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReplaceAll_RollsBackOnClearError(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM search_index").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := s.ReplaceAll(context.Background(), sampleItems())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LastSyncTime_RoundTrip(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	ts := time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO search_meta").
		WithArgs(lastSyncKey, "1754040600000").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT value FROM search_meta").
		WithArgs(lastSyncKey).
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("1754040600000"))

	require.NoError(t, s.SetLastSyncTime(context.Background(), ts))

	got, err := s.LastSyncTime(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LastSyncTime_MissingIsZero(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT value FROM search_meta").
		WithArgs(lastSyncKey).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	got, err := s.LastSyncTime(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_EnsureSchema(t *testing.T) {
	s, mock := setupStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS search_index").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
