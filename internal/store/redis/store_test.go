package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/store"
)

func setupTestStore(t *testing.T, maxBytes int) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, maxBytes), mr
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
			Key:            "brand-3",
			ID:             3,
			Type:           domain.TypeBrand,
			Name:           "GloveCo",
			Slug:           "gloveco",
			SearchableText: "gloveco",
			Tokens:         []string{"gloveco"},
		},
	}
}

func TestStore_ReplaceAll_LoadAll_RoundTrip(t *testing.T) {
	s, _ := setupTestStore(t, 0)
	ctx := context.Background()

	items := sampleItems()
	require.NoError(t, s.ReplaceAll(ctx, items))

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestStore_LoadAll_EmptyIsErrEmpty(t *testing.T) {
	s, _ := setupTestStore(t, 0)

	_, err := s.LoadAll(context.Background())
	assert.ErrorIs(t, err, store.ErrEmpty)
}

func TestStore_ReplaceAll_OverwritesPreviousSnapshot(t *testing.T) {
	s, _ := setupTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.ReplaceAll(ctx, sampleItems()))
	require.NoError(t, s.ReplaceAll(ctx, sampleItems()[:1]))

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "product-1", got[0].Key)
}

func TestStore_ReplaceAll_CapsOversizedSnapshot(t *testing.T) {
	ctx := context.Background()
	items := sampleItems()

	// Cap sized so only the first item fits.
	one, err := json.Marshal(items[:1])
	require.NoError(t, err)
	s, _ := setupTestStore(t, len(one)+2)

	require.NoError(t, s.ReplaceAll(ctx, items))

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, items[:1], got)
}

func TestStore_ReplaceAll_NothingFitsIsError(t *testing.T) {
	s, mr := setupTestStore(t, 8)

	err := s.ReplaceAll(context.Background(), sampleItems())
	assert.ErrorIs(t, err, ErrSnapshotTooLarge)
	assert.False(t, mr.Exists(itemsKey))
}

func TestStore_LastSyncTime_RoundTrip(t *testing.T) {
	s, mr := setupTestStore(t, 0)
	ctx := context.Background()

	ts := time.Date(2025, 8, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetLastSyncTime(ctx, ts))

	// Stored as a decimal millisecond string.
	raw, err := mr.Get(lastSyncKey)
	require.NoError(t, err)
	assert.Equal(t, "1754040600000", raw)

	got, err := s.LastSyncTime(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func TestStore_LastSyncTime_MissingIsZero(t *testing.T) {
	s, _ := setupTestStore(t, 0)

	got, err := s.LastSyncTime(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestStore_LastSyncTime_Garbage(t *testing.T) {
	s, mr := setupTestStore(t, 0)
	mr.Set(lastSyncKey, "not-a-number")

	_, err := s.LastSyncTime(context.Background())
	assert.Error(t, err)
}

func TestStore_Ping(t *testing.T) {
	s, mr := setupTestStore(t, 0)

	assert.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
