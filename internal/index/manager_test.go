package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/search"
	"github.com/harborline/storefront-search/internal/store/memory"
)

type fakeFetcher struct {
	calls  atomic.Int64
	bundle domain.Bundle
	err    error
}

func (f *fakeFetcher) FetchAll(context.Context) (domain.Bundle, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.Bundle{}, f.err
	}
	return f.bundle, nil
}

func testBundle() domain.Bundle {
	return domain.Bundle{
		Products: []domain.Product{
			{ID: 1, Name: "Nitrile Gloves", SKU: "GLV-200"},
			{ID: 2, Name: "Vinyl Gloves", SKU: "GLV-2000"},
		},
		Categories: []domain.Term{{ID: 3, Name: "Safety"}},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		StaleAfter:    24 * time.Hour,
		SyncTimeout:   5 * time.Second,
		WatchInterval: 10 * time.Millisecond,
	}
}

func TestManager_Initialize_ColdStartBlocksOnSync(t *testing.T) {
	st := memory.New()
	fetch := &fakeFetcher{bundle: testBundle()}
	m := NewManager(st, fetch, testLogger(), fastConfig())

	require.NoError(t, m.Initialize(context.Background()))

	assert.True(t, m.IsReady())
	assert.Equal(t, 2, m.TotalCount())
	assert.EqualValues(t, 1, fetch.calls.Load())
	assert.False(t, m.LastSync().IsZero())

	// The snapshot was persisted for the next restart.
	persisted, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestManager_Initialize_ColdStartSyncFailure(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("catalogue unreachable")}
	m := NewManager(memory.New(), fetch, testLogger(), fastConfig())

	err := m.Initialize(context.Background())
	assert.Error(t, err)
	assert.False(t, m.IsReady())
}

func TestManager_Initialize_FreshSnapshotSkipsFetch(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.ReplaceAll(ctx, NormalizeBundle(testBundle())))
	require.NoError(t, st.SetLastSyncTime(ctx, time.Now()))

	fetch := &fakeFetcher{bundle: testBundle()}
	m := NewManager(st, fetch, testLogger(), fastConfig())

	require.NoError(t, m.Initialize(ctx))

	assert.True(t, m.IsReady())
	assert.Equal(t, 2, m.TotalCount())
	assert.EqualValues(t, 0, fetch.calls.Load())
}

func TestManager_Initialize_StaleSnapshotServesThenResyncs(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	stale := domain.Bundle{Products: []domain.Product{{ID: 9, Name: "Old Item"}}}
	require.NoError(t, st.ReplaceAll(ctx, NormalizeBundle(stale)))
	require.NoError(t, st.SetLastSyncTime(ctx, time.Now().Add(-48*time.Hour)))

	fetch := &fakeFetcher{bundle: testBundle()}
	m := NewManager(st, fetch, testLogger(), fastConfig())

	require.NoError(t, m.Initialize(ctx))

	// Stale data is served right away.
	assert.True(t, m.IsReady())

	// The background resync replaces it.
	require.Eventually(t, func() bool {
		return m.TotalCount() == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, fetch.calls.Load())
}

func TestManager_Initialize_Idempotent(t *testing.T) {
	fetch := &fakeFetcher{bundle: testBundle()}
	m := NewManager(memory.New(), fetch, testLogger(), fastConfig())

	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Initialize(ctx))

	assert.EqualValues(t, 1, fetch.calls.Load())
}

func TestManager_Resync_SwapsWholesale(t *testing.T) {
	ctx := context.Background()
	fetch := &fakeFetcher{bundle: testBundle()}
	m := NewManager(memory.New(), fetch, testLogger(), fastConfig())
	require.NoError(t, m.Initialize(ctx))

	fetch.bundle = domain.Bundle{Products: []domain.Product{{ID: 99, Name: "Replacement"}}}
	require.NoError(t, m.Resync(ctx))

	assert.Equal(t, 1, m.TotalCount())
	q := search.ParseQuery("replacement")
	got := m.Search(q, 10)
	require.Len(t, got, 1)
	assert.Equal(t, int64(99), got[0].ID)
}

func TestManager_SnapshotRoundTripPreservesOrdering(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	// Identical names score identically; their relative order must come
	// from index position and survive a persist/reload cycle.
	bundle := domain.Bundle{Products: []domain.Product{
		{ID: 1, Name: "Blue Widget"},
		{ID: 2, Name: "Blue Widget"},
		{ID: 3, Name: "Blue Widget"},
	}}
	first := NewManager(st, &fakeFetcher{bundle: bundle}, testLogger(), fastConfig())
	require.NoError(t, first.Initialize(ctx))

	q := search.ParseQuery("blue widget")
	before := first.Search(q, 10)
	require.Len(t, before, 3)

	restored := &fakeFetcher{}
	second := NewManager(st, restored, testLogger(), fastConfig())
	require.NoError(t, second.Initialize(ctx))
	require.EqualValues(t, 0, restored.calls.Load())

	after := second.Search(q, 10)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}

func TestManager_Search_NotReadyReturnsNil(t *testing.T) {
	m := NewManager(memory.New(), &fakeFetcher{}, testLogger(), fastConfig())
	assert.Nil(t, m.Search(search.ParseQuery("gloves"), 10))
}

func TestManager_Search_RanksIndexedItems(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.New(), &fakeFetcher{bundle: testBundle()}, testLogger(), fastConfig())
	require.NoError(t, m.Initialize(ctx))

	got := m.Search(search.ParseQuery("GLV-200"), 10)
	require.NotEmpty(t, got)
	assert.Equal(t, "GLV-200", got[0].SKU)
}

func TestManager_OnSyncedHook(t *testing.T) {
	var synced atomic.Int64
	m := NewManager(memory.New(), &fakeFetcher{bundle: testBundle()}, testLogger(), fastConfig())
	m.OnSynced(func(_ context.Context, count int) {
		synced.Store(int64(count))
	})

	require.NoError(t, m.Initialize(context.Background()))
	assert.EqualValues(t, 3, synced.Load())
}

func TestManager_Watch_ResyncsWhenStale(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := memory.New()
	require.NoError(t, st.ReplaceAll(ctx, NormalizeBundle(testBundle())))
	require.NoError(t, st.SetLastSyncTime(ctx, time.Now()))

	fetch := &fakeFetcher{bundle: testBundle()}
	cfg := fastConfig()
	cfg.StaleAfter = 30 * time.Millisecond
	m := NewManager(st, fetch, testLogger(), cfg)
	require.NoError(t, m.Initialize(ctx))
	require.EqualValues(t, 0, fetch.calls.Load())

	go m.Watch(ctx)

	require.Eventually(t, func() bool {
		return fetch.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
