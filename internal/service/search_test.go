package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/storefront-search/internal/catalogue"
	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/index"
	"github.com/harborline/storefront-search/internal/store/memory"
)

var _ catalogue.Client = (*fakeCatalogue)(nil)

type fakeCatalogue struct {
	productCalls atomic.Int64
	termCalls    atomic.Int64

	bundle      domain.Bundle
	products    []domain.Product
	productsErr error
	terms       map[string][]domain.Term
	termsErr    map[string]error
}

func (f *fakeCatalogue) FetchAll(context.Context) (domain.Bundle, error) {
	return f.bundle, nil
}

func (f *fakeCatalogue) SearchProducts(context.Context, string, int) ([]domain.Product, error) {
	f.productCalls.Add(1)
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	return f.products, nil
}

func (f *fakeCatalogue) SearchTerms(_ context.Context, taxonomy, _ string, _ int) ([]domain.Term, error) {
	f.termCalls.Add(1)
	if err := f.termsErr[taxonomy]; err != nil {
		return nil, err
	}
	return f.terms[taxonomy], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

// readyService builds a service whose index has been synced from the fake
// catalogue.
func readyService(t *testing.T, cat *fakeCatalogue) *SearchService {
	t.Helper()
	m := index.NewManager(memory.New(), cat, testLogger(), index.Config{})
	require.NoError(t, m.Initialize(context.Background()))
	return NewSearchService(m, cat, nil, 0, testLogger())
}

// coldService builds a service whose index never initialized, forcing the
// live path.
func coldService(cat *fakeCatalogue, cache *goredis.Client) *SearchService {
	m := index.NewManager(memory.New(), cat, testLogger(), index.Config{})
	return NewSearchService(m, cat, cache, time.Minute, testLogger())
}

func TestSearch_IndexPath(t *testing.T) {
	cat := &fakeCatalogue{bundle: testBundle()}
	svc := readyService(t, cat)

	res, err := svc.Search(context.Background(), "GLV-200", 10)
	require.NoError(t, err)

	assert.Equal(t, domain.SourceIndex, res.Source)
	require.NotEmpty(t, res.SKUs)
	assert.Equal(t, "GLV-200", res.SKUs[0].SKU)
	// The index path never touches the live search endpoints.
	assert.EqualValues(t, 0, cat.productCalls.Load())
	assert.EqualValues(t, 0, cat.termCalls.Load())
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc := readyService(t, &fakeCatalogue{bundle: testBundle()})

	res, err := svc.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Products)
}

func TestSearch_LimitClamped(t *testing.T) {
	cat := &fakeCatalogue{bundle: domain.Bundle{}}
	svc := readyService(t, cat)

	_, err := svc.Search(context.Background(), "gloves", 100000)
	require.NoError(t, err)
	_, err = svc.Search(context.Background(), "gloves", -5)
	require.NoError(t, err)
}

func TestSearch_LiveFallback(t *testing.T) {
	cat := &fakeCatalogue{
		products: []domain.Product{{ID: 1, Name: "Nitrile Gloves", SKU: "GLV-200"}},
		terms: map[string][]domain.Term{
			catalogue.TaxonomyCategory: {{ID: 3, Name: "Gloves"}},
			catalogue.TaxonomyBrand:    {{ID: 7, Name: "GloveCo"}},
			catalogue.TaxonomyTag:      {{ID: 11, Name: "gloves"}},
		},
	}
	svc := coldService(cat, nil)

	res, err := svc.Search(context.Background(), "gloves", 10)
	require.NoError(t, err)

	assert.Equal(t, domain.SourceLive, res.Source)
	assert.NotEmpty(t, res.Products)
	assert.NotEmpty(t, res.Categories)
	assert.NotEmpty(t, res.Brands)
	assert.NotEmpty(t, res.Tags)
}

func TestSearch_LiveFallback_PartialFailureKeepsOtherGroups(t *testing.T) {
	cat := &fakeCatalogue{
		productsErr: errors.New("products endpoint down"),
		terms: map[string][]domain.Term{
			catalogue.TaxonomyCategory: {{ID: 3, Name: "Gloves"}},
			catalogue.TaxonomyBrand:    {{ID: 7, Name: "GloveCo"}},
		},
	}
	svc := coldService(cat, nil)

	res, err := svc.Search(context.Background(), "gloves", 10)
	require.NoError(t, err)

	assert.Empty(t, res.Products)
	assert.NotEmpty(t, res.Categories)
	assert.NotEmpty(t, res.Brands)
}

func TestSearch_LiveFallback_BrandLegacyTaxonomy(t *testing.T) {
	cat := &fakeCatalogue{
		terms: map[string][]domain.Term{
			catalogue.TaxonomyBrand:       nil,
			catalogue.TaxonomyBrandLegacy: {{ID: 8, Name: "LegacyBrand"}},
		},
	}
	svc := coldService(cat, nil)

	res, err := svc.Search(context.Background(), "legacybrand", 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Brands)
	assert.Equal(t, "LegacyBrand", res.Brands[0].Name)
}

func TestSearch_LiveFallback_CachesResult(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cat := &fakeCatalogue{
		products: []domain.Product{{ID: 1, Name: "Nitrile Gloves"}},
	}
	svc := coldService(cat, cache)

	first, err := svc.Search(context.Background(), "gloves", 10)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLive, first.Source)
	firstCalls := cat.productCalls.Load()

	second, err := svc.Search(context.Background(), "gloves", 10)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, second.Source)
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, firstCalls, cat.productCalls.Load(), "cache hit must not refetch")
}

func TestSearch_CacheKeyNormalizesQuery(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cat := &fakeCatalogue{}
	svc := coldService(cat, cache)

	_, err := svc.Search(context.Background(), "Gloves", 10)
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), "  gloves ", 10)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, res.Source)
}

func TestReindex(t *testing.T) {
	cat := &fakeCatalogue{bundle: testBundle()}
	svc := readyService(t, cat)

	cat.bundle = domain.Bundle{Products: []domain.Product{{ID: 99, Name: "Replacement"}}}
	require.NoError(t, svc.Reindex(context.Background()))

	st := svc.Status(context.Background())
	assert.Equal(t, 1, st.TotalProducts)
}

func TestStatus(t *testing.T) {
	cat := &fakeCatalogue{bundle: testBundle()}
	svc := readyService(t, cat)

	st := svc.Status(context.Background())
	assert.True(t, st.Ready)
	assert.Equal(t, 2, st.TotalProducts)
	assert.False(t, st.LastSync.IsZero())

	cold := coldService(&fakeCatalogue{}, nil)
	st = cold.Status(context.Background())
	assert.False(t, st.Ready)
	assert.Equal(t, 0, st.TotalProducts)
}
