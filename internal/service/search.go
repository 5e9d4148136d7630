package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborline/storefront-search/internal/catalogue"
	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/index"
	"github.com/harborline/storefront-search/internal/search"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// queryCachePrefix namespaces live-result cache entries in Redis.
const queryCachePrefix = "search:cache:"

// SearchService serves search queries from the in-memory index and falls
// back to live catalogue lookups while the index is unavailable.
type SearchService struct {
	index     *index.Manager
	catalogue catalogue.Client
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewSearchService creates a new search service. cache may be nil, which
// disables live-result caching.
func NewSearchService(
	idx *index.Manager,
	cat catalogue.Client,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *SearchService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SearchService{
		index:     idx,
		catalogue: cat,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Search executes a storefront search. The index path is preferred; the live
// path is used while the index is still warming up or failed to build.
func (s *SearchService) Search(ctx context.Context, rawQuery string, limit int) (*domain.GroupedResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	start := time.Now()

	q := search.ParseQuery(rawQuery)
	if q.Lower == "" {
		res := emptyResult(domain.SourceIndex)
		return &res, nil
	}

	if s.index.IsReady() {
		ranked := s.index.Search(q, limit)
		res := search.Group(q, ranked)
		res.Source = domain.SourceIndex
		res.TookMs = time.Since(start).Milliseconds()

		searchesTotal.WithLabelValues(res.Source).Inc()
		searchDuration.WithLabelValues(res.Source).Observe(time.Since(start).Seconds())

		s.logger.DebugContext(ctx, "search executed",
			slog.String("query", rawQuery),
			slog.String("source", res.Source),
			slog.Int("total", res.Total),
			slog.Int64("took_ms", res.TookMs),
		)
		return &res, nil
	}

	res, err := s.searchLive(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	res.TookMs = time.Since(start).Milliseconds()

	searchesTotal.WithLabelValues(res.Source).Inc()
	searchDuration.WithLabelValues(res.Source).Observe(time.Since(start).Seconds())

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", rawQuery),
		slog.String("source", res.Source),
		slog.Int("total", res.Total),
		slog.Int64("took_ms", res.TookMs),
	)
	return res, nil
}

// searchLive queries the catalogue directly: products, categories, brands,
// and tags in parallel, each lookup tolerating its own failure. A brand
// lookup that finds nothing under the primary taxonomy retries the legacy
// one. Live results are cached briefly so a cold index does not hammer the
// catalogue.
func (s *SearchService) searchLive(ctx context.Context, q search.Query, limit int) (*domain.GroupedResult, error) {
	if cached, ok := s.cachedResult(ctx, q, limit); ok {
		return cached, nil
	}

	var (
		wg         sync.WaitGroup
		products   []domain.Product
		categories []domain.Term
		brands     []domain.Term
		tags       []domain.Term
	)

	lookup := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				liveLookupFailures.WithLabelValues(name).Inc()
				s.logger.WarnContext(ctx, "live lookup failed",
					slog.String("lookup", name),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	lookup("products", func() error {
		var err error
		products, err = s.catalogue.SearchProducts(ctx, q.Raw, limit)
		return err
	})
	lookup("categories", func() error {
		var err error
		categories, err = s.catalogue.SearchTerms(ctx, catalogue.TaxonomyCategory, q.Raw, limit)
		return err
	})
	lookup("brands", func() error {
		var err error
		brands, err = s.catalogue.SearchTerms(ctx, catalogue.TaxonomyBrand, q.Raw, limit)
		if err == nil && len(brands) == 0 {
			brands, err = s.catalogue.SearchTerms(ctx, catalogue.TaxonomyBrandLegacy, q.Raw, limit)
		}
		return err
	})
	lookup("tags", func() error {
		var err error
		tags, err = s.catalogue.SearchTerms(ctx, catalogue.TaxonomyTag, q.Raw, limit)
		return err
	})

	wg.Wait()

	// Normalize and rank with the same scorer the index uses so both paths
	// order results identically.
	bundle := domain.Bundle{
		Products:   products,
		Categories: categories,
		Brands:     brands,
		Tags:       tags,
	}
	ranked := search.Rank(q, index.NormalizeBundle(bundle), limit)
	res := search.Group(q, ranked)
	res.Source = domain.SourceLive

	s.storeCachedResult(ctx, q, limit, &res)
	return &res, nil
}

func (s *SearchService) cacheKey(q search.Query, limit int) string {
	return fmt.Sprintf("%s%s:%d", queryCachePrefix, strings.ToLower(strings.TrimSpace(q.Raw)), limit)
}

func (s *SearchService) cachedResult(ctx context.Context, q search.Query, limit int) (*domain.GroupedResult, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, s.cacheKey(q, limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.WarnContext(ctx, "query cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var res domain.GroupedResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false
	}
	res.Source = domain.SourceCache
	return &res, true
}

func (s *SearchService) storeCachedResult(ctx context.Context, q search.Query, limit int, res *domain.GroupedResult) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(q, limit), raw, s.cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "query cache write failed", slog.String("error", err.Error()))
	}
}

// Reindex triggers a full index rebuild from the catalogue.
func (s *SearchService) Reindex(ctx context.Context) error {
	if err := s.index.Resync(ctx); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	return nil
}

// Status describes the current state of the search index.
type Status struct {
	Ready         bool      `json:"ready"`
	TotalProducts int       `json:"total_products"`
	LastSync      time.Time `json:"last_sync_time"`
}

// Status reports index readiness for the status endpoint.
func (s *SearchService) Status(context.Context) Status {
	return Status{
		Ready:         s.index.IsReady(),
		TotalProducts: s.index.TotalCount(),
		LastSync:      s.index.LastSync(),
	}
}

func emptyResult(source string) domain.GroupedResult {
	return domain.GroupedResult{
		Products:   []domain.SearchIndexItem{},
		Categories: []domain.SearchIndexItem{},
		Brands:     []domain.SearchIndexItem{},
		Tags:       []domain.SearchIndexItem{},
		SKUs:       []domain.SearchIndexItem{},
		Source:     source,
	}
}
