package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborline/storefront-search/internal/service"
	"github.com/harborline/storefront-search/pkg/health"
	"github.com/harborline/storefront-search/pkg/middleware"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	CORS CORSConfig

	// RateLimitRPS/Burst throttle per-client request rates. Zero disables
	// rate limiting.
	RateLimitRPS   int
	RateLimitBurst int

	// SearchCacheMaxAge is the Cache-Control max-age for search responses,
	// in seconds. Zero disables the header.
	SearchCacheMaxAge int
}

// NewRouter creates a chi router with all search routes registered.
func NewRouter(
	searchService *service.SearchService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("search"))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	searchHandler := NewSearchHandler(searchService, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
		}

		r.Group(func(r chi.Router) {
			if cfg.SearchCacheMaxAge > 0 {
				r.Use(middleware.CacheControl(cfg.SearchCacheMaxAge))
			}
			r.Get("/", searchHandler.Search)
		})

		r.Get("/status", searchHandler.Status)
		r.Post("/reindex", searchHandler.Reindex)
	})

	return r
}
