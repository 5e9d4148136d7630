package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of search queries by result source",
		},
		[]string{"source"},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_query_duration_seconds",
			Help:    "Search query duration in seconds by result source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"source"},
	)

	liveLookupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_live_lookup_failures_total",
			Help: "Total number of failed live catalogue lookups by lookup kind",
		},
		[]string{"lookup"},
	)
)
