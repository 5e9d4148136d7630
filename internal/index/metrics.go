package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_index_items",
			Help: "Number of items in the in-memory search index",
		},
	)

	indexSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_index_syncs_total",
			Help: "Total number of index sync attempts by result",
		},
		[]string{"result"},
	)

	indexSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_index_sync_duration_seconds",
			Help:    "Duration of full index syncs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	indexLastSyncTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_index_last_sync_timestamp_seconds",
			Help: "Unix timestamp of the last successful index sync",
		},
	)
)
