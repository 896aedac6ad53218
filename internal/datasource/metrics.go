package datasource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteforge_datasource_fetch_total",
		Help: "Data source fetches by type and outcome",
	}, []string{"type", "outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "siteforge_datasource_fetch_seconds",
		Help:    "Duration of individual data source fetches",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteforge_datasource_cache_hits_total",
		Help: "Data source cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteforge_datasource_cache_misses_total",
		Help: "Data source cache misses",
	})
)
