// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts semantic cache lookups that found a frame.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecore_cache_hits_total",
		Help: "Frame cache lookups that hit",
	})

	// CacheMisses counts semantic cache lookups that found nothing.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecore_cache_misses_total",
		Help: "Frame cache lookups that missed",
	})

	// CacheEvictions counts LRU evictions.
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecore_cache_evictions_total",
		Help: "Frames evicted from the cache by LRU pressure",
	})

	// CacheSize tracks the current number of cached entries.
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecore_cache_entries",
		Help: "Current number of frame cache entries",
	})
)
