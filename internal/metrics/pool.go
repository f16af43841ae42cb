// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus instrumentation for framecore.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolHits counts frame requests satisfied from a bucket free list.
	PoolHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecore_pool_hits_total",
		Help: "Frame requests satisfied from the pool",
	}, []string{"descriptor"})

	// PoolMisses counts frame requests that required a new allocation.
	PoolMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecore_pool_misses_total",
		Help: "Frame requests that missed the pool",
	}, []string{"descriptor"})

	// PoolEvictions counts frames reclaimed by the background sweep.
	PoolEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecore_pool_evictions_total",
		Help: "Frames evicted by the cleanup sweep",
	}, []string{"descriptor", "reason"}) // reason: "idle|capacity|close"

	// PoolMemoryUsed tracks the bytes of GPU memory attributed to the pool.
	PoolMemoryUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecore_pool_gpu_memory_bytes",
		Help: "GPU memory currently attributed to pooled frames",
	})

	// PoolMemoryPressure is 1 while utilization exceeds the pressure threshold.
	PoolMemoryPressure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecore_pool_memory_pressure",
		Help: "1 while pool memory utilization exceeds the pressure threshold",
	})

	// PoolBudgetRefusals counts allocations refused by the memory budget.
	PoolBudgetRefusals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecore_pool_budget_refusals_total",
		Help: "Frame allocations refused because they would exceed the memory budget",
	})

	// PoolAllocFailures counts native allocation failures under budget.
	PoolAllocFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framecore_pool_device_alloc_failures_total",
		Help: "Native allocations refused by the device while under budget",
	})
)
