// SPDX-License-Identifier: MIT

package pool

// BucketStats reports the counters of one descriptor bucket.
type BucketStats struct {
	Descriptor     string  `json:"descriptor"`
	TotalAllocated uint64  `json:"total_allocated"`
	Available      int     `json:"available"`
	InUse          int     `json:"in_use"`
	PeakInUse      int     `json:"peak_in_use"`
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
}

// Stats reports pool-wide memory accounting plus all bucket counters.
type Stats struct {
	MemoryUsed   int64         `json:"memory_used_bytes"`
	MemoryBudget int64         `json:"memory_budget_bytes"`
	Pressure     bool          `json:"memory_pressure"`
	Buckets      []BucketStats `json:"buckets"`
}
