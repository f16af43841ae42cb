// SPDX-License-Identifier: MIT

package pool

import (
	"sync"

	"github.com/mediaforge/framecore/internal/frame"
)

// bucket is the per-descriptor sub-pool. Its mutex serializes all access to
// the free list and counters; the pool-level mutex only guards the bucket
// map itself.
type bucket struct {
	mu   sync.Mutex
	desc frame.Descriptor

	// available holds idle frames in return order, oldest at the head.
	// all tracks every live frame created through this bucket, in use or not.
	available []*frame.Frame
	all       map[*frame.Frame]struct{}

	minSize int
	maxSize int

	totalAllocated uint64
	peakInUse      int
	hits           uint64
	misses         uint64
}

func newBucket(desc frame.Descriptor, minSize, maxSize int) *bucket {
	return &bucket{
		desc:    desc,
		all:     make(map[*frame.Frame]struct{}),
		minSize: minSize,
		maxSize: maxSize,
	}
}

// popLocked removes and returns the oldest available frame, or nil.
func (b *bucket) popLocked() *frame.Frame {
	if len(b.available) == 0 {
		return nil
	}
	f := b.available[0]
	b.available = b.available[1:]
	return f
}

func (b *bucket) inUseLocked() int {
	return len(b.all) - len(b.available)
}

func (b *bucket) noteInUseLocked() {
	if n := b.inUseLocked(); n > b.peakInUse {
		b.peakInUse = n
	}
}

func (b *bucket) statsLocked() BucketStats {
	s := BucketStats{
		Descriptor:     b.desc.String(),
		TotalAllocated: b.totalAllocated,
		Available:      len(b.available),
		InUse:          b.inUseLocked(),
		PeakInUse:      b.peakInUse,
		Hits:           b.hits,
		Misses:         b.misses,
	}
	if total := b.hits + b.misses; total > 0 {
		s.HitRate = float64(b.hits) / float64(total)
	}
	return s
}
