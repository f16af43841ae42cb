// SPDX-License-Identifier: MIT

// Package pool implements the budgeted, bucketed GPU frame pool. Frames are
// keyed by descriptor; each bucket keeps a bounded free list and a
// background sweep reclaims frames idle past a timeout.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mediaforge/framecore/internal/frame"
	"github.com/mediaforge/framecore/internal/log"
	"github.com/mediaforge/framecore/internal/metrics"
)

// Config holds frame pool configuration.
type Config struct {
	MaxGPUMemory      int64         // global budget in bytes
	MinPoolSize       int           // preload target per bucket
	MaxPoolSize       int           // free-list cap per bucket
	SweepInterval     time.Duration // cleanup period; <= 0 disables the sweep
	IdleTimeout       time.Duration // idle age at which frames are reclaimed
	PressureThreshold float64       // utilization fraction that raises the pressure signal
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxGPUMemory:      2 << 30, // 2 GiB
		MinPoolSize:       2,
		MaxPoolSize:       16,
		SweepInterval:     5 * time.Second,
		IdleTimeout:       5 * time.Minute,
		PressureThreshold: 0.80,
	}
}

// Pool owns the descriptor buckets and the global memory budget.
//
// Locking is two-level: the pool mutex guards the bucket map, each bucket's
// mutex guards its free list. Neither is held across a native allocation,
// and the sweep holds at most one bucket lock at a time.
type Pool struct {
	cfg    Config
	alloc  frame.Allocator
	logger zerolog.Logger
	clock  clock

	mu      sync.Mutex
	buckets map[frame.Identity]*bucket

	memMu    sync.Mutex
	memUsed  int64
	pressure bool

	pressureLog *rate.Limiter

	stop     chan struct{}
	done     chan struct{}
	closeMu  sync.Mutex
	closed   bool
	sweeping bool
}

// New creates a pool over the given allocator and starts the background
// sweep when cfg.SweepInterval is positive.
func New(alloc frame.Allocator, cfg Config) *Pool {
	if cfg.MaxGPUMemory <= 0 {
		cfg.MaxGPUMemory = DefaultConfig().MaxGPUMemory
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = DefaultConfig().MaxPoolSize
	}
	if cfg.PressureThreshold <= 0 || cfg.PressureThreshold > 1 {
		cfg.PressureThreshold = DefaultConfig().PressureThreshold
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig().IdleTimeout
	}

	p := &Pool{
		cfg:         cfg,
		alloc:       alloc,
		logger:      log.WithComponent("framepool"),
		clock:       realClock{},
		buckets:     make(map[frame.Identity]*bucket),
		pressureLog: rate.NewLimiter(rate.Every(30*time.Second), 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		p.sweeping = true
		go p.sweepLoop()
	} else {
		close(p.done)
	}
	return p
}

// Allocate returns an in-use frame matching desc, reusing a pooled frame
// when one is available and allocating under the memory budget otherwise.
func (p *Pool) Allocate(desc frame.Descriptor) (*frame.Frame, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}
	if f := p.Get(desc); f != nil {
		return f, nil
	}
	return p.createFrame(desc)
}

// Get returns a pooled frame for desc, or nil on a pool miss. The returned
// frame is marked in use.
func (p *Pool) Get(desc frame.Descriptor) *frame.Frame {
	if p.isClosed() {
		return nil
	}
	b := p.bucketFor(desc)
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	f := b.popLocked()
	if f == nil {
		b.misses++
		metrics.PoolMisses.WithLabelValues(desc.String()).Inc()
		return nil
	}
	b.hits++
	metrics.PoolHits.WithLabelValues(desc.String()).Inc()
	f.MarkInUseAt(p.clock.Now())
	b.noteInUseLocked()
	return f
}

// Return hands a frame back to its bucket. When the free list is at
// capacity the frame is destroyed immediately rather than retained.
func (p *Pool) Return(f *frame.Frame) {
	if f == nil {
		return
	}
	f.MarkUnused()

	if p.isClosed() {
		p.destroyFrame(f)
		return
	}

	b := p.bucketFor(f.Descriptor())
	if b == nil {
		// Close won the race; settle the budget as the close path does.
		p.destroyFrame(f)
		return
	}

	b.mu.Lock()
	if p.isClosed() {
		// Close may already have drained this bucket, so the frame cannot
		// be re-queued.
		delete(b.all, f)
		b.mu.Unlock()
		p.destroyFrame(f)
		return
	}
	if _, tracked := b.all[f]; !tracked {
		// Not a pool-managed frame; drop the caller's reference.
		b.mu.Unlock()
		f.Release()
		return
	}
	if len(b.available) < b.maxSize {
		b.available = append(b.available, f)
		b.mu.Unlock()
		return
	}
	delete(b.all, f)
	b.mu.Unlock()

	metrics.PoolEvictions.WithLabelValues(f.Descriptor().String(), "capacity").Inc()
	p.destroyFrame(f)
}

// SetBucketLimits adjusts one bucket's free-list bounds. Shrinking below the
// current free-list size does not evict immediately; the next sweep trims.
func (p *Pool) SetBucketLimits(desc frame.Descriptor, minSize, maxSize int) {
	b := p.bucketFor(desc)
	if b == nil {
		return
	}
	b.mu.Lock()
	b.minSize = minSize
	b.maxSize = maxSize
	b.mu.Unlock()
}

// SetDefaultBucketLimits updates the free-list bounds applied to new
// buckets and pushes them onto every existing bucket. Shrinking takes
// effect at the next sweep.
func (p *Pool) SetDefaultBucketLimits(minSize, maxSize int) {
	if maxSize <= 0 || minSize < 0 || minSize > maxSize {
		return
	}
	p.mu.Lock()
	p.cfg.MinPoolSize = minSize
	p.cfg.MaxPoolSize = maxSize
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	for _, b := range buckets {
		b.mu.Lock()
		b.minSize = minSize
		b.maxSize = maxSize
		b.mu.Unlock()
	}
}

// PreloadCommonFormats fills the buckets for common output shapes so early
// requests hit the pool instead of paying first-allocation latency.
func (p *Pool) PreloadCommonFormats(ctx context.Context) error {
	shapes := []struct {
		w, h uint32
	}{
		{1920, 1080},
		{1280, 720},
		{3840, 2160},
	}
	formats := []frame.PixelFormat{frame.FormatRGBA, frame.FormatYUV420P}

	g, ctx := errgroup.WithContext(ctx)
	for _, shape := range shapes {
		for _, format := range formats {
			desc, err := frame.NewDescriptor(shape.w, shape.h, format)
			if err != nil {
				return err
			}
			g.Go(func() error {
				return p.preloadBucket(ctx, desc)
			})
		}
	}
	return g.Wait()
}

func (p *Pool) preloadBucket(ctx context.Context, desc frame.Descriptor) error {
	b := p.bucketFor(desc)
	if b == nil {
		return ErrPoolClosed
	}
	b.mu.Lock()
	want := b.minSize
	have := len(b.available)
	b.mu.Unlock()
	if want <= 0 {
		p.mu.Lock()
		want = p.cfg.MinPoolSize
		p.mu.Unlock()
	}

	for i := have; i < want; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := p.createFrame(desc)
		if err != nil {
			// Budget exhaustion during warmup is not a failure; there is
			// simply no headroom to preload into.
			p.logger.Debug().
				Str(log.FieldDescriptor, desc.String()).
				Err(err).
				Msg("preload stopped")
			return nil
		}
		p.Return(f)
	}
	return nil
}

// Stats returns the counters for one bucket.
func (p *Pool) Stats(desc frame.Descriptor) (BucketStats, bool) {
	p.mu.Lock()
	b, ok := p.buckets[desc.Identity()]
	p.mu.Unlock()
	if !ok {
		return BucketStats{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statsLocked(), true
}

// AllStats returns pool-wide accounting and every bucket's counters.
func (p *Pool) AllStats() Stats {
	p.mu.Lock()
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	s := Stats{MemoryBudget: p.cfg.MaxGPUMemory}
	for _, b := range buckets {
		b.mu.Lock()
		s.Buckets = append(s.Buckets, b.statsLocked())
		b.mu.Unlock()
	}

	p.memMu.Lock()
	s.MemoryUsed = p.memUsed
	s.Pressure = p.pressure
	p.memMu.Unlock()
	return s
}

// MemoryUsed returns the bytes currently attributed to pool frames.
func (p *Pool) MemoryUsed() int64 {
	p.memMu.Lock()
	defer p.memMu.Unlock()
	return p.memUsed
}

// Sweep runs one cleanup pass, reclaiming idle frames and trimming buckets
// whose limits shrank. Exposed so tests and operators can force a pass.
func (p *Pool) Sweep() {
	now := p.clock.Now()

	p.mu.Lock()
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	for _, b := range buckets {
		p.sweepBucket(b, now)
	}
}

func (p *Pool) sweepBucket(b *bucket, now time.Time) {
	var evicted []*frame.Frame
	var reasons []string

	b.mu.Lock()
	// Frames can come back out of access order, so the whole free list is
	// scanned rather than early-exiting at the first young frame.
	kept := b.available[:0]
	for _, f := range b.available {
		if now.Sub(f.LastAccess()) > p.cfg.IdleTimeout {
			delete(b.all, f)
			evicted = append(evicted, f)
			reasons = append(reasons, "idle")
			continue
		}
		kept = append(kept, f)
	}
	b.available = kept
	for len(b.available) > b.maxSize {
		f := b.popLocked()
		delete(b.all, f)
		evicted = append(evicted, f)
		reasons = append(reasons, "capacity")
	}
	b.mu.Unlock()

	for i, f := range evicted {
		metrics.PoolEvictions.WithLabelValues(f.Descriptor().String(), reasons[i]).Inc()
		p.destroyFrame(f)
	}
	if len(evicted) > 0 {
		p.logger.Debug().
			Str(log.FieldDescriptor, b.desc.String()).
			Int("evicted", len(evicted)).
			Msg("sweep reclaimed idle frames")
	}
}

// Close stops the sweep, waits for it to exit, and releases every pooled
// frame. Frames still held by callers stay alive until they are released.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	p.closeMu.Unlock()

	if p.sweeping {
		close(p.stop)
	}
	<-p.done

	p.mu.Lock()
	buckets := p.buckets
	p.buckets = make(map[frame.Identity]*bucket)
	p.mu.Unlock()

	inUse := 0
	for _, b := range buckets {
		b.mu.Lock()
		avail := b.available
		b.available = nil
		for _, f := range avail {
			delete(b.all, f)
		}
		inUse += len(b.all)
		b.mu.Unlock()

		for _, f := range avail {
			metrics.PoolEvictions.WithLabelValues(f.Descriptor().String(), "close").Inc()
			p.destroyFrame(f)
		}
	}
	if inUse > 0 {
		p.logger.Warn().Int("frames", inUse).Msg("pool closed with frames still in use")
	}
}

func (p *Pool) sweepLoop() {
	defer close(p.done)
	t := p.clock.NewTicker(p.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C():
			p.Sweep()
		}
	}
}

// bucketFor returns the bucket for desc, creating it on first use. The
// closed flag is re-checked under p.mu so a caller racing Close cannot
// re-create a bucket in the freshly swapped map; callers get nil once the
// pool is closed.
func (p *Pool) bucketFor(desc frame.Descriptor) *bucket {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed() {
		return nil
	}
	b, ok := p.buckets[desc.Identity()]
	if !ok {
		b = newBucket(desc, p.cfg.MinPoolSize, p.cfg.MaxPoolSize)
		p.buckets[desc.Identity()] = b
	}
	return b
}

func (p *Pool) createFrame(desc frame.Descriptor) (*frame.Frame, error) {
	if err := p.reserve(desc.SizeBytes); err != nil {
		metrics.PoolBudgetRefusals.Inc()
		return nil, err
	}

	f, err := frame.New(p.alloc, desc)
	if err != nil {
		p.unreserve(desc.SizeBytes)
		metrics.PoolAllocFailures.Inc()
		// Distinct from budget refusal: the device said no while the
		// tracker said yes, so the two views of memory disagree.
		p.logger.Error().
			Str(log.FieldDescriptor, desc.String()).
			Err(err).
			Msg("device allocation failed under budget")
		return nil, err
	}

	b := p.bucketFor(desc)
	if b == nil {
		p.destroyFrame(f)
		return nil, ErrPoolClosed
	}
	b.mu.Lock()
	b.all[f] = struct{}{}
	b.totalAllocated++
	f.MarkInUseAt(p.clock.Now())
	b.noteInUseLocked()
	b.mu.Unlock()
	return f, nil
}

// destroyFrame drops the pool's reference to an untracked frame and gives
// its bytes back to the budget.
func (p *Pool) destroyFrame(f *frame.Frame) {
	size := f.Descriptor().SizeBytes
	f.Release()
	p.unreserve(size)
}

func (p *Pool) reserve(size int64) error {
	p.memMu.Lock()
	defer p.memMu.Unlock()
	if p.memUsed+size > p.cfg.MaxGPUMemory {
		return fmt.Errorf("%w: %d requested, %d of %d in use",
			ErrBudgetExceeded, size, p.memUsed, p.cfg.MaxGPUMemory)
	}
	p.memUsed += size
	p.updatePressureLocked()
	metrics.PoolMemoryUsed.Set(float64(p.memUsed))
	return nil
}

func (p *Pool) unreserve(size int64) {
	p.memMu.Lock()
	defer p.memMu.Unlock()
	p.memUsed -= size
	if p.memUsed < 0 {
		p.memUsed = 0
	}
	p.updatePressureLocked()
	metrics.PoolMemoryUsed.Set(float64(p.memUsed))
}

func (p *Pool) updatePressureLocked() {
	util := float64(p.memUsed) / float64(p.cfg.MaxGPUMemory)
	over := util > p.cfg.PressureThreshold
	if over && !p.pressure {
		metrics.PoolMemoryPressure.Set(1)
	} else if !over && p.pressure {
		metrics.PoolMemoryPressure.Set(0)
	}
	p.pressure = over
	if over && p.pressureLog.Allow() {
		p.logger.Warn().
			Int64(log.FieldPoolUsed, p.memUsed).
			Int64(log.FieldPoolBudget, p.cfg.MaxGPUMemory).
			Float64("utilization", util).
			Msg("gpu memory pressure")
	}
}

func (p *Pool) isClosed() bool {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	return p.closed
}
