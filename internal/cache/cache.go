// SPDX-License-Identifier: MIT

// Package cache provides the semantic frame cache: an LRU map from string
// keys ("frame at timestamp T of file F", "output of effect E") to shared
// GPU frames. The cache holds one reference per entry; frames are only
// freed when their last holder releases them.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/mediaforge/framecore/internal/frame"
	"github.com/mediaforge/framecore/internal/metrics"
)

// DefaultMaxSize is the default entry capacity.
const DefaultMaxSize = 100

type entry struct {
	key        string
	frame      *frame.Frame
	accessTime time.Time
}

// FrameCache is a fixed-capacity LRU cache of shared frames. A single mutex
// guards both the map and the recency list since they always change
// together.
type FrameCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	lru     *list.List // front = most recently used

	hits   uint64
	misses uint64
}

// New creates a cache holding at most maxSize entries. maxSize <= 0 selects
// DefaultMaxSize.
func New(maxSize int) *FrameCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &FrameCache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the cached frame for key with a new reference held for the
// caller, or nil on a miss. A hit refreshes the entry's LRU position.
func (c *FrameCache) Get(key string) *frame.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		metrics.CacheMisses.Inc()
		return nil
	}
	c.hits++
	metrics.CacheHits.Inc()

	c.lru.MoveToFront(elem)
	ent := elem.Value.(*entry)
	ent.accessTime = time.Now()
	ent.frame.Retain()
	return ent.frame
}

// Put stores a frame under key, taking its own reference. An existing entry
// for the key is replaced; otherwise the least-recently-used entries are
// evicted until there is room.
func (c *FrameCache) Put(key string, f *frame.Frame) {
	if f == nil {
		return
	}
	f.Retain()

	c.mu.Lock()

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry)
		old := ent.frame
		ent.frame = f
		ent.accessTime = time.Now()
		c.lru.MoveToFront(elem)
		c.mu.Unlock()
		old.Release()
		return
	}

	var evicted []*frame.Frame
	for c.lru.Len() >= c.maxSize {
		evicted = append(evicted, c.evictOldestLocked())
	}
	elem := c.lru.PushFront(&entry{key: key, frame: f, accessTime: time.Now()})
	c.entries[key] = elem
	metrics.CacheSize.Set(float64(c.lru.Len()))
	c.mu.Unlock()

	for _, old := range evicted {
		old.Release()
	}
}

// Resize changes the entry capacity, evicting from the LRU end when the
// cache is over the new limit. maxSize <= 0 is ignored.
func (c *FrameCache) Resize(maxSize int) {
	if maxSize <= 0 {
		return
	}
	c.mu.Lock()
	c.maxSize = maxSize
	var evicted []*frame.Frame
	for c.lru.Len() > c.maxSize {
		evicted = append(evicted, c.evictOldestLocked())
	}
	c.mu.Unlock()

	for _, f := range evicted {
		f.Release()
	}
}

// Remove drops the entry for key, releasing the cache's reference.
func (c *FrameCache) Remove(key string) {
	c.mu.Lock()
	elem, ok := c.entries[key]
	var f *frame.Frame
	if ok {
		f = c.removeLocked(elem)
	}
	c.mu.Unlock()
	if f != nil {
		f.Release()
	}
}

// Clear drops every entry.
func (c *FrameCache) Clear() {
	c.mu.Lock()
	frames := make([]*frame.Frame, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		frames = append(frames, elem.Value.(*entry).frame)
	}
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	metrics.CacheSize.Set(0)
	c.mu.Unlock()

	for _, f := range frames {
		f.Release()
	}
}

// Len returns the current entry count.
func (c *FrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (c *FrameCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Stats reports the cache counters.
func (c *FrameCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Stats holds cache performance counters.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	HitRate float64 `json:"hit_rate"`
}

// evictOldestLocked removes the LRU entry and returns its frame for the
// caller to release outside the lock.
func (c *FrameCache) evictOldestLocked() *frame.Frame {
	elem := c.lru.Back()
	if elem == nil {
		return nil
	}
	metrics.CacheEvictions.Inc()
	return c.removeLocked(elem)
}

func (c *FrameCache) removeLocked(elem *list.Element) *frame.Frame {
	ent := elem.Value.(*entry)
	c.lru.Remove(elem)
	delete(c.entries, ent.key)
	metrics.CacheSize.Set(float64(c.lru.Len()))
	return ent.frame
}
