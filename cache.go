// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cohort

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/featurebasedb/cohort/join"
)

// DefaultCacheSize is the number of entries each manager cache holds.
const DefaultCacheSize = 20

// generational is a bounded map that, when full, drops the oldest quarter
// of its entries by insertion generation. It is not safe for concurrent
// use.
type generational[V any] struct {
	capacity int
	next     uint64
	entries  map[string]genEntry[V]
}

type genEntry[V any] struct {
	gen   uint64
	value V
}

func newGenerational[V any](capacity int) *generational[V] {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &generational[V]{capacity: capacity, entries: make(map[string]genEntry[V])}
}

func (c *generational[V]) get(key string) (V, bool) {
	e, ok := c.entries[key]
	return e.value, ok
}

// put stores v under key and returns the number of entries evicted to make
// room.
func (c *generational[V]) put(key string, v V) int {
	evicted := 0
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		evicted = c.evict(len(c.entries) - c.capacity + 1)
	}
	c.next++
	c.entries[key] = genEntry[V]{gen: c.next, value: v}
	return evicted
}

// evict drops the oldest quarter of the entries, and at least n.
func (c *generational[V]) evict(n int) int {
	if q := len(c.entries) / 4; q > n {
		n = q
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return c.entries[keys[i]].gen < c.entries[keys[j]].gen })
	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		delete(c.entries, k)
	}
	return n
}

// resize changes the capacity, evicting when the cache holds more.
func (c *generational[V]) resize(capacity int) int {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c.capacity = capacity
	if over := len(c.entries) - capacity; over > 0 {
		return c.evict(over)
	}
	return 0
}

func (c *generational[V]) remove(key string) {
	delete(c.entries, key)
}

func (c *generational[V]) clear() {
	c.entries = make(map[string]genEntry[V])
}

func (c *generational[V]) len() int { return len(c.entries) }

// counters are a cache's hit, miss and eviction totals.
type counters struct {
	hits, misses, evictions int64
}

func (c *counters) hit()        { atomic.AddInt64(&c.hits, 1) }
func (c *counters) miss()       { atomic.AddInt64(&c.misses, 1) }
func (c *counters) evict(n int) { atomic.AddInt64(&c.evictions, int64(n)) }

func (c *counters) load() (hits, misses, evictions int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), atomic.LoadInt64(&c.evictions)
}

// rawCache holds loaded batches by source name. Lookups share a read lock.
type rawCache struct {
	mu sync.RWMutex
	c  *generational[[]arrow.Record]
	counters
}

func newRawCache(capacity int) *rawCache {
	return &rawCache{c: newGenerational[[]arrow.Record](capacity)}
}

func (r *rawCache) get(name string) ([]arrow.Record, bool) {
	r.mu.RLock()
	recs, ok := r.c.get(name)
	r.mu.RUnlock()
	if ok {
		r.hit()
		cacheHits.WithLabelValues(cacheRaw).Inc()
	} else {
		r.miss()
		cacheMisses.WithLabelValues(cacheRaw).Inc()
	}
	return recs, ok
}

// putIf stores recs only if ok, called under the cache lock, holds. It
// reports whether recs were stored.
func (r *rawCache) putIf(name string, recs []arrow.Record, ok func() bool) bool {
	r.mu.Lock()
	if !ok() {
		r.mu.Unlock()
		return false
	}
	n := r.c.put(name, recs)
	r.mu.Unlock()
	r.evicted(n)
	return true
}

func (r *rawCache) evicted(n int) {
	if n > 0 {
		r.evict(n)
		cacheEvictions.WithLabelValues(cacheRaw).Add(float64(n))
	}
}

// filtered is a cached join result together with the exact filter it was
// computed for.
type filtered struct {
	filter *join.KeyFilter
	result *join.Result
}

// filteredCache holds join results by filter fingerprint.
type filteredCache struct {
	mu sync.Mutex
	c  *generational[filtered]
	counters
}

func newFilteredCache(capacity int) *filteredCache {
	return &filteredCache{c: newGenerational[filtered](capacity)}
}

// get returns the result stored under key if it was computed for exactly
// filter. A fingerprint collision counts as a miss.
func (f *filteredCache) get(key string, filter *join.KeyFilter) (*join.Result, bool) {
	f.mu.Lock()
	e, ok := f.c.get(key)
	f.mu.Unlock()
	if ok && e.filter.Equal(filter) {
		f.hit()
		cacheHits.WithLabelValues(cacheFiltered).Inc()
		return e.result, true
	}
	f.miss()
	cacheMisses.WithLabelValues(cacheFiltered).Inc()
	return nil, false
}

func (f *filteredCache) put(key string, filter *join.KeyFilter, res *join.Result) {
	f.mu.Lock()
	n := f.c.put(key, filtered{filter: filter, result: res})
	f.mu.Unlock()
	f.evicted(n)
}

func (f *filteredCache) evicted(n int) {
	if n > 0 {
		f.evict(n)
		cacheEvictions.WithLabelValues(cacheFiltered).Add(float64(n))
	}
}

// CacheStats describes the state of a manager's caches.
type CacheStats struct {
	RawEntries        int
	RawCapacity       int
	RawHits           int64
	RawMisses         int64
	RawEvictions      int64
	FilteredEntries   int
	FilteredCapacity  int
	FilteredHits      int64
	FilteredMisses    int64
	FilteredEvictions int64
}
