// Package cache holds derived semester summaries keyed by (student, semester).
// It knows nothing about how summaries are computed.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TranscriptSlot keys student-level data that belongs to no single semester.
const TranscriptSlot = 0

type Key struct {
	StudentID string
	Semester  int
}

// Cache wraps a ttlcache with per-student generations. Every invalidation
// bumps the student's generation, and SetIfCurrent refuses values computed
// under an older one. A non-positive TTL disables it: writes are dropped and
// every Get misses.
type Cache[V any] struct {
	items *ttlcache.Cache[Key, V]
	ttl   time.Duration

	// mu orders generation bumps against conditional writes.
	mu          sync.Mutex
	generations map[string]uint64
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		items: ttlcache.New[Key, V](
			ttlcache.WithTTL[Key, V](ttl),
			ttlcache.WithDisableTouchOnHit[Key, V](),
		),
		ttl:         ttl,
		generations: make(map[string]uint64),
	}
}

func (c *Cache[V]) Enabled() bool {
	return c.ttl > 0
}

func (c *Cache[V]) Get(key Key) (V, bool) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

// Set stores unconditionally.
func (c *Cache[V]) Set(key Key, value V) {
	if !c.Enabled() {
		return
	}
	c.items.Set(key, value, ttlcache.DefaultTTL)
}

// Generation returns the student's current generation. Capture it before
// reading the source data and hand it to SetIfCurrent.
func (c *Cache[V]) Generation(studentID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[studentID]
}

// SetIfCurrent stores value only if no invalidation for the student happened
// since gen was captured. It reports whether the value was stored.
func (c *Cache[V]) SetIfCurrent(key Key, value V, gen uint64) bool {
	if !c.Enabled() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[key.StudentID] != gen {
		return false
	}
	c.items.Set(key, value, ttlcache.DefaultTTL)
	return true
}

// Invalidate drops one semester of a student together with the student's
// transcript slot. It reports whether anything was cached.
func (c *Cache[V]) Invalidate(studentID string, semester int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[studentID]++

	had := false
	for _, key := range []Key{
		{StudentID: studentID, Semester: semester},
		{StudentID: studentID, Semester: TranscriptSlot},
	} {
		if _, ok := c.Get(key); ok {
			had = true
		}
		c.items.Delete(key)
	}
	return had
}

// InvalidateStudent drops every slot of a student and returns how many live
// entries were removed.
func (c *Cache[V]) InvalidateStudent(studentID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[studentID]++

	var keys []Key
	live := 0
	c.items.Range(func(item *ttlcache.Item[Key, V]) bool {
		if item.Key().StudentID == studentID {
			keys = append(keys, item.Key())
			if !item.IsExpired() {
				live++
			}
		}
		return true
	})
	for _, key := range keys {
		c.items.Delete(key)
	}
	return live
}

func (c *Cache[V]) Len() int {
	return c.items.Len()
}

// DeleteExpired removes stale entries and returns how many were dropped.
func (c *Cache[V]) DeleteExpired() int {
	before := c.items.Len()
	c.items.DeleteExpired()
	return before - c.items.Len()
}

// RunJanitor evicts expired entries every interval until ctx is done.
func (c *Cache[V]) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || !c.Enabled() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.DeleteExpired()
		}
	}
}
