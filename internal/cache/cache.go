// Package cache implements the Beacon Cache: a concurrent,
// in-memory store of serialized event/action records partitioned by
// session, with time- and size-based eviction under strict memory bounds.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/openkit-go/openkit/internal/beacon"
	"github.com/openkit-go/openkit/internal/metrics"
)

// Config bounds the cache's memory footprint ("Cache Global State").
type Config struct {
	// HighWaterBytes triggers eviction once total cache size exceeds it.
	HighWaterBytes int64
	// LowWaterBytes is the target the eviction pass drives total size down
	// to (or below).
	LowWaterBytes int64
	// MaxRecordAgeMs: records older than this are always evictable
	// regardless of water levels.
	MaxRecordAgeMs int64
}

// Cache is the Beacon Cache described in spec §4.A. All public operations
// are safe for concurrent use by multiple reporter goroutines plus one
// sender/eviction goroutine: partition-level RWMutexes guard record data,
// and a single atomic counter tracks the cache-wide byte total so eviction
// never needs a global lock shared with writers on other partitions.
type Cache struct {
	cfg Config

	mu          sync.Mutex // guards partitions map + order slice (membership, not contents)
	partitions  map[int32]*partition
	order       []int32 // insertion order, for round-robin eviction
	totalBytes  atomic.Int64
	observer    subject
	evictCycles atomic.Int64
}

// New creates a Beacon Cache with the given eviction thresholds.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:        cfg,
		partitions: make(map[int32]*partition),
	}
}

// RegisterObserver registers o to be notified on any size-modifying
// operation (spec §4.A "Observers").
func (c *Cache) RegisterObserver(o Observer) {
	c.observer.register(o)
}

func (c *Cache) partitionFor(sessionID int32, createIfMissing bool) *partition {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.partitions[sessionID]
	if !ok {
		if !createIfMissing {
			return nil
		}
		p = newPartition()
		c.partitions[sessionID] = p
		c.order = append(c.order, sessionID)
	}
	return p
}

// AddActionData appends payload to sessionID's action lane.
func (c *Cache) AddActionData(sessionID int32, timestamp int64, payload string) {
	c.add(sessionID, beacon.LaneAction, timestamp, payload)
}

// AddEventData appends payload to sessionID's event lane.
func (c *Cache) AddEventData(sessionID int32, timestamp int64, payload string) {
	c.add(sessionID, beacon.LaneEvent, timestamp, payload)
}

func (c *Cache) add(sessionID int32, lane beacon.Lane, timestamp int64, payload string) {
	if payload == "" {
		return
	}
	p := c.partitionFor(sessionID, true)
	n := p.append(lane, beacon.Record{Timestamp: timestamp, Payload: payload})
	c.grow(int64(n))
}

// DeleteCacheEntry drops sessionID's partition entirely, decreasing the
// cache size by the partition's byte total. Idempotent.
func (c *Cache) DeleteCacheEntry(sessionID int32) {
	c.mu.Lock()
	p, ok := c.partitions[sessionID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.partitions, sessionID)
	for i, id := range c.order {
		if id == sessionID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	freed := p.totalBytes()
	if freed > 0 {
		c.shrink(int64(freed))
	}
}

// GetNextBeaconChunk builds the next outgoing chunk for sessionID, bounded
// by maxSize, moving consumed records to the in-transit sub-lane (spec
// §4.A). Returns "" if the session has no partition or no pending data.
func (c *Cache) GetNextBeaconChunk(sessionID int32, chunkPrefix string, maxSize int, delimiter string) string {
	p := c.partitionFor(sessionID, false)
	if p == nil {
		return ""
	}
	chunk, _ := p.nextChunk(chunkPrefix, delimiter, maxSize)
	return chunk
}

// RemoveChunkedData discards sessionID's in-transit sub-lane after a
// successful send; freed bytes reduce cache size.
func (c *Cache) RemoveChunkedData(sessionID int32) {
	p := c.partitionFor(sessionID, false)
	if p == nil {
		return
	}
	freed := p.removeInTransit()
	if freed > 0 {
		c.shrink(int64(freed))
	}
}

// ResetChunkedData moves sessionID's in-transit sub-lane back into pending
// for retry, preserving per-lane order.
func (c *Cache) ResetChunkedData(sessionID int32) {
	p := c.partitionFor(sessionID, false)
	if p == nil {
		return
	}
	p.resetInTransit()
}

// HasPendingInTransit reports whether sessionID currently has any record
// awaiting acknowledgment.
func (c *Cache) HasPendingInTransit(sessionID int32) bool {
	p := c.partitionFor(sessionID, false)
	if p == nil {
		return false
	}
	return p.hasInTransit()
}

// EvictRecordsByAge removes records with timestamp < now-minAgeMs from
// sessionID's partition, returning the count evicted.
func (c *Cache) EvictRecordsByAge(sessionID int32, now, minAgeMs int64) int {
	p := c.partitionFor(sessionID, false)
	if p == nil {
		return 0
	}
	evicted, freed := p.evictByAge(now - minAgeMs)
	if freed > 0 {
		c.shrink(int64(freed))
	}
	return evicted
}

// EvictRecordsByNumber removes up to maxRecordsToEvict of the oldest
// records from sessionID's partition, returning the count evicted (spec
// §4.A).
func (c *Cache) EvictRecordsByNumber(sessionID int32, maxRecordsToEvict int) int {
	p := c.partitionFor(sessionID, false)
	if p == nil {
		return 0
	}
	evicted, freed := p.evictByNumber(maxRecordsToEvict)
	if freed > 0 {
		c.shrink(int64(freed))
	}
	return evicted
}

// TotalBytes returns the cache-wide byte total.
func (c *Cache) TotalBytes() int64 {
	return c.totalBytes.Load()
}

func (c *Cache) grow(n int64) {
	if n == 0 {
		return
	}
	total := c.totalBytes.Add(n)
	metrics.CacheBytes.Set(float64(total))
	c.observer.notifyAll()
}

func (c *Cache) shrink(n int64) {
	if n == 0 {
		return
	}
	total := c.totalBytes.Add(-n)
	metrics.CacheBytes.Set(float64(total))
	c.observer.notifyAll()
}

// sessionOrder returns a snapshot of known session ids in insertion order,
// for the round-robin eviction walk.
func (c *Cache) sessionOrder() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int32, len(c.order))
	copy(out, c.order)
	return out
}
