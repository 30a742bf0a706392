package cache

import (
	"context"

	"github.com/openkit-go/openkit/internal/clock"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/metrics"
	"github.com/openkit-go/openkit/internal/telemetry"
)

// spaceBatchSize bounds how many records the space strategy evicts from a
// single partition per round-robin pass, so one session's backlog cannot
// starve another's eviction progress (spec §4.A "drops oldest records in
// small batches").
const spaceBatchSize = 8

// RunEvictionPass performs one round of the eviction algorithm described in
// spec §4.A: if the cache is over high-water, walk partitions in
// insertion-order round-robin, evicting first by age (records older than
// MaxRecordAgeMs) and then by space (oldest-first, in small batches), until
// the cache is at or below low-water or no partition can make progress.
// Eviction never touches in-transit records (evictByAge/evictByNumber only
// ever look at pending records).
func (c *Cache) RunEvictionPass(now int64) (evictedRecords int, freedBytes int64) {
	if c.totalBytes.Load() <= c.cfg.HighWaterBytes {
		return 0, 0
	}
	c.evictCycles.Add(1)

	for {
		if c.totalBytes.Load() <= c.cfg.LowWaterBytes {
			return evictedRecords, freedBytes
		}
		progressed := false
		for _, sid := range c.sessionOrder() {
			if c.totalBytes.Load() <= c.cfg.LowWaterBytes {
				return evictedRecords, freedBytes
			}
			p := c.partitionFor(sid, false)
			if p == nil {
				continue
			}

			if c.cfg.MaxRecordAgeMs > 0 {
				n, freed := p.evictByAge(now - c.cfg.MaxRecordAgeMs)
				if n > 0 {
					c.shrink(int64(freed))
					evictedRecords += n
					freedBytes += int64(freed)
					progressed = true
					metrics.CacheEvictionsTotal.WithLabelValues("age").Add(float64(n))
				}
			}

			n, freed := p.evictByNumber(spaceBatchSize)
			if n > 0 {
				c.shrink(int64(freed))
				evictedRecords += n
				freedBytes += int64(freed)
				progressed = true
				metrics.CacheEvictionsTotal.WithLabelValues("space").Add(float64(n))
			}
		}
		if !progressed {
			return evictedRecords, freedBytes
		}
	}
}

// Eviction is the optional background worker described in §4.A/§5: it wakes
// on cache-size-change notifications and drives RunEvictionPass, so eviction
// work happens off the reporter and sender goroutines.
type Eviction struct {
	cache *Cache
	clk   clock.Clock
	wake  WakeChan
}

// NewEviction creates a background eviction worker registered as an
// Observer on cache.
func NewEviction(c *Cache, clk clock.Clock) *Eviction {
	w := NewWakeChan()
	c.RegisterObserver(w)
	return &Eviction{cache: c, clk: clk, wake: w}
}

// Run blocks, driving eviction passes whenever the cache notifies of a size
// change, until ctx is cancelled. Intended to be run in its own goroutine.
func (e *Eviction) Run(ctx context.Context) {
	logger := log.WithComponent("eviction")
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
			_, span := telemetry.StartSpan(ctx, "cache.EvictionPass")
			evicted, freed := e.cache.RunEvictionPass(e.clk.NowMillis())
			span.End()
			if evicted > 0 {
				logger.Debug().Int("records", evicted).Int64("bytes", freed).Msg("eviction pass reclaimed space")
			}
		}
	}
}
