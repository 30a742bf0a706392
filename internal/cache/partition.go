package cache

import (
	"sync"

	"github.com/openkit-go/openkit/internal/beacon"
)

// lane holds the pending and in-transit records for one beacon.Lane within a
// single session's partition. Pending records are always ordered oldest
// first; in-transit records were moved there by getNextBeaconChunk and are
// restored to the head of pending by resetChunkedData, preserving
// "older before newer" within the lane.
type lane struct {
	pending   []beacon.Record
	inTransit []beacon.Record
}

func (l *lane) bytes() int {
	n := 0
	for _, r := range l.pending {
		n += r.Size()
	}
	for _, r := range l.inTransit {
		n += r.Size()
	}
	return n
}

// partition is the per-session record store: an action lane and an event
// lane, each age-ordered by append time, plus the byte total the cache's
// global accounting relies on.
type partition struct {
	mu      sync.RWMutex
	actions lane
	events  lane
	// byteTotal mirrors mu-protected lane contents. The cache's global
	// counter is a separate atomic that the cache adjusts by the same byte
	// amounts, keeping it equal to the sum of byteTotal across partitions
	// (spec §8 invariant: sum(partition.bytes) == cache.totalBytes).
	byteTotal int
}

func newPartition() *partition {
	return &partition{}
}

func (p *partition) laneFor(l beacon.Lane) *lane {
	if l == beacon.LaneAction {
		return &p.actions
	}
	return &p.events
}

// append adds a record to the given lane's pending sequence and returns the
// number of bytes added to the partition total.
func (p *partition) append(l beacon.Lane, r beacon.Record) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.laneFor(l).pending = append(p.laneFor(l).pending, r)
	n := r.Size()
	p.byteTotal += n
	return n
}

// totalBytes returns the partition's current byte total under lock.
func (p *partition) totalBytes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byteTotal
}

// nextChunk builds the next outgoing chunk: action lane first, then event
// lane, each in append order, joined by delimiter and bounded by maxSize.
// Consumed pending records move to in-transit. Returns the chunk (prefix
// followed by the joined records) and the records' byte size, which excludes
// the prefix and delimiters.
func (p *partition) nextChunk(prefix, delimiter string, maxSize int) (chunk string, payloadSize int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var parts []string
	size := len(prefix)
	consumed := 0

	take := func(lnPtr *lane) {
		for len(lnPtr.pending) > 0 {
			rec := lnPtr.pending[0]
			add := rec.Size()
			if len(parts) > 0 || consumed > 0 {
				add += len(delimiter)
			}
			if size+add > maxSize {
				return
			}
			size += add
			payloadSize += rec.Size()
			parts = append(parts, rec.Payload)
			lnPtr.inTransit = append(lnPtr.inTransit, rec)
			lnPtr.pending = lnPtr.pending[1:]
			consumed++
		}
	}

	take(&p.actions)
	take(&p.events)

	if consumed == 0 {
		return "", 0
	}
	return prefix + joinParts(parts, delimiter), payloadSize
}

func joinParts(parts []string, delimiter string) string {
	total := 0
	for i, s := range parts {
		total += len(s)
		if i > 0 {
			total += len(delimiter)
		}
	}
	out := make([]byte, 0, total)
	for i, s := range parts {
		if i > 0 {
			out = append(out, delimiter...)
		}
		out = append(out, s...)
	}
	return string(out)
}

// removeInTransit discards the in-transit sub-lanes, returning the freed
// byte count.
func (p *partition) removeInTransit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	freed := 0
	for _, r := range p.actions.inTransit {
		freed += r.Size()
	}
	for _, r := range p.events.inTransit {
		freed += r.Size()
	}
	p.actions.inTransit = nil
	p.events.inTransit = nil
	p.byteTotal -= freed
	return freed
}

// resetInTransit moves in-transit records back to the head of pending,
// preserving their original relative order within each lane (spec §4.A
// resetChunkedData; §8 round-trip: byte-exact restore).
func (p *partition) resetInTransit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.actions.inTransit) > 0 {
		p.actions.pending = append(p.actions.inTransit, p.actions.pending...)
		p.actions.inTransit = nil
	}
	if len(p.events.inTransit) > 0 {
		p.events.pending = append(p.events.inTransit, p.events.pending...)
		p.events.inTransit = nil
	}
}

// evictByAge removes pending records (never in-transit) older than cutoff
// from both lanes, returning the count evicted.
func (p *partition) evictByAge(cutoff int64) (evicted int, freedBytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ln := range []*lane{&p.actions, &p.events} {
		i := 0
		for i < len(ln.pending) && ln.pending[i].Timestamp < cutoff {
			freedBytes += ln.pending[i].Size()
			i++
		}
		if i > 0 {
			evicted += i
			ln.pending = ln.pending[i:]
		}
	}
	p.byteTotal -= freedBytes
	return evicted, freedBytes
}

// evictByNumber removes up to maxToEvict of the oldest pending records
// across both lanes, action lane first on ties, returning the count evicted.
func (p *partition) evictByNumber(maxToEvict int) (evicted int, freedBytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for evicted < maxToEvict {
		ln := &p.actions
		if len(ln.pending) == 0 || (len(p.events.pending) > 0 && p.events.pending[0].Timestamp < ln.pending[0].Timestamp) {
			ln = &p.events
		}
		if len(ln.pending) == 0 {
			break
		}
		freedBytes += ln.pending[0].Size()
		ln.pending = ln.pending[1:]
		evicted++
	}
	p.byteTotal -= freedBytes
	return evicted, freedBytes
}

// isEmpty reports whether the partition has no pending and no in-transit
// records left.
func (p *partition) isEmpty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.actions.pending) == 0 && len(p.actions.inTransit) == 0 &&
		len(p.events.pending) == 0 && len(p.events.inTransit) == 0
}

// hasInTransit reports whether any record is currently in-transit.
func (p *partition) hasInTransit() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.actions.inTransit) > 0 || len(p.events.inTransit) > 0
}
