package cache

import "sync"

// Observer is notified when a size-modifying cache operation occurs. Per
// spec §4.A, notification is edge-triggered and coalesced: Notify never
// blocks the caller and never queues more than one pending wake-up.
type Observer interface {
	Notify()
}

// subject is a coalescing fan-out of cache-size-change notifications,
// grounded in the "edge-triggered, level semantics preferred" requirement:
// observers receive at most one outstanding wake-up regardless of how many
// size-modifying operations occurred between reads.
type subject struct {
	mu        sync.Mutex
	observers []Observer
}

func (s *subject) register(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *subject) notifyAll() {
	s.mu.Lock()
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()
	for _, o := range obs {
		o.Notify()
	}
}

// WakeChan is an Observer backed by a capacity-1 channel, giving callers a
// select-friendly, coalesced wake signal: multiple Notify calls between
// receives collapse into a single pending wake-up.
type WakeChan chan struct{}

// NewWakeChan creates a ready-to-register WakeChan observer.
func NewWakeChan() WakeChan {
	return make(WakeChan, 1)
}

// Notify implements Observer.
func (w WakeChan) Notify() {
	select {
	case w <- struct{}{}:
	default:
	}
}
