package session

import (
	"fmt"
	"sync"

	"github.com/openkit-go/openkit/internal/metrics"
)

// Registry is the Session Registry of spec §4.B: it holds session handles
// in exactly one of three ordered buckets at any observable moment, moving
// them between buckets under a single mutex so a reader taking a snapshot
// never observes a handle as a member of two buckets or of none.
type Registry struct {
	mu                  sync.Mutex
	new                 []*Handle
	openConfigured      []*Handle
	finishedConfigured  []*Handle
	indexByNumber       map[int32]*Handle
}

// NewRegistry creates an empty Session Registry.
func NewRegistry() *Registry {
	return &Registry{indexByNumber: make(map[int32]*Handle)}
}

// StartSession places session into the new bucket. It fails if the session
// is already registered
func (r *Registry) StartSession(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.indexByNumber[h.Number]; exists {
		return fmt.Errorf("session %d already registered", h.Number)
	}
	r.indexByNumber[h.Number] = h
	r.new = append(r.new, h)
	r.updateMetricsLocked()
	return nil
}

// AttachConfiguration atomically removes session from new and places it at
// the tail of openConfigured, attaching its beacon configuration (spec
// §4.B, §3 "enters OpenConfigured only after a beacon-configuration has
// been attached").
func (r *Registry) AttachConfiguration(h *Handle, cfg BeaconConfiguration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.new = removeHandle(r.new, h)
	h.attachConfig(cfg)
	r.openConfigured = append(r.openConfigured, h)
	r.updateMetricsLocked()
}

// FinishSession atomically removes session from openConfigured and places
// it at the tail of finishedConfigured. No-op if the session is already
// finished.
func (r *Registry) FinishSession(h *Handle, endTimestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.Lifecycle() == FinishedConfigured {
		return
	}
	r.openConfigured = removeHandle(r.openConfigured, h)
	h.end(endTimestamp)
	r.finishedConfigured = append(r.finishedConfigured, h)
	r.updateMetricsLocked()
}

// RemoveSession drops session from whichever bucket it currently occupies.
func (r *Registry) RemoveSession(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexByNumber, h.Number)
	r.new = removeHandle(r.new, h)
	r.openConfigured = removeHandle(r.openConfigured, h)
	r.finishedConfigured = removeHandle(r.finishedConfigured, h)
	r.updateMetricsLocked()
}

// SnapshotNew returns an atomic copy of the new bucket, in insertion order.
func (r *Registry) SnapshotNew() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Handle(nil), r.new...)
}

// SnapshotOpenConfigured returns an atomic copy of the openConfigured bucket.
func (r *Registry) SnapshotOpenConfigured() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Handle(nil), r.openConfigured...)
}

// SnapshotFinishedConfigured returns an atomic copy of the
// finishedConfigured bucket.
func (r *Registry) SnapshotFinishedConfigured() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Handle(nil), r.finishedConfigured...)
}

// Lookup returns the handle registered under number, if any.
func (r *Registry) Lookup(number int32) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.indexByNumber[number]
	return h, ok
}

func (r *Registry) updateMetricsLocked() {
	metrics.SessionsActive.WithLabelValues("new").Set(float64(len(r.new)))
	metrics.SessionsActive.WithLabelValues("open_configured").Set(float64(len(r.openConfigured)))
	metrics.SessionsActive.WithLabelValues("finished_configured").Set(float64(len(r.finishedConfigured)))
}

func removeHandle(bucket []*Handle, h *Handle) []*Handle {
	for i, e := range bucket {
		if e == h {
			return append(bucket[:i], bucket[i+1:]...)
		}
	}
	return bucket
}
