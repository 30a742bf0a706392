package config

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/protocol"
)

// Defaults for the Configuration Snapshot
const (
	DefaultCapture            = true
	DefaultSendIntervalMs     = int64(120000)
	DefaultMaxBeaconSizeBytes = int32(30720)
	DefaultCaptureErrors      = true
	DefaultCaptureCrashes     = true
	// DefaultServerID mirrors the OpenKit-type default server id used by the
	// original implementation when a status response omits one.
	DefaultServerID = int32(1)
)

// Snapshot is the Configuration Snapshot of spec §3: the current mutable
// runtime settings, readable without locking by any goroutine.
type Snapshot struct {
	Capture            bool
	SendInterval       time.Duration
	MaxBeaconSizeBytes int32
	CaptureErrors      bool
	CaptureCrashes     bool
	ServerID           int32
	ApplicationID      string
	Endpoint           string
}

// Store holds the current Snapshot and mutates it only via UpdateSettings,
// matching §4.C: "Mutations only via updateSettings(statusResponse)". Reads
// are lock-free snapshots (an atomic pointer swap); writes are serialized by
// mu so concurrent status responses cannot interleave their field updates.
type Store struct {
	mu  sync.Mutex
	ptr atomic.Pointer[Snapshot]

	// httpConfigVersion increments whenever ServerID changes, signaling to
	// the HTTP client owner that its base URL must be rebuilt (§4.C).
	httpConfigVersion atomic.Uint64
}

// NewStore creates a Store seeded with defaults overridden by the identity
// config's explicit fields, if any.
func NewStore(applicationID, endpoint string, fc FileConfig) *Store {
	snap := Snapshot{
		Capture:            DefaultCapture,
		SendInterval:       time.Duration(DefaultSendIntervalMs) * time.Millisecond,
		MaxBeaconSizeBytes: DefaultMaxBeaconSizeBytes,
		CaptureErrors:      DefaultCaptureErrors,
		CaptureCrashes:     DefaultCaptureCrashes,
		ServerID:           DefaultServerID,
		ApplicationID:      applicationID,
		Endpoint:           endpoint,
	}
	if fc.CaptureErrors != nil {
		snap.CaptureErrors = *fc.CaptureErrors
	}
	if fc.CaptureCrashes != nil {
		snap.CaptureCrashes = *fc.CaptureCrashes
	}
	if fc.SendIntervalMs != nil {
		snap.SendInterval = time.Duration(*fc.SendIntervalMs) * time.Millisecond
	}
	if fc.MaxBeaconSizeBytes != nil {
		snap.MaxBeaconSizeBytes = *fc.MaxBeaconSizeBytes
	}
	s := &Store{}
	s.ptr.Store(&snap)
	return s
}

// Snapshot returns the current, immutable configuration snapshot. Safe for
// concurrent use without locking.
func (s *Store) Snapshot() Snapshot {
	return *s.ptr.Load()
}

// HTTPConfigVersion returns a counter that increments whenever ServerID
// changes, so the HTTP client owner can detect "must rebuild base URL"
// (§4.C) without comparing full snapshots.
func (s *Store) HTTPConfigVersion() uint64 {
	return s.httpConfigVersion.Load()
}

// UpdateSettings applies a status response to the configuration, per §4.C:
//
//   - absent response or non-200: capture becomes false, nothing else changes.
//   - capture == false: only the capture flag changes.
//   - capture == true: server id / send interval / max beacon size / capture
//     errors / capture crashes are all refreshed, applying the Unset default
//     rule for the three numeric fields.
//
// The whole operation is atomic: readers observe either the pre- or
// post-update snapshot, never a torn one (§5, "Ordering guarantees").
func (s *Store) UpdateSettings(resp *protocol.StatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := *s.ptr.Load()
	next := prev

	if resp == nil || resp.HTTPCode != 200 {
		next.Capture = false
		s.ptr.Store(&next)
		log.WithComponent("config").Info().Bool("capture", false).Msg("capture disabled: no valid status response")
		return
	}

	next.Capture = resp.Capture
	if !resp.Capture {
		s.ptr.Store(&next)
		log.WithComponent("config").Info().Bool("capture", false).Msg("capture disabled by server")
		return
	}

	newServerID := resp.ServerID
	if newServerID == protocol.Unset {
		newServerID = DefaultServerID
	}
	if newServerID != prev.ServerID {
		s.httpConfigVersion.Add(1)
	}
	next.ServerID = newServerID

	newSendInterval := resp.SendIntervalMs
	if newSendInterval == protocol.Unset {
		newSendInterval = DefaultSendIntervalMs
	}
	next.SendInterval = time.Duration(newSendInterval) * time.Millisecond

	newMaxBeaconSize := resp.MaxBeaconSizeBytes
	if newMaxBeaconSize == protocol.Unset {
		newMaxBeaconSize = DefaultMaxBeaconSizeBytes
	}
	next.MaxBeaconSizeBytes = newMaxBeaconSize

	next.CaptureErrors = resp.CaptureErrors
	next.CaptureCrashes = resp.CaptureCrashes

	s.ptr.Store(&next)
}
