// Package session implements the Session Handle and Session Registry
// described in spec §3 and §4.B.
package session

import "sync/atomic"

// DataCollectionLevel mirrors the three-way dial used by the original
// OpenKit implementation (see Configuration.cxx in original_source), rather
// than collapsing privacy control to a boolean.
type DataCollectionLevel int

const (
	DataCollectionOff DataCollectionLevel = iota
	DataCollectionPerformanceOnly
	DataCollectionUserBehavior
)

// CrashReportingLevel mirrors the original implementation's independent
// crash-reporting dial.
type CrashReportingLevel int

const (
	CrashReportingOff CrashReportingLevel = iota
	CrashReportingOptedOut
	CrashReportingOptedIn
)

// BeaconConfiguration carries the three independent server-assigned dials
// that govern whether and how a session's beacon may be sent. Multiplicity
// == 0 means "attached, but never send", used by FlushSessions to
// neutralize sessions that never got assigned real multiplicity before
// shutdown.
type BeaconConfiguration struct {
	Multiplicity        int
	DataCollectionLevel DataCollectionLevel
	CrashReportingLevel CrashReportingLevel
}

// DefaultBeaconConfiguration is the full-capture configuration with
// multiplicity 1. A handle with no attached configuration does not have it:
// BeaconConfig then returns the zero value.
func DefaultBeaconConfiguration() BeaconConfiguration {
	return BeaconConfiguration{
		Multiplicity:        1,
		DataCollectionLevel: DataCollectionUserBehavior,
		CrashReportingLevel: CrashReportingOptedIn,
	}
}

// AllowsSending reports whether a session with this configuration is
// eligible to send beacons at all (spec §4.E phase 3: "multiplicity > 0 AND
// data-collection level != OFF").
func (b BeaconConfiguration) AllowsSending() bool {
	return b.Multiplicity > 0 && b.DataCollectionLevel != DataCollectionOff
}

// Lifecycle is a Session Handle's position in its monotonic lifecycle (spec
// §3): New -> OpenConfigured -> FinishedConfigured. Reverse transitions are
// forbidden.
type Lifecycle int

const (
	New Lifecycle = iota
	OpenConfigured
	FinishedConfigured
)

func (l Lifecycle) String() string {
	switch l {
	case New:
		return "new"
	case OpenConfigured:
		return "open_configured"
	case FinishedConfigured:
		return "finished_configured"
	default:
		return "unknown"
	}
}

// Handle identifies a logical session ("Session Handle"). The
// Registry exclusively owns the lifecycle/state fields; the Cache owns the
// record bytes addressed by Number.
type Handle struct {
	Number         int32
	StartTimestamp int64

	endTimestamp atomic.Int64 // 0 until ended; set iff lifecycle == FinishedConfigured
	lifecycle    atomic.Int32
	beaconConfig atomic.Pointer[BeaconConfiguration]
}

// NewHandle creates a fresh session handle in the New lifecycle state.
func NewHandle(number int32, startTimestamp int64) *Handle {
	h := &Handle{Number: number, StartTimestamp: startTimestamp}
	h.lifecycle.Store(int32(New))
	return h
}

// Lifecycle returns the handle's current lifecycle state.
func (h *Handle) Lifecycle() Lifecycle {
	return Lifecycle(h.lifecycle.Load())
}

// EndTimestamp returns the end timestamp and whether it has been set. Per
// spec §3, it is set iff the handle's lifecycle is FinishedConfigured.
func (h *Handle) EndTimestamp() (int64, bool) {
	ts := h.endTimestamp.Load()
	return ts, ts != 0
}

// BeaconConfig returns the handle's current beacon configuration, or the
// zero value if none has been attached yet.
func (h *Handle) BeaconConfig() BeaconConfiguration {
	p := h.beaconConfig.Load()
	if p == nil {
		return BeaconConfiguration{}
	}
	return *p
}

// attachConfig sets the beacon configuration and advances the lifecycle to
// OpenConfigured. Callers must go through Registry.AttachConfiguration to
// keep bucket membership consistent with lifecycle state.
func (h *Handle) attachConfig(cfg BeaconConfiguration) {
	h.beaconConfig.Store(&cfg)
	h.lifecycle.Store(int32(OpenConfigured))
}

// end sets the end timestamp and advances the lifecycle to
// FinishedConfigured. Callers must go through Registry.FinishSession.
func (h *Handle) end(ts int64) {
	h.endTimestamp.Store(ts)
	h.lifecycle.Store(int32(FinishedConfigured))
}
