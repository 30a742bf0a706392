package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistry_LifecycleTransitions(t *testing.T) {
	r := NewRegistry()
	h := NewHandle(1, 1000)

	if err := r.StartSession(h); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if got := r.SnapshotNew(); len(got) != 1 || got[0] != h {
		t.Fatalf("expected session in new bucket, got %v", got)
	}

	r.AttachConfiguration(h, DefaultBeaconConfiguration())
	if h.Lifecycle() != OpenConfigured {
		t.Fatalf("expected OpenConfigured, got %v", h.Lifecycle())
	}
	if diff := cmp.Diff(DefaultBeaconConfiguration(), h.BeaconConfig()); diff != "" {
		t.Fatalf("attached configuration mismatch (-want +got):\n%s", diff)
	}
	if got := r.SnapshotNew(); len(got) != 0 {
		t.Fatalf("expected new bucket empty after attach, got %v", got)
	}
	if got := r.SnapshotOpenConfigured(); len(got) != 1 || got[0] != h {
		t.Fatalf("expected session in openConfigured bucket, got %v", got)
	}

	r.FinishSession(h, 2000)
	if h.Lifecycle() != FinishedConfigured {
		t.Fatalf("expected FinishedConfigured, got %v", h.Lifecycle())
	}
	if ts, ended := h.EndTimestamp(); !ended || ts != 2000 {
		t.Fatalf("expected end timestamp 2000, got %d ended=%v", ts, ended)
	}
	if got := r.SnapshotOpenConfigured(); len(got) != 0 {
		t.Fatalf("expected openConfigured bucket empty after finish, got %v", got)
	}
	if got := r.SnapshotFinishedConfigured(); len(got) != 1 || got[0] != h {
		t.Fatalf("expected session in finishedConfigured bucket, got %v", got)
	}
}

func TestRegistry_StartSessionRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	h := NewHandle(1, 1000)
	if err := r.StartSession(h); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := r.StartSession(h); err == nil {
		t.Fatalf("expected error re-registering the same session number")
	}
}

func TestRegistry_FinishSessionIsIdempotent(t *testing.T) {
	r := NewRegistry()
	h := NewHandle(1, 1000)
	_ = r.StartSession(h)
	r.AttachConfiguration(h, DefaultBeaconConfiguration())

	r.FinishSession(h, 2000)
	r.FinishSession(h, 3000) // no-op

	ts, ended := h.EndTimestamp()
	if !ended || ts != 2000 {
		t.Fatalf("expected end timestamp to remain 2000, got %d ended=%v", ts, ended)
	}
}

func TestRegistry_RemoveSessionDropsFromAnyBucket(t *testing.T) {
	r := NewRegistry()
	h := NewHandle(1, 1000)
	_ = r.StartSession(h)

	r.RemoveSession(h)
	if _, ok := r.Lookup(1); ok {
		t.Fatalf("expected session removed from index")
	}
	if got := r.SnapshotNew(); len(got) != 0 {
		t.Fatalf("expected new bucket empty after remove, got %v", got)
	}
}

func TestBeaconConfiguration_AllowsSending(t *testing.T) {
	cases := []struct {
		name string
		cfg  BeaconConfiguration
		want bool
	}{
		{"default", DefaultBeaconConfiguration(), true},
		{"zero multiplicity", BeaconConfiguration{Multiplicity: 0, DataCollectionLevel: DataCollectionUserBehavior}, false},
		{"data collection off", BeaconConfiguration{Multiplicity: 1, DataCollectionLevel: DataCollectionOff}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.AllowsSending(); got != tc.want {
				t.Fatalf("AllowsSending() = %v, want %v", got, tc.want)
			}
		})
	}
}
