package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openkit-go/openkit/internal/protocol"
)

func TestUpdateSettings_NonSuccessDisablesCaptureOnly(t *testing.T) {
	store := NewStore("app-1", "https://example.com", FileConfig{})
	// seed the snapshot from a 200 response so capture starts out true
	store.UpdateSettings(&protocol.StatusResponse{HTTPCode: 200, Capture: true, ServerID: 1, SendIntervalMs: 120000})
	before := store.Snapshot()
	assert.True(t, before.Capture)

	store.UpdateSettings(&protocol.StatusResponse{HTTPCode: 404})

	after := store.Snapshot()
	assert.False(t, after.Capture)
	assert.Equal(t, before.ServerID, after.ServerID)
	assert.Equal(t, before.SendInterval, after.SendInterval)
}

func TestUpdateSettings_NilResponseDisablesCapture(t *testing.T) {
	store := NewStore("app-1", "https://example.com", FileConfig{})
	store.UpdateSettings(nil)
	assert.False(t, store.Snapshot().Capture)
}

func TestUpdateSettings_CaptureFalseLeavesOtherFieldsAlone(t *testing.T) {
	store := NewStore("app-1", "https://example.com", FileConfig{})
	store.UpdateSettings(&protocol.StatusResponse{HTTPCode: 200, Capture: true, ServerID: 7, SendIntervalMs: 5000, MaxBeaconSizeBytes: 1024})
	before := store.Snapshot()

	store.UpdateSettings(&protocol.StatusResponse{HTTPCode: 200, Capture: false})

	after := store.Snapshot()
	assert.False(t, after.Capture)
	assert.Equal(t, before.ServerID, after.ServerID)
	assert.Equal(t, before.SendInterval, after.SendInterval)
	assert.Equal(t, before.MaxBeaconSizeBytes, after.MaxBeaconSizeBytes)
}

func TestUpdateSettings_AppliesDefaultsForUnsetFields(t *testing.T) {
	store := NewStore("app-1", "https://example.com", FileConfig{})

	store.UpdateSettings(&protocol.StatusResponse{
		HTTPCode:           200,
		Capture:            true,
		ServerID:           protocol.Unset,
		SendIntervalMs:     protocol.Unset,
		MaxBeaconSizeBytes: protocol.Unset,
		CaptureErrors:      false,
		CaptureCrashes:     true,
	})

	snap := store.Snapshot()
	assert.Equal(t, DefaultServerID, snap.ServerID)
	assert.Equal(t, int64(DefaultSendIntervalMs), snap.SendInterval.Milliseconds())
	assert.Equal(t, DefaultMaxBeaconSizeBytes, snap.MaxBeaconSizeBytes)
	assert.False(t, snap.CaptureErrors)
	assert.True(t, snap.CaptureCrashes)
}

func TestUpdateSettings_ServerIDChangeBumpsHTTPConfigVersion(t *testing.T) {
	store := NewStore("app-1", "https://example.com", FileConfig{})
	v0 := store.HTTPConfigVersion()

	store.UpdateSettings(&protocol.StatusResponse{HTTPCode: 200, Capture: true, ServerID: 42, SendIntervalMs: 1000, MaxBeaconSizeBytes: 1000})
	assert.Greater(t, store.HTTPConfigVersion(), v0)

	v1 := store.HTTPConfigVersion()
	store.UpdateSettings(&protocol.StatusResponse{HTTPCode: 200, Capture: true, ServerID: 42, SendIntervalMs: 2000, MaxBeaconSizeBytes: 2000})
	assert.Equal(t, v1, store.HTTPConfigVersion(), "server id unchanged must not bump version")
}
