package sending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkit-go/openkit/internal/cache"
	"github.com/openkit-go/openkit/internal/clock"
	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/httpclient"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/session"
)

func newTestContext(t *testing.T, stub *httpclient.Stub) (*Context, *cache.Cache, *session.Registry) {
	t.Helper()
	c := cache.New(cache.Config{HighWaterBytes: 1 << 20, LowWaterBytes: 1 << 19})
	reg := session.NewRegistry()
	store := config.NewStore("app-1", "https://example.com", config.FileConfig{})
	clk := clock.NewVirtual(1000)
	ctx := NewContext(c, reg, store, clk, clk, "device-1",
		httpclient.Config{Endpoint: "https://example.com", ApplicationID: "app-1", ServerID: 1},
		func(httpclient.Config) httpclient.Client { return stub },
	)
	return ctx, c, reg
}

func startSession(t *testing.T, reg *session.Registry, number int32, ts int64) *session.Handle {
	t.Helper()
	h := session.NewHandle(number, ts)
	require.NoError(t, reg.StartSession(h))
	return h
}

// Scenario 1: FlushSessions not terminal.
func TestFlushSessions_NotTerminal(t *testing.T) {
	state := &FlushSessionsState{}
	assert.False(t, state.IsTerminalState())
	assert.True(t, state.GetShutdownState().IsTerminalState())
	assert.Equal(t, "FlushSessions", state.Name())
}

// Scenario 2: FlushSessions promotes new sessions.
func TestFlushSessions_PromotesNewSessions(t *testing.T) {
	stub := httpclient.NewStub()
	ctx, c, reg := newTestContext(t, stub)

	s1 := startSession(t, reg, 1, 100)
	s2 := startSession(t, reg, 2, 200)
	s3 := startSession(t, reg, 3, 300)
	reg.AttachConfiguration(s3, session.DefaultBeaconConfiguration())
	reg.FinishSession(s3, 400)
	c.AddActionData(3, 300, "x=1")

	(&FlushSessionsState{}).Execute(ctx)

	assert.Equal(t, 0, s1.BeaconConfig().Multiplicity)
	assert.Equal(t, 0, s2.BeaconConfig().Multiplicity)
	ts1, ended1 := s1.EndTimestamp()
	assert.True(t, ended1)
	_ = ts1
	ts2, ended2 := s2.EndTimestamp()
	assert.True(t, ended2)
	_ = ts2

	// S3 was already ended at 400 before the flush; it must not be re-ended.
	ts3, _ := s3.EndTimestamp()
	assert.Equal(t, int64(400), ts3)

	assert.True(t, ctx.CurrentState().IsTerminalState())
}

// Scenario 3: FlushSessions sends all.
func TestFlushSessions_SendsAll(t *testing.T) {
	stub := httpclient.NewStub()
	stub.BeaconResponses = []*protocol.StatusResponse{{HTTPCode: 200, Capture: true}}
	ctx, c, reg := newTestContext(t, stub)

	s1 := startSession(t, reg, 1, 100)
	s2 := startSession(t, reg, 2, 100)
	s3 := startSession(t, reg, 3, 100)
	for _, h := range []*session.Handle{s1, s2} {
		reg.AttachConfiguration(h, session.DefaultBeaconConfiguration())
	}
	reg.AttachConfiguration(s3, session.DefaultBeaconConfiguration())
	reg.FinishSession(s3, 150)

	c.AddActionData(1, 100, "a=1")
	c.AddActionData(2, 100, "a=1")
	c.AddActionData(3, 100, "a=1")

	(&FlushSessionsState{}).Execute(ctx)

	assert.Equal(t, 3, stub.BeaconCalls)
	assert.True(t, ctx.CurrentState().IsTerminalState())
}

// Scenario 4: FlushSessions respects privacy.
func TestFlushSessions_RespectsPrivacy(t *testing.T) {
	stub := httpclient.NewStub()
	ctx, c, reg := newTestContext(t, stub)

	offConfig := session.BeaconConfiguration{
		Multiplicity:        1,
		DataCollectionLevel: session.DataCollectionOff,
		CrashReportingLevel: session.CrashReportingOptedIn,
	}

	var handles []*session.Handle
	for i := int32(1); i <= 3; i++ {
		h := startSession(t, reg, i, 100)
		reg.AttachConfiguration(h, offConfig)
		c.AddActionData(i, 100, "a=1")
		handles = append(handles, h)
	}

	(&FlushSessionsState{}).Execute(ctx)

	assert.Equal(t, 0, stub.BeaconCalls)
	for _, h := range handles {
		_, ended := h.EndTimestamp()
		assert.True(t, ended)
	}
	assert.True(t, ctx.CurrentState().IsTerminalState())
}

// Scenario 5: FlushSessions aborts on 429.
func TestFlushSessions_AbortsOn429(t *testing.T) {
	stub := httpclient.NewStub()
	stub.BeaconResponses = []*protocol.StatusResponse{
		{HTTPCode: 429, ResponseHeaders: map[string][]string{"retry-after": {"123456"}}, RetryAfter: 123456 * time.Second},
	}
	ctx, c, reg := newTestContext(t, stub)

	var handles []*session.Handle
	for i := int32(1); i <= 3; i++ {
		h := startSession(t, reg, i, 100)
		reg.AttachConfiguration(h, session.DefaultBeaconConfiguration())
		c.AddActionData(i, 100, "a=1")
		handles = append(handles, h)
	}

	(&FlushSessionsState{}).Execute(ctx)

	assert.Equal(t, 1, stub.BeaconCalls)
	for _, h := range handles {
		assert.False(t, c.HasPendingInTransit(h.Number))
		assert.Equal(t, "", c.GetNextBeaconChunk(h.Number, "", 1<<20, "&"))
	}
}
