package sending

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openkit-go/openkit/internal/httpclient"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/session"
)

func TestCaptureOn_ShutdownTransitionsToFlushSessions(t *testing.T) {
	stub := httpclient.NewStub()
	ctx, _, _ := newTestContext(t, stub)
	ctx.RequestShutdown()

	(&CaptureOnState{}).Execute(ctx)

	_, ok := ctx.CurrentState().(*FlushSessionsState)
	assert.True(t, ok)
}

func TestCaptureOn_CaptureDisabledTransitionsToCaptureOff(t *testing.T) {
	stub := httpclient.NewStub()
	ctx, _, _ := newTestContext(t, stub)
	ctx.Config.UpdateSettings(&protocol.StatusResponse{HTTPCode: 200, Capture: false})

	(&CaptureOnState{}).Execute(ctx)

	_, ok := ctx.CurrentState().(*CaptureOffState)
	assert.True(t, ok)
}

func TestCaptureOn_ThrottledFinishedSendTransitionsToCaptureOff(t *testing.T) {
	stub := httpclient.NewStub()
	stub.BeaconResponses = []*protocol.StatusResponse{
		{HTTPCode: 429, ResponseHeaders: map[string][]string{"retry-after": {"5"}}},
	}
	ctx, c, reg := newTestContext(t, stub)

	h := startSession(t, reg, 1, 1000)
	reg.AttachConfiguration(h, session.DefaultBeaconConfiguration())
	reg.FinishSession(h, 1100)
	c.AddActionData(1, 1000, "a=1")

	(&CaptureOnState{}).Execute(ctx)

	_, ok := ctx.CurrentState().(*CaptureOffState)
	assert.True(t, ok)
}
