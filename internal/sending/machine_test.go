package sending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/openkit-go/openkit/internal/httpclient"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/session"
)

func TestInitState_SuccessTransitionsToCaptureOn(t *testing.T) {
	stub := httpclient.NewStub()
	stub.StatusResponses = []*protocol.StatusResponse{{HTTPCode: 200, Capture: true}}
	ctx, _, _ := newTestContext(t, stub)

	(&InitState{}).Execute(ctx)

	_, ok := ctx.CurrentState().(*CaptureOnState)
	assert.True(t, ok)
}

func TestInitState_CaptureDisabledTransitionsToCaptureOff(t *testing.T) {
	stub := httpclient.NewStub()
	stub.StatusResponses = []*protocol.StatusResponse{{HTTPCode: 200, Capture: false}}
	ctx, _, _ := newTestContext(t, stub)

	(&InitState{}).Execute(ctx)

	_, ok := ctx.CurrentState().(*CaptureOffState)
	assert.True(t, ok)
}

func TestInitState_ShutdownDuringInitGoesTerminalWithoutFlush(t *testing.T) {
	stub := httpclient.NewStub()
	ctx, _, _ := newTestContext(t, stub)
	ctx.RequestShutdown()

	(&InitState{}).Execute(ctx)

	assert.True(t, ctx.CurrentState().IsTerminalState())
	assert.Equal(t, 0, stub.StatusCalls)
}

func TestInitState_SignalsInitCompletedExactlyOnce(t *testing.T) {
	stub := httpclient.NewStub()
	stub.StatusResponses = []*protocol.StatusResponse{{HTTPCode: 200, Capture: true}}
	ctx, _, _ := newTestContext(t, stub)

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	(&InitState{}).Execute(ctx)
	require.NoError(t, ctx.WaitForInit(waitCtx))
}

func TestMachine_ShutdownDuringCaptureOnFlushesAndTerminates(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stub := httpclient.NewStub()
	// The server gives no opinion on the numeric settings, so the default
	// max beacon size applies and the finished session's record fits a chunk.
	stub.StatusResponses = []*protocol.StatusResponse{{
		HTTPCode:           200,
		Capture:            true,
		ServerID:           protocol.Unset,
		SendIntervalMs:     protocol.Unset,
		MaxBeaconSizeBytes: protocol.Unset,
	}}
	stub.BeaconResponses = []*protocol.StatusResponse{{HTTPCode: 200, Capture: true}}
	ctx, c, reg := newTestContext(t, stub)

	h := startSession(t, reg, 1, 1000)
	reg.AttachConfiguration(h, session.DefaultBeaconConfiguration())
	reg.FinishSession(h, 1100)
	c.AddActionData(1, 1000, "a=1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		NewMachine(ctx).Run()
	}()

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ctx.WaitForInit(waitCtx))

	ctx.RequestShutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("machine did not terminate after shutdown request")
	}

	assert.True(t, ctx.CurrentState().IsTerminalState())
	assert.GreaterOrEqual(t, stub.BeaconCalls, 1)
}
