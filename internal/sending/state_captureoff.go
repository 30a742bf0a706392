package sending

import (
	"context"

	"github.com/openkit-go/openkit/internal/log"
)

// CaptureOffState is the paused-capture loop: sleep, then probe the server
// once via a status request to see whether capture can resume.
type CaptureOffState struct{}

// Name implements State.
func (s *CaptureOffState) Name() string { return "CaptureOff" }

// IsTerminalState implements State.
func (s *CaptureOffState) IsTerminalState() bool { return false }

// GetShutdownState implements State.
func (s *CaptureOffState) GetShutdownState() State { return &FlushSessionsState{} }

// Execute implements State.
func (s *CaptureOffState) Execute(ctx *Context) {
	if ctx.IsShutdownRequested() {
		ctx.SetNextState(s.GetShutdownState())
		return
	}

	snap := ctx.Config.Snapshot()
	ctx.Sleep(snap.SendInterval)

	if ctx.IsShutdownRequested() {
		ctx.SetNextState(s.GetShutdownState())
		return
	}

	resp, err := ctx.GetHTTPClient().SendStatusRequest(context.Background())
	if err != nil {
		log.WithComponent("sender").Warn().Err(err).Msg("capture-off status request failed")
		ctx.SetNextState(s)
		return
	}
	ctx.HandleStatusResponse(resp)

	if ctx.Config.Snapshot().Capture {
		ctx.SetNextState(&CaptureOnState{})
		return
	}
	ctx.SetNextState(s)
}
