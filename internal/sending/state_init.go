package sending

import (
	"context"
	"time"

	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/telemetry"
)

// initRetryDelays are the doubling backoff sleeps between Init's N=5
// status-request attempts ("Init retries bounded to N=5 attempts").
// Five attempts have four gaps between them, so four delays are used: 1s,
// 2s, 4s, 8s.
var initRetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// initAttempts is the bounded number of status-request attempts Init makes
// before giving up ("N=5 attempts").
const initAttempts = 5

// InitState performs the initial status round-trip before the agent starts
// capturing.
type InitState struct{}

// Name implements State.
func (s *InitState) Name() string { return "Init" }

// IsTerminalState implements State.
func (s *InitState) IsTerminalState() bool { return false }

// GetShutdownState implements State: shutting down during Init skips any
// flush, since no session work has begun yet.
func (s *InitState) GetShutdownState() State { return &TerminalState{} }

// Execute implements State.
func (s *InitState) Execute(ctx *Context) {
	logger := log.WithComponent("sender")
	defer ctx.SignalInitCompleted()

	spanCtx, span := telemetry.StartSpan(context.Background(), "sending.Init")
	defer span.End()

	var success bool
	for attempt := 0; attempt < initAttempts; attempt++ {
		if ctx.IsShutdownRequested() {
			ctx.SetNextState(s.GetShutdownState())
			return
		}

		resp, err := ctx.GetHTTPClient().SendStatusRequest(spanCtx)
		if err == nil {
			ctx.HandleStatusResponse(resp)
			success = true
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt+1).Msg("init status request failed")

		if attempt < len(initRetryDelays) {
			ctx.Sleep(initRetryDelays[attempt])
		}
	}

	if !success {
		// Unrecoverable init failure leaves the system in CaptureOff, not
		// terminated ("Propagation policy").
		ctx.DisableCaptureAndClear()
		logger.Error().Msg("init failed after all retries, continuing with capture disabled")
		ctx.SetNextState(&CaptureOffState{})
		return
	}

	if ctx.Config.Snapshot().Capture {
		ctx.SetNextState(&CaptureOnState{})
	} else {
		ctx.SetNextState(&CaptureOffState{})
	}
}
