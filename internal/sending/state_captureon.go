package sending

import (
	"context"
	"time"

	"github.com/openkit-go/openkit/internal/log"
)

// captureOnTick bounds how long one CaptureOn.Execute call blocks before
// the worker loop re-checks shutdown and capture state, independent of the
// (possibly much larger) configured send-interval.
const captureOnTick = 1 * time.Second

// CaptureOnState is the active-capture loop: open sessions get periodic
// beacons, finished sessions get flushed immediately, and a status check
// runs at most once per send-interval.
type CaptureOnState struct{}

// Name implements State.
func (s *CaptureOnState) Name() string { return "CaptureOn" }

// IsTerminalState implements State.
func (s *CaptureOnState) IsTerminalState() bool { return false }

// GetShutdownState implements State.
func (s *CaptureOnState) GetShutdownState() State { return &FlushSessionsState{} }

// Execute implements State.
func (s *CaptureOnState) Execute(ctx *Context) {
	if ctx.IsShutdownRequested() {
		ctx.SetNextState(s.GetShutdownState())
		return
	}

	snap := ctx.Config.Snapshot()
	if !snap.Capture {
		ctx.SetNextState(&CaptureOffState{})
		return
	}

	now := ctx.Clock.NowMillis()
	logger := log.WithComponent("sender")

	if throttled := s.sendFinishedSessionBeacons(ctx); throttled {
		ctx.SetNextState(&CaptureOffState{})
		return
	}

	if now-ctx.LastOpenSessionBeaconSendMs() >= snap.SendInterval.Milliseconds() {
		if throttled := s.sendOpenSessionBeacons(ctx); throttled {
			ctx.SetNextState(&CaptureOffState{})
			return
		}
	}

	if now-ctx.LastStatusCheckMs() >= snap.SendInterval.Milliseconds() {
		resp, err := ctx.GetHTTPClient().SendStatusRequest(context.Background())
		if err != nil {
			logger.Warn().Err(err).Msg("periodic status check failed")
		} else {
			ctx.HandleStatusResponse(resp)
			if resp.IsTooManyRequests() {
				ctx.SetNextState(&CaptureOffState{})
				return
			}
			if !ctx.Config.Snapshot().Capture {
				ctx.SetNextState(&CaptureOffState{})
				return
			}
		}
	}

	ctx.Sleep(captureOnTick)
	ctx.SetNextState(s)
}

// sendOpenSessionBeacons sends every eligible open session's pending data,
// chunk by chunk, in registry insertion order (spec §5, "by registry insertion order in
// CaptureOn"). Returns true if a 429 was observed and CaptureOff should be
// entered.
func (s *CaptureOnState) sendOpenSessionBeacons(ctx *Context) bool {
	sent := false
	for _, h := range ctx.Registry.SnapshotOpenConfigured() {
		if !h.BeaconConfig().AllowsSending() {
			continue
		}
		for {
			resp, outcome := sendBeacon(ctx, h)
			if outcome == outcomeNoData {
				break
			}
			sent = true
			if outcome == outcomeThrottled {
				ctx.RecordThrottle(resp)
				return true
			}
			if outcome != outcomeSent {
				break
			}
		}
	}
	if sent {
		ctx.MarkOpenSessionBeaconSent()
	}
	return false
}

// sendFinishedSessionBeacons flushes every finished session's remaining data
// and removes it from the registry once fully drained. Returns true on 429.
func (s *CaptureOnState) sendFinishedSessionBeacons(ctx *Context) bool {
	for _, h := range ctx.Registry.SnapshotFinishedConfigured() {
		if !h.BeaconConfig().AllowsSending() {
			ctx.Cache.DeleteCacheEntry(h.Number)
			ctx.Registry.RemoveSession(h)
			continue
		}
		for {
			resp, outcome := sendBeacon(ctx, h)
			if outcome == outcomeNoData {
				ctx.Registry.RemoveSession(h)
				break
			}
			if outcome == outcomeThrottled {
				ctx.RecordThrottle(resp)
				return true
			}
			if outcome != outcomeSent {
				break
			}
		}
	}
	return false
}
