package sending

import (
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/session"
)

// neutralizedConfig is attached to sessions that never completed a
// server round-trip before shutdown: multiplicity 0 guarantees
// AllowsSending() is false, so FlushSessions phase 3 skips them (spec §4.E
// phase 1).
func neutralizedConfig() session.BeaconConfiguration {
	return session.BeaconConfiguration{
		Multiplicity:        0,
		DataCollectionLevel: session.DataCollectionOff,
		CrashReportingLevel: session.CrashReportingOptedOut,
	}
}

// FlushSessionsState performs the bounded shutdown flush. It is
// not itself terminal: it always transitions to Terminal once the three
// phases complete.
type FlushSessionsState struct{}

// Name implements State.
func (s *FlushSessionsState) Name() string { return "FlushSessions" }

// IsTerminalState implements State.
func (s *FlushSessionsState) IsTerminalState() bool { return false }

// GetShutdownState implements State: already mid-flush, shutdown leads to
// the same place execution is already heading.
func (s *FlushSessionsState) GetShutdownState() State { return &TerminalState{} }

// Execute implements State.
func (s *FlushSessionsState) Execute(ctx *Context) {
	logger := log.WithComponent("sender")
	now := ctx.Clock.NowMillis()

	// Phase 1: new sessions never got a server-assigned configuration;
	// neutralize them so they are moved out of the way without sending.
	for _, h := range ctx.Registry.SnapshotNew() {
		ctx.Registry.AttachConfiguration(h, neutralizedConfig())
	}

	// Phase 2: every still-open session is ended, ordering by
	// finished-timestamp is established by the order we end them here
	// ("by finished-timestamp in FlushSessions").
	for _, h := range ctx.Registry.SnapshotOpenConfigured() {
		ctx.Registry.FinishSession(h, now)
	}

	// Phase 3: send every eligible finished session once; abort all further
	// sending on the first 429.
	aborted := false
	finished := ctx.Registry.SnapshotFinishedConfigured()
	for _, h := range finished {
		if aborted || !h.BeaconConfig().AllowsSending() {
			continue
		}
		for {
			resp, outcome := sendBeacon(ctx, h)
			if outcome == outcomeNoData || outcome != outcomeSent {
				if outcome == outcomeThrottled {
					ctx.HandleStatusResponse(resp)
					aborted = true
					logger.Warn().Msg("flush aborted by server throttling")
				}
				break
			}
		}
	}

	for _, h := range finished {
		ctx.Cache.DeleteCacheEntry(h.Number)
		ctx.Registry.RemoveSession(h)
	}

	logger.Info().Int("sessions_flushed", len(finished)).Bool("aborted", aborted).Msg("flush complete")
	ctx.SetNextState(&TerminalState{})
}
