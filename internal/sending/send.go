package sending

import (
	"context"

	"github.com/openkit-go/openkit/internal/beacon"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/metrics"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/session"
	"github.com/openkit-go/openkit/internal/telemetry"
)

// sendOutcome classifies the result of sendBeacon for callers that need to
// branch on it (FlushSessions aborting on 429, CaptureOn backing off).
type sendOutcome int

const (
	outcomeNoData sendOutcome = iota
	outcomeSent
	outcomeThrottled
	outcomeServerError
	outcomeClientError
	outcomeTransportError
)

// sendBeacon implements "sending one beacon": extract the next
// chunk bounded by the configured max beacon size, POST it, and react to the
// response per §4.E and §7's error-kind table. Returns the response (nil on
// transport error or no data) and the outcome classification.
func sendBeacon(ctx *Context, h *session.Handle) (*protocol.StatusResponse, sendOutcome) {
	snap := ctx.Config.Snapshot()
	cfg := h.BeaconConfig()
	prefix := beacon.Prefix{
		ApplicationID: snap.ApplicationID,
		DeviceID:      ctx.DeviceID,
		SessionNumber: h.Number,
		Multiplicity:  cfg.Multiplicity,
	}
	chunk := ctx.Cache.GetNextBeaconChunk(h.Number, prefix.Encode()+beacon.Delimiter, int(snap.MaxBeaconSizeBytes), beacon.Delimiter)
	if chunk == "" {
		return nil, outcomeNoData
	}

	spanCtx := log.ContextWithSessionNumber(context.Background(), h.Number)
	spanCtx, span := telemetry.StartSpan(spanCtx, "sending.sendBeacon")
	defer span.End()
	logger := log.WithContext(spanCtx, *log.WithComponent("sender"))

	resp, err := ctx.GetHTTPClient().SendBeaconRequest(spanCtx, "", chunk)
	if err != nil {
		logger.Warn().Err(err).Msg("beacon send failed: transport error")
		ctx.Cache.ResetChunkedData(h.Number)
		metrics.BeaconSendsTotal.WithLabelValues("transport_error").Inc()
		return nil, outcomeTransportError
	}

	switch {
	case resp.IsSuccess():
		ctx.Cache.RemoveChunkedData(h.Number)
		ctx.MarkOpenSessionBeaconSent()
		metrics.BeaconSendsTotal.WithLabelValues("success").Inc()
		return resp, outcomeSent

	case resp.IsTooManyRequests():
		ctx.Cache.ResetChunkedData(h.Number)
		metrics.BeaconSendsTotal.WithLabelValues("throttled").Inc()
		return resp, outcomeThrottled

	case resp.HTTPCode >= 500:
		ctx.Cache.ResetChunkedData(h.Number)
		metrics.BeaconSendsTotal.WithLabelValues("server_error").Inc()
		return resp, outcomeServerError

	default: // other 4xx: non-retryable, drop
		ctx.Cache.RemoveChunkedData(h.Number)
		metrics.BeaconSendsTotal.WithLabelValues("client_error").Inc()
		logger.Warn().Int("http_code", resp.HTTPCode).Msg("beacon rejected, dropping chunk")
		return resp, outcomeClientError
	}
}
