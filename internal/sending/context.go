// Package sending implements the Sending Context and the Beacon Sending
// State Machine described in spec §4.D and §4.E.
package sending

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/openkit-go/openkit/internal/cache"
	"github.com/openkit-go/openkit/internal/clock"
	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/httpclient"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/metrics"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/session"
)

// Context is the Sending Context of spec §4.D: the shared mutable state the
// single sender goroutine drives the state machine through. States receive
// it by reference during Execute and never store it.
type Context struct {
	Cache    *cache.Cache
	Registry *session.Registry
	Config   *config.Store
	Clock    clock.Clock
	Sleeper  clock.Sleeper
	DeviceID string

	httpMu     sync.RWMutex
	httpClient httpclient.Client
	httpCfg    httpclient.Config
	rebuild    func(httpclient.Config) httpclient.Client

	// limiter bounds outbound request rate even if a malicious or buggy
	// status response sets SendInterval near zero (§6 DOMAIN STACK note).
	limiter *rate.Limiter

	shutdown      atomic.Bool
	shutdownCh    chan struct{}
	shutdownOnce  sync.Once
	initCompleted atomic.Bool
	initDoneCh    chan struct{}
	initDoneOnce  sync.Once

	stateMu                     sync.Mutex
	current                     State
	lastOpenSessionBeaconSendMs atomic.Int64
	lastStatusCheckMs           atomic.Int64
	pendingRetryAfter           atomic.Int64 // milliseconds; 0 means none
}

// NewContext builds a Sending Context wired to its collaborators. rebuild is
// invoked to construct a fresh httpclient.Client whenever the configured
// ServerID changes.
func NewContext(
	c *cache.Cache,
	reg *session.Registry,
	cfgStore *config.Store,
	clk clock.Clock,
	sleeper clock.Sleeper,
	deviceID string,
	initialHTTPCfg httpclient.Config,
	rebuild func(httpclient.Config) httpclient.Client,
) *Context {
	ctx := &Context{
		Cache:      c,
		Registry:   reg,
		Config:     cfgStore,
		Clock:      clk,
		Sleeper:    sleeper,
		DeviceID:   deviceID,
		httpCfg:    initialHTTPCfg,
		rebuild:    rebuild,
		shutdownCh: make(chan struct{}),
		initDoneCh: make(chan struct{}),
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
	}
	ctx.httpClient = rebuild(initialHTTPCfg)
	ctx.current = &InitState{}
	return ctx
}

// GetHTTPClient returns the current HTTP client, rebuilding it first if the
// Configuration Store's ServerID has advanced since the client was last
// built.
func (c *Context) GetHTTPClient() httpclient.Client {
	snap := c.Config.Snapshot()
	c.httpMu.Lock()
	defer c.httpMu.Unlock()
	if c.httpCfg.ServerID != snap.ServerID || c.httpCfg.Endpoint != snap.Endpoint {
		c.httpCfg.ServerID = snap.ServerID
		c.httpCfg.Endpoint = snap.Endpoint
		c.httpCfg.ApplicationID = snap.ApplicationID
		c.httpClient = c.rebuild(c.httpCfg)
	}
	return c.httpClient
}

// Sleep blocks for d, or returns early if shutdown is requested. It
// respects a pending Retry-After floor set by HandleStatusResponse (spec
// §4.E CaptureOn: "honor retry-after as the minimum sleep").
func (c *Context) Sleep(d time.Duration) {
	if floor := c.pendingRetryAfter.Swap(0); floor > 0 {
		floorDur := time.Duration(floor) * time.Millisecond
		if floorDur > d {
			d = floorDur
		}
	}
	if !c.limiter.Allow() {
		_ = c.Sleeper.Sleep(50*time.Millisecond, c.shutdownCh)
	}
	c.Sleeper.Sleep(d, c.shutdownCh)
}

// RequestShutdown sets the shutdown flag and wakes the sender's sleep (spec
// §5, "Cancellation").
func (c *Context) RequestShutdown() {
	c.shutdown.Store(true)
	c.shutdownOnce.Do(func() { close(c.shutdownCh) })
}

// IsShutdownRequested reports whether RequestShutdown has been called.
func (c *Context) IsShutdownRequested() bool {
	return c.shutdown.Load()
}

// ShutdownChan exposes the shutdown signal for select-based waits in states.
func (c *Context) ShutdownChan() <-chan struct{} {
	return c.shutdownCh
}

// SetNextState replaces the current state. Called by a state's Execute at
// the end of its own turn (spec §4.E, §9: "transitions replace it").
func (c *Context) SetNextState(s State) {
	c.stateMu.Lock()
	c.current = s
	c.stateMu.Unlock()
	metrics.StateTransitionsTotal.WithLabelValues(s.Name()).Inc()
	log.WithComponent("sender").Debug().Str("state", s.Name()).Msg("state transition")
}

// CurrentState returns the state the worker loop should execute next.
func (c *Context) CurrentState() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.current
}

// SignalInitCompleted marks Init as having run to completion exactly once
// (success or failure), unblocking any WaitForInit callers.
func (c *Context) SignalInitCompleted() {
	c.initCompleted.Store(true)
	c.initDoneOnce.Do(func() { close(c.initDoneCh) })
	metrics.InitCompleted.Set(1)
}

// WaitForInit blocks until Init has completed or ctx is cancelled.
func (c *Context) WaitForInit(ctx context.Context) error {
	select {
	case <-c.initDoneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DisableCaptureAndClear sets capture off and purges every known session's
// cache partition.
func (c *Context) DisableCaptureAndClear() {
	c.Config.UpdateSettings(nil)
	c.clearAllSessions()
}

// HandleStatusResponse delegates to the Configuration Store and, if the
// response forbids capture, additionally clears the cache for all sessions.
// If the response is a 429, it also records the retry-after floor for the
// next Sleep call.
func (c *Context) HandleStatusResponse(resp *protocol.StatusResponse) {
	c.lastStatusCheckMs.Store(c.Clock.NowMillis())
	c.Config.UpdateSettings(resp)
	if resp != nil && resp.IsTooManyRequests() {
		c.pendingRetryAfter.Store(resp.RetryAfter.Milliseconds())
	}
	if !c.Config.Snapshot().Capture {
		c.clearAllSessions()
	}
}

// RecordThrottle records the Retry-After floor from a throttled (429) beacon
// response. Unlike HandleStatusResponse, it does not run UpdateSettings or
// clear any session's cache: a beacon-send 429 is a transient throttle (spec
// §7 kind 2), not a capture-off response, and the reset chunk it follows
// must survive for retry.
func (c *Context) RecordThrottle(resp *protocol.StatusResponse) {
	if resp != nil && resp.IsTooManyRequests() {
		c.pendingRetryAfter.Store(resp.RetryAfter.Milliseconds())
	}
}

func (c *Context) clearAllSessions() {
	for _, h := range c.Registry.SnapshotNew() {
		c.Cache.DeleteCacheEntry(h.Number)
	}
	for _, h := range c.Registry.SnapshotOpenConfigured() {
		c.Cache.DeleteCacheEntry(h.Number)
	}
	for _, h := range c.Registry.SnapshotFinishedConfigured() {
		c.Cache.DeleteCacheEntry(h.Number)
	}
}

// LastOpenSessionBeaconSendMs returns the last time an open-session beacon
// was sent, in epoch milliseconds.
func (c *Context) LastOpenSessionBeaconSendMs() int64 {
	return c.lastOpenSessionBeaconSendMs.Load()
}

// MarkOpenSessionBeaconSent records that an open-session beacon was just sent.
func (c *Context) MarkOpenSessionBeaconSent() {
	c.lastOpenSessionBeaconSendMs.Store(c.Clock.NowMillis())
}

// LastStatusCheckMs returns the last time a status check was performed.
func (c *Context) LastStatusCheckMs() int64 {
	return c.lastStatusCheckMs.Load()
}
