// Package openkit wires the Beacon Cache, Session Registry, Configuration
// Store, and Sending State Machine into the single public entry point
// applications embed: Agent.
package openkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openkit-go/openkit/internal/cache"
	"github.com/openkit-go/openkit/internal/clock"
	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/diagnostics"
	"github.com/openkit-go/openkit/internal/httpclient"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/providers"
	"github.com/openkit-go/openkit/internal/reporting"
	"github.com/openkit-go/openkit/internal/sending"
	"github.com/openkit-go/openkit/internal/session"
	"github.com/openkit-go/openkit/internal/telemetry"
)

// AgentConfig configures a new Agent. Endpoint and ApplicationID are
// required; everything else has sane defaults matching spec §3/§4.C.
type AgentConfig struct {
	Endpoint       string
	ApplicationID  string
	FileConfigPath string // optional YAML identity/config file (internal/config)

	CacheHighWaterBytes int64
	CacheLowWaterBytes  int64
	MaxRecordAgeMs      int64

	Diagnostics diagnostics.Config
	Telemetry   telemetry.Config
}

const (
	defaultHighWaterBytes = 100 * 1024 * 1024
	defaultLowWaterBytes  = 80 * 1024 * 1024
	defaultMaxRecordAgeMs = int64(2 * 60 * 60 * 1000) // 2 hours
)

// Agent is the public surface: create sessions, shut down cleanly.
type Agent struct {
	cache    *cache.Cache
	registry *session.Registry
	store    *config.Store
	sendCtx  *sending.Context
	sessions providers.SessionIDProvider
	clk      clock.Clock
	deviceID string

	loader            *config.Loader
	diag              *diagnostics.Server
	telemetryShutdown func(context.Context) error

	group      *errgroup.Group
	cancelFunc context.CancelFunc
	shutdownMu sync.Mutex
	shutDown   bool
}

// New builds and starts an Agent: the sender goroutine, the eviction
// goroutine, and (if configured) the diagnostics server, all supervised by
// one errgroup (spec §5, "one dedicated sender thread... one optional
// eviction thread").
func New(cfg AgentConfig) (*Agent, error) {
	if cfg.Endpoint == "" || cfg.ApplicationID == "" {
		return nil, fmt.Errorf("openkit: Endpoint and ApplicationID are required")
	}

	var fc config.FileConfig
	if cfg.FileConfigPath != "" {
		loader := config.NewLoader(cfg.FileConfigPath)
		loaded, err := loader.Load()
		if err != nil {
			return nil, fmt.Errorf("openkit: load config: %w", err)
		}
		fc = loaded
	}

	deviceID := fc.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	highWater := cfg.CacheHighWaterBytes
	if highWater == 0 {
		highWater = defaultHighWaterBytes
	}
	lowWater := cfg.CacheLowWaterBytes
	if lowWater == 0 {
		lowWater = defaultLowWaterBytes
	}
	maxAge := cfg.MaxRecordAgeMs
	if maxAge == 0 {
		maxAge = defaultMaxRecordAgeMs
	}

	c := cache.New(cache.Config{HighWaterBytes: highWater, LowWaterBytes: lowWater, MaxRecordAgeMs: maxAge})
	reg := session.NewRegistry()
	store := config.NewStore(cfg.ApplicationID, cfg.Endpoint, fc)
	clk := clock.System{}

	httpCfg := httpclient.Config{Endpoint: cfg.Endpoint, ApplicationID: cfg.ApplicationID, ServerID: config.DefaultServerID}
	sendCtx := sending.NewContext(c, reg, store, clk, clk, deviceID, httpCfg, func(hc httpclient.Config) httpclient.Client {
		return httpclient.New(hc)
	})

	telemetryShutdown, err := telemetry.Init(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("openkit: init telemetry: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	a := &Agent{
		cache:             c,
		registry:          reg,
		store:             store,
		sendCtx:           sendCtx,
		sessions:          providers.NewMonotonic(),
		clk:               clk,
		deviceID:          deviceID,
		telemetryShutdown: telemetryShutdown,
		group:             group,
		cancelFunc:        cancel,
	}

	eviction := cache.NewEviction(c, clk)
	group.Go(func() error {
		eviction.Run(gctx)
		return nil
	})

	group.Go(func() error {
		sending.NewMachine(sendCtx).Run()
		return nil
	})

	if cfg.FileConfigPath != "" {
		a.loader = config.NewLoader(cfg.FileConfigPath)
		done := make(chan struct{})
		group.Go(func() error {
			<-gctx.Done()
			close(done)
			return nil
		})
		a.loader.Watch(done, func(config.Identity) {
			log.WithComponent("openkit").Info().Msg("identity config reloaded")
		})
	}

	if d := diagnostics.New(cfg.Diagnostics, func() bool { return true }); d != nil {
		a.diag = d
		group.Go(func() error {
			return d.Start(gctx)
		})
	}

	return a, nil
}

// WaitForInit blocks until the sending state machine has completed its
// first status round-trip (spec §4.D, "one-shot waitable for callers of
// waitForInit").
func (a *Agent) WaitForInit(ctx context.Context) error {
	return a.sendCtx.WaitForInit(ctx)
}

// CreateSession registers a new session and returns its fluent reporting
// facade, or the null-object Session if the agent is shutting down (spec
// §5 Cancellation, §7 error kind 6).
func (a *Agent) CreateSession(clientIP string) reporting.Session {
	_ = clientIP // reserved for future IP-based geolocation fields in the beacon prefix
	if a.sendCtx.IsShutdownRequested() {
		return reporting.NoOpSession
	}

	number := a.sessions.NextSessionID()
	h := session.NewHandle(number, a.clk.NowMillis())
	if err := a.registry.StartSession(h); err != nil {
		log.WithComponent("openkit").Error().Err(err).Int32("session", number).Msg("failed to start session")
		return reporting.NoOpSession
	}

	snap := a.store.Snapshot()
	cfg := session.DefaultBeaconConfiguration()
	cfg.CrashReportingLevel = crashLevelFromSnapshot(snap)
	a.registry.AttachConfiguration(h, cfg)

	return reporting.NewSession(h, a.cache, a.registry, a.clk)
}

func crashLevelFromSnapshot(snap config.Snapshot) session.CrashReportingLevel {
	if snap.CaptureCrashes {
		return session.CrashReportingOptedIn
	}
	return session.CrashReportingOptedOut
}

// Shutdown requests cooperative shutdown of the sender and eviction
// goroutines, waits for the bounded flush to complete, and stops the
// diagnostics server. Safe to call more than once.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutDown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutDown = true
	a.shutdownMu.Unlock()

	a.sendCtx.RequestShutdown()
	a.cancelFunc()

	done := make(chan error, 1)
	go func() { done <- a.group.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	if err := a.telemetryShutdown(ctx); err != nil && waitErr == nil {
		waitErr = err
	}
	return waitErr
}
