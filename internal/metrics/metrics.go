// Package metrics provides Prometheus metrics for the OpenKit agent's
// internal subsystems: cache occupancy, session lifecycle, and the sending
// state machine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheBytes tracks the current cache-wide byte total.
	CacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openkit_cache_bytes",
		Help: "Current total bytes held by the beacon cache across all session partitions.",
	})

	// CacheEvictionsTotal counts evicted records by strategy ("age" or "space").
	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openkit_cache_evictions_total",
		Help: "Total number of beacon records evicted from the cache, by eviction strategy.",
	}, []string{"strategy"})

	// SessionsActive tracks the number of sessions currently in each
	// registry bucket ("new", "open_configured", "finished_configured").
	SessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "openkit_sessions_active",
		Help: "Current number of sessions tracked by the registry, by lifecycle bucket.",
	}, []string{"bucket"})

	// BeaconSendsTotal counts beacon send attempts by outcome
	// ("success", "throttled", "server_error", "client_error",
	// "transport_error").
	BeaconSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openkit_beacon_sends_total",
		Help: "Total number of beacon send attempts, by outcome.",
	}, []string{"outcome"})

	// StateTransitionsTotal counts sending-state-machine transitions by
	// destination state name.
	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openkit_state_transitions_total",
		Help: "Total number of sending state machine transitions, by destination state.",
	}, []string{"state"})

	// InitCompleted is 1 once the sending state machine has left Init at
	// least once (success or failure), 0 until then.
	InitCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openkit_init_completed",
		Help: "1 once the sending state machine has completed its initial status check, 0 until then.",
	})
)
