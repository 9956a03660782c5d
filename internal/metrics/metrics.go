// Package metrics provides Prometheus instrumentation for the PeerDrill
// matchmaking services. It exposes gauges for queue and connection counts,
// counters for match lifecycle outcomes, and histograms for handoff latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerdrill_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// QueueSize tracks the current number of participants waiting for a match.
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "peerdrill_match_queue_size",
		Help: "Current number of participants in the waiting pool",
	})

	// MatchesProposed counts match proposals offered to participant pairs.
	MatchesProposed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerdrill_matches_proposed_total",
		Help: "Total number of match proposals",
	})

	// MatchOutcomes counts resolved proposals, labeled by outcome:
	// "accepted", "rejected", "expired", or "handoff_failed".
	MatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "peerdrill_match_outcomes_total",
		Help: "Total number of resolved match proposals",
	}, []string{"outcome"})

	// ClaimContention counts pair claims lost to a concurrent scan.
	ClaimContention = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerdrill_claim_contention_total",
		Help: "Pair claims that failed because another scan got there first",
	})

	// HandoffDuration records session handoff latency in seconds.
	HandoffDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "peerdrill_handoff_duration_seconds",
		Help:    "Session handoff latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// SweeperEvictions counts waiting participants evicted for missed heartbeats.
	SweeperEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "peerdrill_sweeper_evictions_total",
		Help: "Waiting participants evicted by the liveness sweeper",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		QueueSize,
		MatchesProposed,
		MatchOutcomes,
		ClaimContention,
		HandoffDuration,
		SweeperEvictions,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
