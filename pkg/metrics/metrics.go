package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bus metrics
	MessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_messages_consumed_total",
			Help: "Total number of messages fetched from the input topic by consumer group",
		},
		[]string{"group"},
	)

	MessagesProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_messages_produced_total",
			Help: "Total number of messages enqueued to an output topic",
		},
		[]string{"topic"},
	)

	PoisonMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_poison_messages_total",
			Help: "Total number of undecodable messages committed and skipped",
		},
		[]string{"group"},
	)

	HandlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_handler_errors_total",
			Help: "Total number of handler failures by consumer group and kind",
		},
		[]string{"group", "kind"},
	)

	OffsetCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_offset_commits_total",
			Help: "Total number of committed input offsets",
		},
		[]string{"group"},
	)

	StateSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_state_syncs_total",
			Help: "Total number of state store sync operations",
		},
		[]string{"topic"},
	)

	StateDeltaSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rustyrobot_state_delta_entries",
			Help:    "Number of changed entries published per state sync",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"topic"},
	)

	// Remote API metrics
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_github_requests_total",
			Help: "Total number of remote API requests by protocol version and outcome",
		},
		[]string{"version", "outcome"},
	)

	APIRateLimitSleeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustyrobot_github_rate_limit_sleeps_total",
			Help: "Total number of pre-request admissions that slept for quota reset",
		},
		[]string{"version"},
	)

	APIRateLimitRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rustyrobot_github_rate_limit_remaining",
			Help: "Most recently observed remaining remote API quota",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesConsumed,
		MessagesProduced,
		PoisonMessages,
		HandlerErrors,
		OffsetCommits,
		StateSyncs,
		StateDeltaSize,
		APIRequests,
		APIRateLimitSleeps,
		APIRateLimitRemaining,
	)
}

// Serve exposes /metrics on addr. It returns immediately; the listener runs
// until the process exits. An empty addr disables the endpoint.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		_ = server.ListenAndServe()
	}()
}
