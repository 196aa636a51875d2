// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesTotal tracks decoded stream frames by kind.
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_frames_total",
			Help: "Decoded stream frames by kind",
		},
		[]string{"kind"},
	)

	// UnknownEventsTotal tracks lines that degraded to the unknown event.
	UnknownEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_unknown_events_total",
			Help: "Stream lines that could not be decoded",
		},
	)

	// DroppedDeltasTotal tracks content deltas with no matching active message.
	DroppedDeltasTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_dropped_deltas_total",
			Help: "Content deltas dropped for lack of a matching active message",
		},
	)

	// SendsTotal tracks send operations by outcome.
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sends_total",
			Help: "Send operations by outcome",
		},
		[]string{"outcome"},
	)

	// SendDuration tracks the duration of a full send cycle.
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_send_duration_seconds",
			Help:    "Full send cycle duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model"},
	)

	// TokensTotal tracks token usage reported at stream end.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tokens_total",
			Help: "Token usage reported by the service",
		},
		[]string{"model", "direction"},
	)

	// SnapshotMergesTotal tracks store snapshot merges into local state.
	SnapshotMergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_snapshot_merges_total",
			Help: "Remote snapshot merges applied to local thread state",
		},
	)

	// StoreMutationsTotal tracks store mutations by function and result.
	StoreMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_mutations_total",
			Help: "Remote store mutations by function and result",
		},
		[]string{"function", "result"},
	)

	// StoreReconnectsTotal tracks store transport reconnect attempts.
	StoreReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_store_reconnects_total",
			Help: "Real-time store transport reconnects",
		},
	)
)

// RecordSend records one completed send cycle.
func RecordSend(model, outcome string, seconds float64) {
	SendsTotal.WithLabelValues(outcome).Inc()
	SendDuration.WithLabelValues(model).Observe(seconds)
}

// RecordUsage records token usage for one response.
func RecordUsage(model string, promptTokens, completionTokens int) {
	TokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	TokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordMutation records one store mutation attempt.
func RecordMutation(function string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreMutationsTotal.WithLabelValues(function, result).Inc()
}
