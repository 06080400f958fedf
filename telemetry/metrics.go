// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	TurnsReceived      prometheus.Counter
	TurnsFiltered      prometheus.Counter
	TurnsNoMention     prometheus.Counter
	TurnsDropped       prometheus.Counter
	BackendInvocations prometheus.Counter
	BackendFailures    prometheus.Counter
	BackendTimeouts    prometheus.Counter
	DispatchFailures   prometheus.Counter
	TurnsSucceeded     prometheus.Counter

	// Histograms (seconds)
	GenerateDuration prometheus.Observer
	TurnDuration     prometheus.Observer

	// Gauges
	QueueDepthGauge    prometheus.Gauge
	InFlightTurnsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		TurnsReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_turns_received_total", Help: "Number of chat messages entering the turn pipeline"})
		TurnsFiltered = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_turns_filtered_total", Help: "Number of messages from ignored senders"})
		TurnsNoMention = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_turns_no_mention_total", Help: "Number of messages that did not address the bot"})
		TurnsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_turns_dropped_total", Help: "Number of eligible messages shed due to backpressure"})
		BackendInvocations = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_backend_invocations_total", Help: "Number of backend generate calls"})
		BackendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_backend_failures_total", Help: "Number of backend generate calls that failed"})
		BackendTimeouts = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_backend_timeouts_total", Help: "Number of backend generate calls that timed out"})
		DispatchFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_dispatch_failures_total", Help: "Number of outbound sends that failed"})
		TurnsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_turns_succeeded_total", Help: "Number of turns dispatched end to end"})
		GenerateDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_generate_duration_seconds", Help: "Backend generation duration seconds", Buckets: prometheus.DefBuckets})
		TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_turn_duration_seconds", Help: "Total turn duration seconds", Buckets: prometheus.DefBuckets})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_turn_queue_depth", Help: "Current number of queued eligible turns"})
		InFlightTurnsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_turns_in_flight", Help: "Current number of turns being processed"})
	})
}

// SetQueueDepth records the current number of queued turns.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
