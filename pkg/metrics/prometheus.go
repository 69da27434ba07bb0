package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal     *prometheus.CounterVec
	messagesSent   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastMultiplier *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rugtracker_ticks_total",
				Help: "Total number of game ticks processed",
			},
			[]string{"episode"},
		),
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rugtracker_messages_sent_total",
				Help: "Total number of records sent to backend",
			},
			[]string{"backend", "kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rugtracker_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastMultiplier: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rugtracker_last_multiplier",
				Help: "Last observed price multiplier per episode",
			},
			[]string{"episode"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rugtracker_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordTick counts one processed tick.
func (r *Recorder) RecordTick(episodeID string) {
	r.ticksTotal.WithLabelValues(episodeID).Inc()
}

// RecordMessageSent records a record sent to a backend.
func (r *Recorder) RecordMessageSent(backend, kind string) {
	r.messagesSent.WithLabelValues(backend, kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastMultiplier records the latest multiplier for an episode.
func (r *Recorder) RecordLastMultiplier(episodeID string, multiplier float64) {
	r.lastMultiplier.WithLabelValues(episodeID).Set(multiplier)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
