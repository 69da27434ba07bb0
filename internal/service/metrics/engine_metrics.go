package metrics

import "github.com/prometheus/client_golang/prometheus"

// Calibration-core gauges, updated by the tick processor.
var (
	CalibrationAlpha = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rugtracker",
		Subsystem: "engine",
		Name:      "conformal_alpha",
		Help:      "Current conformal miscoverage rate",
	})

	DriftEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rugtracker",
		Subsystem: "engine",
		Name:      "drift_events",
		Help:      "Cumulative Page-Hinkley drift firings",
	})

	SideBetsRecommended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rugtracker",
		Subsystem: "engine",
		Name:      "side_bets_recommended_total",
		Help:      "PLACE recommendations emitted",
	})
)
