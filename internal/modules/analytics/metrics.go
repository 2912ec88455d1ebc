package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rampwatch",
			Subsystem: "analytics",
			Name:      "evaluations_total",
			Help:      "Analytics computations run, by kind.",
		},
		[]string{"kind"},
	)

	evaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rampwatch",
			Subsystem: "analytics",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent computing analytics, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"kind"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rampwatch",
			Subsystem: "analytics",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups, by outcome.",
		},
		[]string{"result"},
	)

	tapesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rampwatch",
			Subsystem: "tapes",
			Name:      "ingested_total",
			Help:      "Tape uploads, by outcome.",
		},
		[]string{"result"},
	)

	activeAlerts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rampwatch",
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Alerts in the latest evaluation, by warehouse and severity.",
		},
		[]string{"warehouse", "severity"},
	)

	stressedOC = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rampwatch",
			Subsystem: "stress",
			Name:      "stressed_oc_ratio",
			Help:      "Stressed OC ratio of the latest stress run, by warehouse and preset.",
		},
		[]string{"warehouse", "preset"},
	)
)
