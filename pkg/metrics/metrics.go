package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ModelLabel   = "model"
	VerdictLabel = "verdict"
	ReasonLabel  = "reason"
	Outcome      = "outcome"
	Succeeded    = "succeeded"
	Failed       = "failed"
)

// To add new metrics:
// 1. Declare them below.
// 2. Register them in Register().
var (
	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checks_total",
			Help: "Monotonic count of finished consistency checks",
		},
		[]string{ModelLabel, VerdictLabel, ReasonLabel},
	)

	checkDurationSummary = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "check_duration_seconds",
			Help:       "The duration of a consistency check, from graph construction to verdict",
			Objectives: map[float64]float64{0.95: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{ModelLabel, Outcome},
	)

	encodingClauses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "encoding_clauses",
			Help:    "Number of clauses in the encodings handed to the solver",
			Buckets: prometheus.ExponentialBuckets(16, 4, 10),
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of checks waiting for a worker",
		},
	)

	registerOnce sync.Once
)

// Register adds every polycheck collector to the default registry. It
// is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(checksTotal)
		prometheus.MustRegister(checkDurationSummary)
		prometheus.MustRegister(encodingClauses)
		prometheus.MustRegister(queueDepth)
	})
}

func EmitCheck(model, verdict, reason string) {
	checksTotal.WithLabelValues(model, verdict, reason).Inc()
}

func RegisterCheckSuccess(model string, duration time.Duration) {
	checkDurationSummary.WithLabelValues(model, Succeeded).Observe(duration.Seconds())
}

func RegisterCheckFailure(model string, duration time.Duration) {
	checkDurationSummary.WithLabelValues(model, Failed).Observe(duration.Seconds())
}

func ObserveEncodingClauses(n int) {
	encodingClauses.Observe(float64(n))
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
