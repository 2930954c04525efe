package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-reliability/internal/models"
)

// Tick outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
	OutcomeEmpty   = "empty"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reliability_monitor",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	reportSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reliability_monitor",
			Name:      "report_seconds",
			Help:      "Report generation latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
		},
	)

	anomalies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "reliability_monitor",
			Name:      "anomalies",
			Help:      "Anomaly count in the latest report, partitioned by severity.",
		},
		[]string{"severity"},
	)

	escalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reliability_monitor",
			Name:      "escalations_total",
			Help:      "Total number of critical-issue escalations delivered to the host.",
		},
	)

	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reliability_monitor",
			Name:      "fetches_total",
			Help:      "Total number of store fetches, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches reliability-monitor collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ticksTotal,
		reportSeconds,
		anomalies,
		escalationsTotal,
		fetchesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTick records a completed (or skipped) scheduler tick.
func ObserveTick(duration time.Duration, outcome string) {
	ticksTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSkipped {
		return
	}
	if duration < 0 {
		duration = 0
	}
	reportSeconds.Observe(duration.Seconds())
}

// SetAnomalyCounts publishes the severity breakdown of the latest report.
func SetAnomalyCounts(critical, warning, info int) {
	anomalies.WithLabelValues(string(models.SeverityCritical)).Set(float64(critical))
	anomalies.WithLabelValues(string(models.SeverityWarning)).Set(float64(warning))
	anomalies.WithLabelValues(string(models.SeverityInfo)).Set(float64(info))
}

// ObserveEscalation counts one delivered critical-issue notification.
func ObserveEscalation() {
	escalationsTotal.Inc()
}

// ObserveFetch counts one explicit store fetch.
func ObserveFetch(outcome string) {
	fetchesTotal.WithLabelValues(outcome).Inc()
}
