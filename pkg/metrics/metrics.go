package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling metrics
	SchedulingOperations *prometheus.CounterVec
	SchedulingConflicts  prometheus.Counter

	// Availability broadcast metrics
	BroadcastTicks        prometheus.Counter
	BroadcastTickFailures prometheus.Counter
	BroadcastTickDuration prometheus.Histogram
	ConnectedObservers    prometheus.Gauge

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SchedulingOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduling_operations_total",
			Help:      "Total number of scheduling operations by operation and outcome",
		}, []string{"operation", "status"}),
		SchedulingConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduling_conflicts_total",
			Help:      "Total number of rejected bookings due to conflicts or lead-time violations",
		}),
		BroadcastTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_ticks_total",
			Help:      "Total number of availability broadcast ticks",
		}),
		BroadcastTickFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_tick_failures_total",
			Help:      "Total number of availability broadcast ticks that failed",
		}),
		BroadcastTickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_tick_duration_seconds",
			Help:      "Time spent computing and publishing one availability snapshot",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		ConnectedObservers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_observers",
			Help:      "Current number of connected availability feed observers",
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
