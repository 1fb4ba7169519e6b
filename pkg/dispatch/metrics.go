package dispatch

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// taskCount is a Counter vector of executed tasks
	taskCount *prometheus.CounterVec
	// taskLatency is a Histogram that keeps track of task execution durations
	taskLatency prometheus.Histogram
	// tasksInFlight is a Gauge of tasks currently being executed
	tasksInFlight prometheus.Gauge
	// lastRunTimestamp is a Gauge that captures the timestamp of the last
	// completed dispatch run
	lastRunTimestamp prometheus.Gauge
)

// EnableMetrics will enable metrics collection for dispatched tasks.
// Available metrics are...
//   - dispatch_tasks_total - (tags: success)
//     A Counter incremented for each executed task and tagged with the result (success=true|false)
//   - dispatch_task_duration_seconds
//     A Histogram that keeps track of task execution time.
//   - dispatch_tasks_in_flight
//     A Gauge of tasks claimed by workers and not yet finished.
//   - dispatch_last_run_timestamp
//     A Gauge that captures the Timestamp of the last completed run.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	taskCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "dispatch_tasks_total",
		Help:      "Count of executed tasks",
	},
		[]string{
			// Whether the task was successful or not
			"success",
		},
	)

	taskLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "dispatch_task_duration_seconds",
		Help:      "Execution time of dispatched tasks",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
	})

	tasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "dispatch_tasks_in_flight",
		Help:      "Number of tasks currently executed by workers",
	})

	lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "dispatch_last_run_timestamp",
		Help:      "Timestamp of the last completed dispatch run",
	})

	registerer.MustRegister(
		taskCount,
		taskLatency,
		tasksInFlight,
		lastRunTimestamp,
	)
}

// recordTask records a task execution by updating all the relevant metrics
func recordTask(success bool, start time.Time) {
	// if metrics not enabled return
	if taskCount == nil || taskLatency == nil {
		return
	}
	taskCount.With(prometheus.Labels{
		"success": strconv.FormatBool(success),
	}).Inc()
	taskLatency.Observe(time.Since(start).Seconds())
}

func inFlightInc() {
	if tasksInFlight == nil {
		return
	}
	tasksInFlight.Inc()
}

func inFlightDec() {
	if tasksInFlight == nil {
		return
	}
	tasksInFlight.Dec()
}

func recordRun() {
	if lastRunTimestamp == nil {
		return
	}
	lastRunTimestamp.SetToCurrentTime()
}
