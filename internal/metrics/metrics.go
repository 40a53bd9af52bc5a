package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "renderfarm"
	subsystem = "scheduler"
)

var (
	framesAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_available",
			Help:      "Frames sitting in the pool, not leased to any worker.",
		},
	)
	framesLeased = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_leased",
			Help:      "Frames held by worker tasks, including uploads in flight.",
		},
	)
	framesCompleted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_completed",
			Help:      "Frames whose rendered output was persisted.",
		},
	)
	activeLeases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_leases",
			Help:      "Tasks currently present in the lease table.",
		},
	)

	tasksAssigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_assigned_total",
			Help:      "Tasks created for newly registered workers.",
		},
	)
	noWorkResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "no_work_available_total",
			Help:      "Requests answered with no work available, by operation.",
		},
		[]string{"operation"},
	)
	framesSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_submitted_total",
			Help:      "Frame submissions by outcome (persisted, persistence_failed).",
		},
		[]string{"outcome"},
	)
	leasesReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "leases_reclaimed_total",
			Help:      "Expired tasks removed by the sweeper.",
		},
	)
	framesReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_reclaimed_total",
			Help:      "Frames returned to the pool from expired tasks.",
		},
	)
	heartbeats = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "heartbeats_total",
			Help:      "Accepted worker heartbeats.",
		},
	)
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Coordinator HTTP request latency by route and status code.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "code"},
)

var registerMetrics sync.Once

// Register adds every scheduler collector to reg. Later calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerMetrics.Do(func() {
		reg.MustRegister(framesAvailable)
		reg.MustRegister(framesLeased)
		reg.MustRegister(framesCompleted)
		reg.MustRegister(activeLeases)
		reg.MustRegister(tasksAssigned)
		reg.MustRegister(noWorkResponses)
		reg.MustRegister(framesSubmitted)
		reg.MustRegister(leasesReclaimed)
		reg.MustRegister(framesReclaimed)
		reg.MustRegister(heartbeats)
		reg.MustRegister(requestDuration)
	})
}

// ObserveState publishes the current partition of frames. The gauges are
// process-wide, so with more than one scheduler in a process the last writer
// wins; a coordinator runs exactly one.
func ObserveState(available, leased, completed, leases int) {
	framesAvailable.Set(float64(available))
	framesLeased.Set(float64(leased))
	framesCompleted.Set(float64(completed))
	activeLeases.Set(float64(leases))
}

func RecordTaskAssigned() {
	tasksAssigned.Inc()
}

func RecordNoWork(operation string) {
	noWorkResponses.WithLabelValues(operation).Inc()
}

func RecordFrameSubmitted(outcome string) {
	framesSubmitted.WithLabelValues(outcome).Inc()
}

func RecordReclaim(frames int) {
	leasesReclaimed.Inc()
	framesReclaimed.Add(float64(frames))
}

func RecordHeartbeat() {
	heartbeats.Inc()
}

func ObserveRequest(method, route string, status int, d time.Duration) {
	requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
