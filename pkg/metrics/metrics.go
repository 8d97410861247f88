// Package metrics provides Prometheus instrumentation for lazypool components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for lazypool components.
type Registry struct {
	// Pool submission metrics
	TasksSubmitted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec

	// Task execution metrics
	TasksExecuted         *prometheus.CounterVec
	TasksPanicked         *prometheus.CounterVec
	TaskQueueWait         *prometheus.HistogramVec
	TaskExecutionDuration *prometheus.HistogramVec

	// Worker state gauges
	WorkerPoolMax    *prometheus.GaugeVec
	WorkerPoolLive   *prometheus.GaugeVec
	WorkerPoolBusy   *prometheus.GaugeVec
	WorkerPoolQueued *prometheus.GaugeVec

	// Scheduler metrics
	JobsDispatched *prometheus.CounterVec
	JobsMissed     *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by lazypool components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer
// under the default namespace.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honoring the namespace and
// constant labels from cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Registry{
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "tasks_submitted_total",
				Help:        "Total number of tasks accepted by the pool",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "tasks_rejected_total",
				Help:        "Total number of rejected submissions by reason",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name", "reason"},
		),

		TasksExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "tasks_executed_total",
				Help:        "Total number of tasks that finished executing, including those that panicked",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		TasksPanicked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "tasks_panicked_total",
				Help:        "Total number of tasks that panicked",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		TaskQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "task_queue_wait_seconds",
				Help:        "Time between submission and the start of execution",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "task_duration_seconds",
				Help:        "Time spent executing tasks",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolMax: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "max_workers",
				Help:        "Upper bound on the number of workers",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolLive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "live_workers",
				Help:        "Number of workers started so far",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolBusy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "busy_workers",
				Help:        "Number of workers currently executing a task",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "threadpool",
				Name:        "queued_tasks",
				Help:        "Number of tasks waiting in the queue",
				ConstLabels: cfg.Labels,
			},
			[]string{"pool_name"},
		),

		JobsDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "jobs_dispatched_total",
				Help:        "Total number of scheduled runs handed to the pool",
				ConstLabels: cfg.Labels,
			},
			[]string{"scheduler_name"},
		),

		JobsMissed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "scheduler",
				Name:        "jobs_missed_total",
				Help:        "Total number of scheduled runs the pool rejected",
				ConstLabels: cfg.Labels,
			},
			[]string{"scheduler_name"},
		),
	}
}

// Collectors returns every collector in the registry.
func (r *Registry) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.TasksSubmitted, r.TasksRejected,
		r.TasksExecuted, r.TasksPanicked, r.TaskQueueWait, r.TaskExecutionDuration,
		r.WorkerPoolMax, r.WorkerPoolLive, r.WorkerPoolBusy, r.WorkerPoolQueued,
		r.JobsDispatched, r.JobsMissed,
	}
}

// Unregister removes every collector of r from reg.
func (r *Registry) Unregister(reg prometheus.Registerer) {
	for _, c := range r.Collectors() {
		reg.Unregister(c)
	}
}
