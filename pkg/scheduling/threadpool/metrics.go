package threadpool

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	lperrors "github.com/vnykmshr/lazypool/pkg/common/errors"
	"github.com/vnykmshr/lazypool/pkg/metrics"
)

// MetricsPool wraps a Pool with Prometheus metrics collection.
// Submissions made through MetricsPool are instrumented; the embedded
// Pool's diagnostics are available unchanged.
type MetricsPool struct {
	*Pool
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var _ metrics.Instrumentable = (*MetricsPool)(nil)

// NewWithMetrics creates a pool whose submissions and task executions are
// recorded under the given pool name.
//
// A nil Registry or prometheus.DefaultRegisterer with the default namespace
// and no constant labels shares metrics.DefaultRegistry. Any other
// combination registers its own collectors, so it must not be repeated on
// the same registerer.
func NewWithMetrics(config Config, name string, metricsConfig metrics.Config) (*MetricsPool, error) {
	mp := &MetricsPool{name: name}

	userHandler := config.PanicHandler
	config.PanicHandler = func(task Task, recovered interface{}) {
		if mp.enabled.Load() {
			mp.registry.Load().TasksPanicked.WithLabelValues(mp.name).Inc()
		}
		if userHandler != nil {
			userHandler(task, recovered)
			return
		}
		mp.logger.Error("task panicked",
			"pool_name", mp.name,
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
	}

	pool, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	mp.Pool = pool

	if err := mp.EnableMetrics(metricsConfig); err != nil {
		return nil, err
	}
	return mp, nil
}

func registryFor(config metrics.Config) *metrics.Registry {
	defaultRegisterer := config.Registry == nil || config.Registry == prometheus.DefaultRegisterer
	defaultNamespace := config.Namespace == "" || config.Namespace == metrics.DefaultNamespace
	if defaultRegisterer && defaultNamespace && len(config.Labels) == 0 {
		return metrics.DefaultRegistry
	}
	return metrics.NewRegistryWithConfig(config)
}

// Submit queues fn(ctx, arg) and records the outcome.
func (mp *MetricsPool) Submit(fn Func, arg interface{}) error {
	return mp.SubmitTask(NewTask(fn, arg))
}

// SubmitTask queues task and records the outcome.
func (mp *MetricsPool) SubmitTask(task Task) error {
	err := mp.Pool.SubmitTask(mp.wrap(task))
	mp.observeSubmit(err)
	return err
}

// SubmitWithContext retries while the queue is full and records the final outcome.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	err := mp.Pool.SubmitWithContext(ctx, mp.wrap(task))
	mp.observeSubmit(err)
	return err
}

// Shutdown shuts the pool down and publishes the final gauges.
func (mp *MetricsPool) Shutdown(immediate bool) {
	mp.Pool.Shutdown(immediate)
	mp.updateMetrics()
}

// ShutdownContext is Shutdown bounded by ctx.
func (mp *MetricsPool) ShutdownContext(ctx context.Context, immediate bool) error {
	err := mp.Pool.ShutdownContext(ctx, immediate)
	mp.updateMetrics()
	return err
}

// wrap instruments a task with queue wait and execution timing. A nil
// function is passed through so the pool rejects it.
func (mp *MetricsPool) wrap(task Task) Task {
	if task.Fn == nil {
		return task
	}

	submitted := time.Now()
	fn := task.Fn
	task.Fn = func(ctx context.Context, arg interface{}) {
		start := time.Now()
		if mp.enabled.Load() {
			mp.registry.Load().TaskQueueWait.WithLabelValues(mp.name).Observe(start.Sub(submitted).Seconds())
		}

		// Deferred so panics are still timed; recovery is left to the worker.
		defer func() {
			if !mp.enabled.Load() {
				return
			}
			reg := mp.registry.Load()
			reg.TaskExecutionDuration.WithLabelValues(mp.name).Observe(time.Since(start).Seconds())
			reg.TasksExecuted.WithLabelValues(mp.name).Inc()
			mp.updateMetrics()
		}()

		fn(ctx, arg)
	}
	return task
}

func (mp *MetricsPool) observeSubmit(err error) {
	if !mp.enabled.Load() {
		return
	}

	reg := mp.registry.Load()
	switch {
	case err == nil:
		reg.TasksSubmitted.WithLabelValues(mp.name).Inc()
	case errors.Is(err, ErrQueueFull):
		reg.TasksRejected.WithLabelValues(mp.name, "queue_full").Inc()
	case errors.Is(err, ErrPoolClosed):
		reg.TasksRejected.WithLabelValues(mp.name, "pool_closed").Inc()
	case lperrors.IsValidationError(err):
		reg.TasksRejected.WithLabelValues(mp.name, "invalid").Inc()
	default:
		reg.TasksRejected.WithLabelValues(mp.name, "canceled").Inc()
	}
	mp.updateMetrics()
}

// updateMetrics updates the current state gauges.
func (mp *MetricsPool) updateMetrics() {
	if !mp.enabled.Load() {
		return
	}

	reg := mp.registry.Load()
	reg.WorkerPoolMax.WithLabelValues(mp.name).Set(float64(mp.MaxWorkers()))
	reg.WorkerPoolLive.WithLabelValues(mp.name).Set(float64(mp.LiveWorkers()))
	reg.WorkerPoolBusy.WithLabelValues(mp.name).Set(float64(mp.BusyWorkers()))
	reg.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.Queued()))
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	if !config.Enabled {
		mp.DisableMetrics()
		return nil
	}

	mp.registry.Store(registryFor(config))
	mp.enabled.Store(true)
	mp.updateMetrics()
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled.Load()
}
