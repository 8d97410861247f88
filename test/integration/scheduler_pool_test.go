// Package integration contains integration tests that verify cross-package functionality.
// These tests ensure that different components work together correctly in realistic scenarios.
package integration

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/lazypool/internal/testutil"
	"github.com/vnykmshr/lazypool/internal/workload"
	"github.com/vnykmshr/lazypool/pkg/metrics"
	"github.com/vnykmshr/lazypool/pkg/scheduling/scheduler"
	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

func newMetricsPool(t *testing.T, cfg threadpool.Config, name string) (*threadpool.MetricsPool, prometheus.Gatherer) {
	t.Helper()
	reg := prometheus.NewRegistry()
	pool, err := threadpool.NewWithMetrics(cfg, name, metrics.Config{Enabled: true, Registry: reg})
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return pool, reg
}

// TestSchedulerOverloadedPool verifies that a scheduler feeding a saturated
// pool records missed runs instead of blocking, and that both sides report
// consistent numbers.
func TestSchedulerOverloadedPool(t *testing.T) {
	pool, gatherer := newMetricsPool(t, threadpool.Config{MaxWorkers: 1, QueueCapacity: 1}, "overloaded")

	blocker := workload.NewBlocker()
	hold := threadpool.NewTask(workload.IO(blocker, time.Minute, nil), nil)

	schedMetrics := metrics.NewRegistry(prometheus.NewRegistry())
	s, err := scheduler.NewWithConfig(scheduler.Config{
		Pool:         pool,
		Name:         "overloaded",
		TickInterval: 5 * time.Millisecond,
		Metrics:      schedMetrics,
	})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, s.Start())

	testutil.AssertNoError(t, s.ScheduleRepeating("hold", hold, 5*time.Millisecond))

	// First run occupies the worker, second fills the queue, the rest miss.
	testutil.Eventually(t, func() bool {
		job, _ := s.Get("hold")
		return job.Dispatched == 2 && job.Missed >= 3
	}, 2*time.Second, 5*time.Millisecond)

	<-s.Stop()
	job, _ := s.Get("hold")

	testutil.AssertEqual(t, pool.TotalSubmitted(), int64(2))
	testutil.AssertEqual(t, promtest.ToFloat64(schedMetrics.JobsMissed.WithLabelValues("overloaded")), float64(job.Missed))
	testutil.AssertEqual(t, promtest.ToFloat64(schedMetrics.JobsDispatched.WithLabelValues("overloaded")), 2.0)

	rejected, err := promtest.GatherAndCount(gatherer, "lazypool_threadpool_tasks_rejected_total")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, rejected, 1)

	pool.Shutdown(true)
	testutil.AssertEqual(t, pool.Queued(), 0)
	blocker.Release()
}

// TestLazyGrowthUnderMixedLoad verifies that workers are added only while
// every existing worker is busy and that a graceful shutdown runs every
// accepted task.
func TestLazyGrowthUnderMixedLoad(t *testing.T) {
	var started int32
	pool, err := threadpool.NewWithConfig(threadpool.Config{
		MaxWorkers:    4,
		QueueCapacity: 64,
		OnWorkerStart: func(int) { atomic.AddInt32(&started, 1) },
	})
	testutil.AssertNoError(t, err)

	var sink workload.Sink
	blocker := workload.NewBlocker()
	var acquired atomic.Int32
	io := threadpool.NewTask(workload.IO(blocker, time.Minute, func(o workload.Outcome) {
		if o == workload.Acquired {
			acquired.Add(1)
		}
	}), nil)
	cpu := threadpool.NewTask(workload.CPU(5000, &sink), nil)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		testutil.AssertNoError(t, pool.SubmitWithContext(ctx, io))
	}
	for i := 0; i < 20; i++ {
		testutil.AssertNoError(t, pool.SubmitWithContext(ctx, cpu))
	}

	// Four blocked IO tasks hold every worker; the rest wait in the queue.
	testutil.AssertEqual(t, pool.LiveWorkers(), 4)
	testutil.AssertEqual(t, pool.BusyWorkers(), 4)
	testutil.AssertEqual(t, pool.Queued(), 22)

	blocker.Release()
	pool.Shutdown(false)

	testutil.AssertEqual(t, atomic.LoadInt32(&started), int32(4))
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(26))
	testutil.AssertEqual(t, acquired.Load(), int32(6))
}

// TestImmediateShutdownCancelsWorkloads verifies that cooperative tasks stop
// promptly and queued work is dropped.
func TestImmediateShutdownCancelsWorkloads(t *testing.T) {
	pool, err := threadpool.New(2, 16)
	testutil.AssertNoError(t, err)

	blocker := workload.NewBlocker()
	outcomes := &testutil.Recorder[workload.Outcome]{}
	task := threadpool.NewTask(workload.IO(blocker, time.Minute, outcomes.Record), nil)

	for i := 0; i < 10; i++ {
		testutil.AssertNoError(t, pool.SubmitTask(task))
	}

	start := time.Now()
	pool.Shutdown(true)
	testutil.AssertEqual(t, time.Since(start) < 5*time.Second, true)

	testutil.AssertEqual(t, outcomes.Len(), 2)
	for _, o := range outcomes.Values() {
		testutil.AssertEqual(t, o, workload.Canceled)
	}
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(2))
	testutil.AssertEqual(t, pool.Queued(), 0)
}
