package testutil_test

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/lazypool/internal/testutil"
	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

func newPool(t *testing.T, cfg threadpool.Config) *threadpool.Pool {
	t.Helper()
	pool, err := threadpool.NewWithConfig(cfg)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { pool.Shutdown(true) })
	return pool
}

func TestGate_HoldsWorkersBusy(t *testing.T) {
	pool := newPool(t, threadpool.Config{MaxWorkers: 2, QueueCapacity: 4})
	gate := testutil.NewGate()
	var started int32

	block := func(context.Context, interface{}) {
		atomic.AddInt32(&started, 1)
		gate.Wait()
	}
	for i := 0; i < 4; i++ {
		testutil.AssertNoError(t, pool.Submit(block, i))
	}

	testutil.WaitForInt32(t, &started, 2, time.Second)
	testutil.AssertEqual(t, pool.BusyWorkers(), 2)
	testutil.AssertEqual(t, pool.Queued(), 2)

	gate.Open()
	gate.Open()
	testutil.WaitForInt32(t, &started, 4, time.Second)

	select {
	case <-gate.Done():
	default:
		t.Error("Done should be closed after Open")
	}
}

func TestRecorder_SingleWorkerKeepsSubmissionOrder(t *testing.T) {
	pool := newPool(t, threadpool.Config{MaxWorkers: 1, QueueCapacity: 16})
	gate := testutil.NewGate()
	var order testutil.Recorder[int]

	testutil.AssertNoError(t, pool.Submit(func(context.Context, interface{}) { gate.Wait() }, nil))
	for i := 0; i < 10; i++ {
		testutil.AssertNoError(t, pool.Submit(func(_ context.Context, arg interface{}) {
			order.Record(arg.(int))
		}, i))
	}

	gate.Open()
	pool.Shutdown(false)

	got := order.Values()
	testutil.AssertEqual(t, len(got), 10)
	for i, v := range got {
		testutil.AssertEqual(t, v, i)
	}
}

func TestRecorder_ValuesIsACopy(t *testing.T) {
	var r testutil.Recorder[string]
	r.Record("a")

	snapshot := r.Values()
	snapshot[0] = "changed"
	r.Record("b")

	testutil.AssertEqual(t, r.Len(), 2)
	testutil.AssertEqual(t, r.Values()[0], "a")
}

func TestCallbackTracker_PanicHandler(t *testing.T) {
	tracker := testutil.NewCallbackTracker()
	pool := newPool(t, threadpool.Config{
		MaxWorkers:    1,
		QueueCapacity: 2,
		PanicHandler: func(_ threadpool.Task, recovered interface{}) {
			tracker.Mark(recovered)
		},
	})

	tracker.AssertNotCalled(t)
	testutil.AssertNoError(t, pool.Submit(func(context.Context, interface{}) { panic("boom") }, nil))
	testutil.AssertEventually(t, tracker.Called)

	tracker.AssertCallCount(t, 1)
	testutil.AssertEqual(t, tracker.Value(), interface{}("boom"))

	tracker.Reset()
	tracker.AssertNotCalled(t)
}

func TestCallbackTracker_WorkerLifecycle(t *testing.T) {
	started := testutil.NewCallbackTracker()
	stopped := testutil.NewCallbackTracker()
	pool, err := threadpool.NewWithConfig(threadpool.Config{
		MaxWorkers:    3,
		QueueCapacity: 3,
		OnWorkerStart: func(id int) { started.Mark(id) },
		OnWorkerStop:  func(id int) { stopped.Mark(id) },
	})
	testutil.AssertNoError(t, err)

	gate := testutil.NewGate()
	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, pool.Submit(func(context.Context, interface{}) { gate.Wait() }, nil))
	}
	testutil.Eventually(t, func() bool { return started.CallCount() == 3 }, time.Second, 5*time.Millisecond)
	stopped.AssertNotCalled(t)

	gate.Open()
	pool.Shutdown(false)
	stopped.AssertCallCount(t, 3)
}

func TestMockWriter_CapturesPoolLogs(t *testing.T) {
	w := testutil.NewMockWriter()
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pool := newPool(t, threadpool.Config{MaxWorkers: 1, QueueCapacity: 1, Logger: logger})

	testutil.AssertNoError(t, pool.Submit(func(context.Context, interface{}) { panic("kaput") }, nil))
	pool.Shutdown(false)

	out := w.String()
	for _, want := range []string{"worker started", "task panicked", "kaput", "worker stopped"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	testutil.AssertNotEqual(t, w.WriteCount(), 0)
}

func TestAssertErrorIs_ClosedPool(t *testing.T) {
	pool := newPool(t, threadpool.Config{MaxWorkers: 1, QueueCapacity: 1})
	pool.Shutdown(false)

	err := pool.Submit(func(context.Context, interface{}) {}, nil)
	testutil.AssertError(t, err)
	testutil.AssertErrorIs(t, err, threadpool.ErrPoolClosed)
}

func TestEventuallyWithContext_ImmediateShutdown(t *testing.T) {
	pool := newPool(t, threadpool.Config{MaxWorkers: 1, QueueCapacity: 1})
	var cancelled atomic.Bool

	testutil.AssertNoError(t, pool.Submit(func(ctx context.Context, _ interface{}) {
		<-ctx.Done()
		cancelled.Store(true)
	}, nil))
	testutil.Eventually(t, func() bool { return pool.BusyWorkers() == 1 }, time.Second, 5*time.Millisecond)

	go pool.Shutdown(true)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.EventuallyWithContext(t, ctx, cancelled.Load, 5*time.Millisecond)

	<-pool.Done()
	testutil.AssertEqual(t, pool.BusyWorkers(), 0)
	testutil.AssertEqual(t, pool.Queued(), 0)
}
