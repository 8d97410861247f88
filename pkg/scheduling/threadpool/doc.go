/*
Package threadpool provides a fixed-capacity worker pool with a bounded FIFO
queue and lazily started workers.

A pool is created with an upper bound on workers and a queue capacity. No
goroutine runs until work arrives: a submission that finds every existing
worker busy starts one more, up to the bound. Workers are never shrunk.

Basic usage:

	pool, err := threadpool.New(4, 64) // up to 4 workers, 64 queued tasks
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown(false)

	err = pool.Submit(func(ctx context.Context, arg interface{}) {
		process(ctx, arg.(string))
	}, "job-1")
	if errors.Is(err, threadpool.ErrQueueFull) {
		// back off and retry, or drop
	}

Submission:

Submit never blocks on queue space. It returns nil once the task is queued,
ErrQueueFull when every slot is taken and ErrPoolClosed after Shutdown.
SubmitWithContext retries on ErrQueueFull until the task is queued or the
context is done.

When an idle worker exists, a submission hands its task over directly: it
returns only after a worker has taken the task off the queue, and other
submitters wait at admission until then. Queued work is therefore claimed
before newer submissions race ahead, and tasks are dequeued in submission
order.

Shutdown:

	pool.Shutdown(false) // stop accepting, drain the queue, join workers
	pool.Shutdown(true)  // stop accepting, drop the queue, cancel task contexts

Goroutines cannot be killed from outside. An immediate shutdown cancels the
context passed to every task and workers stop before claiming more work, but
a task that ignores its context still runs to completion before its worker
exits. ShutdownContext bounds the wait.

Failures:

Tasks report nothing to the pool. A panicking task is recovered; the panic
goes to Config.PanicHandler, or to the pool logger with a stack trace, and
the worker continues with the next task.

Diagnostics:

LiveWorkers, BusyWorkers, Queued, Front, Rear and Stats return advisory
snapshots read without locking. They are safe to call at any time, including
after shutdown.

Metrics:

NewWithMetrics returns a MetricsPool that records submissions, rejections,
queue wait, execution time, panics and worker gauges in Prometheus.
*/
package threadpool
