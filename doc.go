/*
Package lazypool provides a fixed-capacity worker pool for Go applications.

Task execution (pkg/scheduling):
  - threadpool: bounded FIFO queue, lazily grown workers, graceful or
    immediate shutdown, lock-free diagnostics
  - scheduler: cron and interval jobs submitted into a pool

Support packages:
  - pkg/metrics: Prometheus collectors for pools and schedulers
  - pkg/common: shared errors, validation and context helpers

Example usage:

	import "github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"

	pool, _ := threadpool.New(5, 100) // up to 5 workers, queue 100
	defer pool.Shutdown(false)

	if err := pool.Submit(process, item); errors.Is(err, threadpool.ErrQueueFull) {
		// back off
	}

The cmd/poolbench command measures a pool against CPU-bound and IO-like
workloads.
*/
package lazypool
