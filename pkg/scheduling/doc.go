/*
Package scheduling groups the task execution packages of lazypool.

  - threadpool: bounded FIFO queue drained by lazily started workers
  - scheduler: one-time, repeating and cron jobs dispatched into a pool

Thread pool:

	pool, err := threadpool.New(4, 100) // up to 4 workers, 100 queued tasks
	if err != nil {
		return err
	}
	defer pool.Shutdown(false)

	err = pool.Submit(func(ctx context.Context, arg interface{}) {
		handle(ctx, arg.(*Request))
	}, req)

Scheduler:

	s, _ := scheduler.New(pool)
	s.Start()
	defer func() { <-s.Stop() }()

	s.ScheduleCron("cleanup", "0 3 * * *", threadpool.NewTask(cleanup, nil))

A scheduled run that finds the pool queue full is skipped and counted as
missed; the scheduler never blocks waiting for queue space.
*/
package scheduling
