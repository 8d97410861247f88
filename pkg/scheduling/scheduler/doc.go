/*
Package scheduler dispatches one-time, repeating and cron jobs into a
threadpool.

A Scheduler keeps its jobs in memory and checks them on every tick. Due jobs
are submitted to the pool; the scheduler never runs a job itself and never
blocks on a full queue.

Basic usage:

	pool, _ := threadpool.New(4, 100)
	defer pool.Shutdown(false)

	s, _ := scheduler.New(pool)
	s.Start()
	defer func() { <-s.Stop() }()

	report := threadpool.NewTask(func(ctx context.Context, _ interface{}) {
		sendReport(ctx)
	}, nil)

	s.ScheduleAfter("warmup", report, 5*time.Second)
	s.ScheduleRepeating("heartbeat", report, 30*time.Second)
	s.ScheduleCron("nightly", "0 2 * * *", report)

Missed runs:

When the pool rejects a run with threadpool.ErrQueueFull or
threadpool.ErrPoolClosed the run is skipped, logged and counted in
Job.Missed. Repeating and cron jobs keep their schedule; the next run is
not brought forward.

Cron expressions:

Five-field expressions are accepted as is; an optional leading field adds
seconds. Descriptors such as "@hourly", "@daily" and "@every 1m30s" are
also supported. Expressions are evaluated in Config.Location.
*/
package scheduler
