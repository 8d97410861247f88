package threadpool

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	lpcontext "github.com/vnykmshr/lazypool/pkg/common/context"
	lperrors "github.com/vnykmshr/lazypool/pkg/common/errors"
)

const (
	minRetryDelay = 100 * time.Microsecond
	maxRetryDelay = 10 * time.Millisecond
)

// Submit queues fn(ctx, arg) for execution.
// See SubmitTask for the possible outcomes.
func (p *Pool) Submit(fn Func, arg interface{}) error {
	return p.SubmitTask(NewTask(fn, arg))
}

// SubmitTask queues task for execution. It returns nil once the task is
// queued, ErrPoolClosed after Shutdown, or ErrQueueFull when the queue has
// no free slot. It never blocks on queue space.
//
// When an idle worker exists, SubmitTask does not return until that worker
// has taken the task off the queue, and no other submission is admitted in
// the meantime. Tasks therefore reach idle workers one at a time and in
// submission order.
func (p *Pool) SubmitTask(task Task) error {
	if task.Fn == nil {
		return lperrors.NewValidationError("threadpool", "task", nil, "function cannot be nil")
	}

	p.admission.Lock()
	defer p.admission.Unlock()

	p.mu.Lock()
	if p.closing() {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	if p.busy.Load() >= p.live.Load() && int(p.live.Load()) < p.config.MaxWorkers {
		w := p.addWorker()
		p.mu.Unlock()
		go w.run()
		p.mu.Lock()

		// Shutdown may have started while the lock was released; the new
		// worker observes it and exits.
		if p.closing() {
			p.mu.Unlock()
			return ErrPoolClosed
		}
	}

	if p.queue.full() {
		p.mu.Unlock()
		return ErrQueueFull
	}
	p.queue.push(task)
	p.submitted.Add(1)

	if p.busy.Load() < p.live.Load() {
		p.wakeup.Signal()
		for !p.queue.empty() && !p.closing() {
			p.claimed.Wait()
		}
	}
	p.mu.Unlock()

	return nil
}

// SubmitWithContext is SubmitTask that retries while the queue is full,
// backing off between attempts, until the task is queued, the pool is
// closed or ctx is done.
func (p *Pool) SubmitWithContext(ctx context.Context, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}

	delay := minRetryDelay
	for {
		err := p.SubmitTask(task)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lperrors.NewOperationError("threadpool", "Submit", ctx.Err()).WithContext("queue stayed full")
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// Shutdown stops accepting tasks and blocks until every worker has exited.
//
// With immediate set to false the workers drain the queue first. With
// immediate set to true queued tasks are dropped and the context passed to
// running tasks is cancelled; goroutines cannot be killed, so a running task
// that ignores its context still delays Shutdown until it returns.
//
// Calling Shutdown again waits for the same teardown. A later immediate call
// escalates a graceful shutdown that is still draining.
func (p *Pool) Shutdown(immediate bool) {
	_ = p.ShutdownContext(context.Background(), immediate)
}

// ShutdownContext is Shutdown bounded by ctx. If ctx is done before every
// worker has exited it returns an error wrapping ctx.Err(); teardown keeps
// going in the background and Done reports its completion.
func (p *Pool) ShutdownContext(ctx context.Context, immediate bool) error {
	p.mu.Lock()
	p.status.Store(statusClosing)
	if immediate {
		p.cancel()
	}
	p.mu.Unlock()

	p.wakeup.Broadcast()
	p.claimed.Broadcast()

	p.shutdownOnce.Do(func() {
		p.logger.Debug("shutting down", "immediate", immediate, "live_workers", p.LiveWorkers(), "queued", p.Queued())
		go func() {
			p.workerWg.Wait()
			p.cancel()

			p.mu.Lock()
			dropped := p.queue.drop()
			p.workers = nil
			p.mu.Unlock()

			if dropped > 0 {
				p.logger.Debug("dropped queued tasks", "count", dropped)
			}

			close(p.done)
		}()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		err := lperrors.NewOperationError("threadpool", "Shutdown", ctx.Err())
		if lpcontext.IsTimedOut(ctx) {
			return err.WithContext(lperrors.ErrTimeout.Error())
		}
		return err
	}
}

// addWorker reserves the next worker slot. Must be called with mu held.
func (p *Pool) addWorker() *worker {
	w := &worker{id: len(p.workers), pool: p}
	p.workers = append(p.workers, w)
	p.live.Add(1)
	p.workerWg.Add(1)
	return w
}

// next blocks until a task is available and claims it. It returns false
// when the worker must exit: the pool is closing with an empty queue, or
// an immediate shutdown abandoned the queue.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.queue.empty() {
		if p.closing() {
			return Task{}, false
		}
		p.wakeup.Wait()
	}
	if lpcontext.IsCanceled(p.ctx) {
		return Task{}, false
	}

	task := p.queue.pop()
	p.busy.Add(1)
	p.claimed.Broadcast()
	return task, true
}

// finish marks the worker idle again after a task.
func (p *Pool) finish() {
	p.mu.Lock()
	p.busy.Add(-1)
	p.mu.Unlock()
}

// run is the main loop for a worker.
func (w *worker) run() {
	p := w.pool
	defer p.workerWg.Done()

	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(w.id)
	}
	p.logger.Debug("worker started", "worker_id", w.id)

	defer func() {
		p.logger.Debug("worker stopped", "worker_id", w.id)
		if p.config.OnWorkerStop != nil {
			p.config.OnWorkerStop(w.id)
		}
	}()

	for {
		task, ok := p.next()
		if !ok {
			return
		}
		w.execute(task)
		p.finish()
	}
}

// execute runs a single task, recovering from panics.
func (w *worker) execute(task Task) {
	p := w.pool

	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			if p.config.PanicHandler != nil {
				p.config.PanicHandler(task, r)
			} else {
				p.logger.Error("task panicked",
					"worker_id", w.id,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}
		p.completed.Add(1)
	}()

	task.Fn(p.ctx, task.Arg)
}
