package threadpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lperrors "github.com/vnykmshr/lazypool/pkg/common/errors"
	"github.com/vnykmshr/lazypool/pkg/common/validation"
)

var (
	// ErrPoolClosed is returned by Submit once Shutdown has been called.
	ErrPoolClosed = fmt.Errorf("threadpool: pool is closed: %w", lperrors.ErrClosed)

	// ErrQueueFull is returned by Submit when every queue slot is taken.
	// The task was not queued; the caller may retry, drop or back off.
	ErrQueueFull = fmt.Errorf("threadpool: queue is full: %w", lperrors.ErrCapacityExceeded)
)

const (
	statusRunning int32 = iota
	statusClosing
)

// Config holds configuration options for creating a pool.
type Config struct {
	// MaxWorkers is the upper bound on worker goroutines. Workers are started
	// lazily, one per submission that finds every existing worker busy.
	// Must be greater than 0.
	MaxWorkers int

	// QueueCapacity is the number of tasks that can wait in the queue.
	// Must be greater than 0.
	QueueCapacity int

	// Logger receives worker lifecycle and panic reports.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// PanicHandler is called when a task panics. The worker keeps running.
	// If nil, panics are recovered and logged as errors with a stack trace.
	PanicHandler func(task Task, recovered interface{})

	// OnWorkerStart is called on the worker goroutine when it starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called on the worker goroutine right before it exits.
	OnWorkerStop func(workerID int)
}

// Validate reports the first invalid field of c.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("threadpool", "max_workers", c.MaxWorkers); err != nil {
		return err
	}
	return validation.ValidatePositive("threadpool", "queue_capacity", c.QueueCapacity)
}

// Stats is an advisory snapshot of the pool counters. Fields are read
// independently and are not transactionally consistent with each other.
type Stats struct {
	MaxWorkers  int
	LiveWorkers int
	BusyWorkers int
	Queued      int
	Capacity    int
	Front       int
	Rear        int
	Submitted   int64
	Completed   int64
	Panicked    int64
	Closed      bool
}

// Pool runs tasks from a bounded FIFO queue on a lazily grown set of
// workers. The zero value is not usable; create pools with New or
// NewWithConfig.
type Pool struct {
	config Config
	logger *slog.Logger

	// mu guards the queue, the worker slice and all writes to the
	// counters and status below.
	mu sync.Mutex
	// admission serializes submissions so a handoff to an idle worker
	// completes before the next submission is admitted.
	admission sync.Mutex
	// wakeup is signaled when a task is queued for an idle worker and
	// broadcast on shutdown.
	wakeup *sync.Cond
	// claimed is broadcast whenever a worker dequeues a task.
	claimed *sync.Cond

	queue   *ringQueue
	workers []*worker

	// Written under mu, read lock-free by diagnostics.
	live   atomic.Int32
	busy   atomic.Int32
	status atomic.Int32

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64

	// ctx is handed to every task and cancelled by an immediate shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	workerWg     sync.WaitGroup
	shutdownOnce sync.Once
	done         chan struct{}
}

// worker is one goroutine of the pool.
type worker struct {
	id   int
	pool *Pool
}

// New creates a pool with up to maxWorkers workers and room for
// queueCapacity waiting tasks. No goroutine is started until the first
// submission.
func New(maxWorkers, queueCapacity int) (*Pool, error) {
	return NewWithConfig(Config{
		MaxWorkers:    maxWorkers,
		QueueCapacity: queueCapacity,
	})
}

// NewWithConfig creates a pool with the specified configuration.
// An invalid configuration yields an error wrapping
// errors.ErrInvalidConfiguration and no pool.
func NewWithConfig(config Config) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		config:  config,
		logger:  logger.With("component", "threadpool"),
		queue:   newRingQueue(config.QueueCapacity),
		workers: make([]*worker, 0, config.MaxWorkers),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	p.wakeup = sync.NewCond(&p.mu)
	p.claimed = sync.NewCond(&p.mu)

	return p, nil
}

// MaxWorkers returns the configured worker limit.
func (p *Pool) MaxWorkers() int {
	return p.config.MaxWorkers
}

// LiveWorkers returns the number of workers started so far.
func (p *Pool) LiveWorkers() int {
	return int(p.live.Load())
}

// BusyWorkers returns the number of workers currently executing a task.
func (p *Pool) BusyWorkers() int {
	return int(p.busy.Load())
}

// Capacity returns the number of tasks the queue can hold.
func (p *Pool) Capacity() int {
	return p.queue.capacity()
}

// Queued returns the number of tasks waiting in the queue.
func (p *Pool) Queued() int {
	return p.queue.len()
}

// Front returns the current queue head index.
func (p *Pool) Front() int {
	return int(p.queue.front.Load())
}

// Rear returns the current queue tail index.
func (p *Pool) Rear() int {
	return int(p.queue.rear.Load())
}

// TotalSubmitted returns the number of tasks accepted by the pool.
func (p *Pool) TotalSubmitted() int64 {
	return p.submitted.Load()
}

// TotalCompleted returns the number of tasks that ran to completion,
// including those that panicked.
func (p *Pool) TotalCompleted() int64 {
	return p.completed.Load()
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool {
	return p.closing()
}

// Done returns a channel closed once shutdown has joined every worker.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		MaxWorkers:  p.MaxWorkers(),
		LiveWorkers: p.LiveWorkers(),
		BusyWorkers: p.BusyWorkers(),
		Queued:      p.Queued(),
		Capacity:    p.Capacity(),
		Front:       p.Front(),
		Rear:        p.Rear(),
		Submitted:   p.TotalSubmitted(),
		Completed:   p.TotalCompleted(),
		Panicked:    p.panicked.Load(),
		Closed:      p.Closed(),
	}
}

func (p *Pool) closing() bool {
	return p.status.Load() == statusClosing
}
