// Package workload provides synthetic tasks for exercising a pool: a
// CPU-bound loop and an IO-like wait that blocks without using a CPU.
package workload

import (
	"context"
	"sync"
	"time"

	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

// cancelCheckEvery is how many iterations CPU runs between context checks.
const cancelCheckEvery = 1 << 16

// Sink keeps CPU results observable so the loop is not optimized away.
type Sink struct {
	mu    sync.Mutex
	total float64
}

// Add accumulates v.
func (s *Sink) Add(v float64) {
	s.mu.Lock()
	s.total += v
	s.mu.Unlock()
}

// Total returns the accumulated value.
func (s *Sink) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// CPU returns a task that runs a floating point loop of the given number
// of iterations. The loop stops early once the task context is cancelled.
func CPU(iterations int, sink *Sink) threadpool.Func {
	return func(ctx context.Context, _ interface{}) {
		var f float64
		for i := 0; i < iterations; i++ {
			if i%cancelCheckEvery == 0 && ctx.Err() != nil {
				break
			}
			f += float64(i % 1000)
		}
		if sink != nil {
			sink.Add(f)
		}
	}
}

// Blocker is a resource IO tasks wait on. It stays held until Release.
type Blocker struct {
	once     sync.Once
	released chan struct{}
}

// NewBlocker returns a held Blocker.
func NewBlocker() *Blocker {
	return &Blocker{released: make(chan struct{})}
}

// Release lets every current and future waiter through. It is idempotent.
func (b *Blocker) Release() {
	b.once.Do(func() { close(b.released) })
}

// IO returns a task that waits on b for at most timeout, simulating a
// blocking call. It returns early when b is released or the task context
// is cancelled. The outcome is reported to result when it is non-nil.
func IO(b *Blocker, timeout time.Duration, result func(Outcome)) threadpool.Func {
	return func(ctx context.Context, _ interface{}) {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		outcome := TimedOut
		select {
		case <-b.released:
			outcome = Acquired
		case <-ctx.Done():
			outcome = Canceled
		case <-timer.C:
		}

		if result != nil {
			result(outcome)
		}
	}
}

// Outcome is how an IO task finished waiting.
type Outcome int

const (
	TimedOut Outcome = iota
	Acquired
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case TimedOut:
		return "timed_out"
	case Acquired:
		return "acquired"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}
