package threadpool

import "context"

// Func is the callable part of a Task. The context is cancelled when the
// pool is shut down immediately; long-running functions should watch it.
//
// A Func reports nothing back to the pool. Errors must be handled inside the
// function; a panic is recovered by the worker and reported through
// Config.PanicHandler or the pool logger.
type Func func(ctx context.Context, arg interface{})

// Task pairs a Func with its argument. It is copied by value into the queue;
// the pool never inspects or retains Arg after the task has run.
type Task struct {
	Fn  Func
	Arg interface{}
}

// NewTask builds a Task from fn and arg.
func NewTask(fn Func, arg interface{}) Task {
	return Task{Fn: fn, Arg: arg}
}
