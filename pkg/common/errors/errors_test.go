package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	lperrors "github.com/vnykmshr/lazypool/pkg/common/errors"
	"github.com/vnykmshr/lazypool/pkg/scheduling/scheduler"
	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

// TestClassification checks how the errors returned by pools and schedulers
// map onto the shared sentinels and predicates.
func TestClassification(t *testing.T) {
	_, invalidPool := threadpool.New(0, 4)

	tests := []struct {
		name       string
		err        error
		closed     bool
		capacity   bool
		retryable  bool
		validation bool
	}{
		{"queue full", threadpool.ErrQueueFull, false, true, true, false},
		{"pool closed", threadpool.ErrPoolClosed, true, false, false, false},
		{"too many jobs", scheduler.ErrTooManyJobs, false, true, true, false},
		{"scheduler stopped", scheduler.ErrStopped, true, false, false, false},
		{"invalid pool size", invalidPool, false, false, false, true},
		{
			"submit gave up on full queue",
			lperrors.NewOperationError("threadpool", "Submit", threadpool.ErrQueueFull),
			false, true, true, false,
		},
		{
			"shutdown timed out",
			lperrors.NewOperationError("threadpool", "Shutdown", lperrors.ErrTimeout),
			false, false, true, false,
		},
		{
			"job rejected by closed pool",
			fmt.Errorf("job nightly: %w", threadpool.ErrPoolClosed),
			true, false, false, false,
		},
		{"context canceled", context.Canceled, false, false, false, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, lperrors.ErrClosed); got != tt.closed {
				t.Errorf("Is(ErrClosed) = %v, want %v", got, tt.closed)
			}
			if got := errors.Is(tt.err, lperrors.ErrCapacityExceeded); got != tt.capacity {
				t.Errorf("Is(ErrCapacityExceeded) = %v, want %v", got, tt.capacity)
			}
			if got := lperrors.IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := lperrors.IsValidationError(tt.err); got != tt.validation {
				t.Errorf("IsValidationError() = %v, want %v", got, tt.validation)
			}
		})
	}
}

func TestValidationErrorFromPool(t *testing.T) {
	_, err := threadpool.New(2, -3)

	var verr *lperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Module != "threadpool" || verr.Field != "queue_capacity" || verr.Value != -3 {
		t.Errorf("got %+v", verr)
	}
	if !errors.Is(err, lperrors.ErrInvalidConfiguration) {
		t.Error("should unwrap to ErrInvalidConfiguration")
	}
}

func TestValidationError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *lperrors.ValidationError
		want string
	}{
		{
			"nil task",
			lperrors.NewValidationError("threadpool", "task", nil, "function cannot be nil"),
			"threadpool: invalid task=<nil> (function cannot be nil)",
		},
		{
			"bad cron",
			lperrors.NewValidationError("scheduler", "cron_expr", "61 * * * *", "end of range (61) above maximum (59)").
				WithHint(`use five fields`),
			"scheduler: invalid cron_expr=61 * * * * (end of range (61) above maximum (59)) - use five fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	base := lperrors.NewValidationError("config", "io_wait", "soon", "bad duration")
	if base.WithHint("x") != base {
		t.Error("WithHint should return the same instance")
	}
}

func TestOperationError_WrapsPoolErrors(t *testing.T) {
	err := lperrors.NewOperationError("threadpool", "Submit", context.DeadlineExceeded).
		WithContext("queue stayed full")

	want := "threadpool.Submit failed: context deadline exceeded (queue stayed full)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("should unwrap to the cause")
	}
	if err.WithContext("again") != err {
		t.Error("WithContext should return the same instance")
	}

	bare := lperrors.NewOperationError("threadpool", "Shutdown", context.Canceled)
	if got := bare.Error(); got != "threadpool.Shutdown failed: context canceled" {
		t.Errorf("Error() = %q", got)
	}
}

func TestOperationError_FromShutdownTimeout(t *testing.T) {
	pool, err := threadpool.New(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	release := make(chan struct{})
	if err := pool.Submit(func(context.Context, interface{}) { <-release }, nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = pool.ShutdownContext(ctx, false)
	close(release)
	<-pool.Done()

	var operr *lperrors.OperationError
	if !errors.As(err, &operr) {
		t.Fatalf("expected *OperationError, got %T (%v)", err, err)
	}
	if operr.Module != "threadpool" || operr.Operation != "Shutdown" {
		t.Errorf("got %s.%s", operr.Module, operr.Operation)
	}
	if operr.Context != lperrors.ErrTimeout.Error() {
		t.Errorf("Context = %q, want %q", operr.Context, lperrors.ErrTimeout.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("should unwrap to context.DeadlineExceeded")
	}
}
