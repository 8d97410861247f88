package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	lperrors "github.com/vnykmshr/lazypool/pkg/common/errors"
	"github.com/vnykmshr/lazypool/pkg/common/validation"
	"github.com/vnykmshr/lazypool/pkg/metrics"
	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

const (
	defaultName         = "scheduler"
	defaultTickInterval = 50 * time.Millisecond
	defaultMaxJobs      = 10000
	maxIDLength         = 255

	// Pool used when Config.Pool is nil.
	defaultPoolWorkers  = 4
	defaultPoolCapacity = 100
)

var (
	// ErrDuplicateID is returned when a job with the same ID is already scheduled.
	ErrDuplicateID = errors.New("scheduler: job id already exists")

	// ErrTooManyJobs is returned when Config.MaxJobs jobs are already scheduled.
	ErrTooManyJobs = fmt.Errorf("scheduler: job limit reached: %w", lperrors.ErrCapacityExceeded)

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler: already running")

	// ErrStopped is returned by Start after Stop has shut down the
	// scheduler's own pool.
	ErrStopped = fmt.Errorf("scheduler: stopped: %w", lperrors.ErrClosed)
)

// Submitter accepts tasks for execution. *threadpool.Pool and
// *threadpool.MetricsPool satisfy it.
type Submitter interface {
	SubmitTask(task threadpool.Task) error
}

// Job describes a scheduled job.
type Job struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // zero for one-time and cron jobs
	CronExpr string
	Created  time.Time

	// Dispatched counts runs accepted by the pool; Missed counts runs the
	// pool rejected.
	Dispatched int64
	Missed     int64
}

// Config holds scheduler configuration.
type Config struct {
	// Pool receives due jobs. If nil, the scheduler creates its own pool and
	// shuts it down on Stop.
	Pool Submitter

	// Name labels log records and metrics. Defaults to "scheduler".
	Name string

	// Location is used to evaluate cron expressions. Defaults to time.Local.
	Location *time.Location

	// TickInterval is how often due jobs are checked. Defaults to 50ms.
	TickInterval time.Duration

	// MaxJobs bounds the number of scheduled jobs. Defaults to 10000.
	MaxJobs int

	// Logger receives missed-run reports. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics, if set, records dispatched and missed runs.
	Metrics *metrics.Registry
}

type job struct {
	id       string
	task     threadpool.Task
	runAt    time.Time
	interval time.Duration
	cronExpr string
	schedule cron.Schedule
	created  time.Time

	dispatched atomic.Int64
	missed     atomic.Int64
}

func (j *job) snapshot() Job {
	return Job{
		ID:         j.id,
		RunAt:      j.runAt,
		Interval:   j.interval,
		CronExpr:   j.cronExpr,
		Created:    j.created,
		Dispatched: j.dispatched.Load(),
		Missed:     j.missed.Load(),
	}
}

// Scheduler submits jobs to a pool when they become due. A job whose run
// is rejected by the pool (queue full or pool closed) is not retried; the
// run is counted as missed and the job keeps its schedule.
type Scheduler struct {
	pool     Submitter
	ownPool  *threadpool.Pool
	name     string
	location *time.Location
	tick     time.Duration
	maxJobs  int
	parser   cron.Parser
	logger   *slog.Logger
	metrics  *metrics.Registry

	mu      sync.RWMutex
	jobs    map[string]*job
	running bool
	closed  bool // set by Stop when it shuts down ownPool
	done    chan struct{}
	stopped chan struct{}
}

// New creates a scheduler that submits to pool. A nil pool makes the
// scheduler create its own.
func New(pool Submitter) (*Scheduler, error) {
	return NewWithConfig(Config{Pool: pool})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (*Scheduler, error) {
	if cfg.TickInterval < 0 {
		return nil, lperrors.NewValidationError("scheduler", "tick_interval", cfg.TickInterval, "must be positive")
	}
	if cfg.MaxJobs < 0 {
		return nil, lperrors.NewValidationError("scheduler", "max_jobs", cfg.MaxJobs, "must be positive")
	}

	s := &Scheduler{
		pool:     cfg.Pool,
		name:     cfg.Name,
		location: cfg.Location,
		tick:     cfg.TickInterval,
		maxJobs:  cfg.MaxJobs,
		parser:   newParser(),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		jobs:     make(map[string]*job),
	}
	if s.name == "" {
		s.name = defaultName
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.tick == 0 {
		s.tick = defaultTickInterval
	}
	if s.maxJobs == 0 {
		s.maxJobs = defaultMaxJobs
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "scheduler", "scheduler_name", s.name)

	if s.pool == nil {
		pool, err := threadpool.NewWithConfig(threadpool.Config{
			MaxWorkers:    defaultPoolWorkers,
			QueueCapacity: defaultPoolCapacity,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.ownPool = pool
	}

	return s, nil
}

// Schedule runs task once at runAt.
func (s *Scheduler) Schedule(id string, task threadpool.Task, runAt time.Time) error {
	if err := validateJob(id, task); err != nil {
		return err
	}
	if runAt.IsZero() {
		return lperrors.NewValidationError("scheduler", "run_at", runAt, "cannot be zero")
	}

	return s.add(&job{id: id, task: task, runAt: runAt, created: time.Now()})
}

// ScheduleAfter runs task once after delay.
func (s *Scheduler) ScheduleAfter(id string, task threadpool.Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

// ScheduleRepeating runs task now and then every interval until cancelled.
func (s *Scheduler) ScheduleRepeating(id string, task threadpool.Task, interval time.Duration) error {
	if err := validateJob(id, task); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration("scheduler", "interval", interval); err != nil {
		return err
	}

	now := time.Now()
	return s.add(&job{id: id, task: task, runAt: now, interval: interval, created: now})
}

// Cancel removes a job. It reports whether the job existed.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		delete(s.jobs, id)
		return true
	}
	return false
}

// CancelAll removes every job.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make(map[string]*job)
}

// Get returns the job with the given ID.
func (s *Scheduler) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// List returns every job ordered by next run time.
func (s *Scheduler) List() []Job {
	s.mu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].RunAt.Equal(jobs[k].RunAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].RunAt.Before(jobs[k].RunAt)
	})
	return jobs
}

// Start begins dispatching due jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.closed {
		return ErrStopped
	}

	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run(s.done, s.stopped)
	return nil
}

// Stop halts dispatching. The returned channel is closed once the dispatch
// loop has exited and, if the scheduler created its own pool, that pool has
// drained. Jobs remain scheduled; a scheduler using a caller-supplied pool
// can be started again.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	stopped := s.stopped
	if s.running {
		s.running = false
		close(s.done)
	}
	if s.ownPool != nil {
		s.closed = true
	}
	s.mu.Unlock()

	out := make(chan struct{})
	go func() {
		defer close(out)
		if stopped != nil {
			<-stopped
		}
		if s.ownPool != nil {
			s.ownPool.Shutdown(false)
		}
	}()
	return out
}

// Running reports whether the dispatch loop is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) add(j *job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, j.id)
	}
	if len(s.jobs) >= s.maxJobs {
		return fmt.Errorf("%w (%d)", ErrTooManyJobs, s.maxJobs)
	}

	s.jobs[j.id] = j
	return nil
}

func (s *Scheduler) run(done, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			s.dispatchDue(now)
		}
	}
}

// dispatchDue submits every job due at now and reschedules repeating ones.
func (s *Scheduler) dispatchDue(now time.Time) {
	s.mu.Lock()
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return
	}

	due := make([]*job, 0, len(s.jobs))
	for id, j := range s.jobs {
		if j.runAt.After(now) {
			continue
		}
		due = append(due, j)

		switch {
		case j.interval > 0:
			j.runAt = now.Add(j.interval)
		case j.schedule != nil:
			j.runAt = j.schedule.Next(now.In(s.location))
		default:
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.dispatch(j)
	}
}

func (s *Scheduler) dispatch(j *job) {
	err := s.pool.SubmitTask(j.task)
	if err == nil {
		j.dispatched.Add(1)
		if s.metrics != nil {
			s.metrics.JobsDispatched.WithLabelValues(s.name).Inc()
		}
		return
	}

	j.missed.Add(1)
	if s.metrics != nil {
		s.metrics.JobsMissed.WithLabelValues(s.name).Inc()
	}
	s.logger.Warn("job run missed", "job_id", j.id, "error", err)
}

func validateJob(id string, task threadpool.Task) error {
	if err := validation.ValidateNotEmpty("scheduler", "id", id); err != nil {
		return err
	}
	if err := validation.ValidateMaxLength("scheduler", "id", id, maxIDLength); err != nil {
		return err
	}
	if task.Fn == nil {
		return lperrors.NewValidationError("scheduler", "task", nil, "function cannot be nil")
	}
	return nil
}
