// Command poolbench measures how long a pool takes to run a mix of CPU-bound
// and IO-like tasks.
//
// Usage:
//
//	poolbench -n 4 -u 20 -b 100
//	poolbench -config bench.yaml -metrics-addr :9090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/lazypool/internal/config"
	"github.com/vnykmshr/lazypool/internal/workload"
	"github.com/vnykmshr/lazypool/pkg/metrics"
	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "poolbench:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("poolbench", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "YAML or JSON configuration file")
		workers     = fs.Int("n", config.DefaultMaxWorkers, "maximum number of workers")
		cpuTasks    = fs.Int("u", 0, "number of CPU-bound tasks")
		ioTasks     = fs.Int("b", 0, "number of IO-like tasks")
		capacity    = fs.Int("q", config.DefaultQueueCapacity, "queue capacity")
		submitters  = fs.Int("c", config.DefaultSubmitters, "concurrent submitters")
		iterations  = fs.Int("iterations", config.DefaultCPUIterations, "loop iterations per CPU task")
		ioWait      = fs.Duration("io-wait", config.DefaultIOWait, "how long each IO task blocks")
		metricsAddr = fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
		verbose     = fs.Bool("v", false, "log worker lifecycle")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings := config.Default()
	if *configPath != "" {
		file, err := config.LoadFile(*configPath)
		if err != nil {
			return err
		}
		if settings, err = file.Settings(); err != nil {
			return err
		}
	}

	// Explicit flags override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			settings.Pool.MaxWorkers = *workers
		case "u":
			settings.CPUTasks = *cpuTasks
		case "b":
			settings.IOTasks = *ioTasks
		case "q":
			settings.Pool.QueueCapacity = *capacity
		case "c":
			settings.Submitters = *submitters
		case "iterations":
			settings.CPUIterations = *iterations
		case "io-wait":
			settings.IOWait = *ioWait
		case "metrics-addr":
			settings.MetricsEnabled = *metricsAddr != ""
			settings.MetricsAddr = *metricsAddr
		}
	})
	if err := settings.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	settings.Pool.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return bench(ctx, settings, logger)
}

func bench(ctx context.Context, s config.Settings, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	pool, err := threadpool.NewWithMetrics(s.Pool, s.PoolName, metrics.Config{
		Enabled:   s.MetricsEnabled,
		Registry:  reg,
		Namespace: s.MetricsNamespace,
	})
	if err != nil {
		return err
	}

	var server *http.Server
	if s.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: s.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving metrics", "addr", s.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer server.Close()
	}

	blocker := workload.NewBlocker()
	var sink workload.Sink
	var timedOut atomic.Int64
	ioTask := threadpool.NewTask(workload.IO(blocker, s.IOWait, func(o workload.Outcome) {
		if o == workload.TimedOut {
			timedOut.Add(1)
		}
	}), nil)
	cpuTask := threadpool.NewTask(workload.CPU(s.CPUIterations, &sink), nil)

	// IO tasks go in first, then CPU tasks, split across submitters.
	total := s.IOTasks + s.CPUTasks
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for k := 0; k < s.Submitters; k++ {
		k := k
		g.Go(func() error {
			for i := k; i < total; i += s.Submitters {
				task := cpuTask
				if i < s.IOTasks {
					task = ioTask
				}
				if err := pool.SubmitWithContext(gctx, task); err != nil {
					return fmt.Errorf("submitting task %d: %w", i, err)
				}
			}
			return nil
		})
	}
	submitErr := g.Wait()
	submitted := time.Since(start)

	immediate := submitErr != nil || ctx.Err() != nil
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	go func() {
		// An interrupt during a graceful drain escalates to an immediate stop.
		select {
		case <-ctx.Done():
			pool.Shutdown(true)
		case <-pool.Done():
		}
	}()
	shutdownErr := pool.ShutdownContext(shutdownCtx, immediate)
	elapsed := time.Since(start)

	stats := pool.Stats()
	fmt.Printf("workers=%d/%d capacity=%d cpu_tasks=%d io_tasks=%d\n",
		stats.LiveWorkers, stats.MaxWorkers, stats.Capacity, s.CPUTasks, s.IOTasks)
	fmt.Printf("submitted=%d completed=%d panicked=%d io_timeouts=%d\n",
		stats.Submitted, stats.Completed, stats.Panicked, timedOut.Load())
	fmt.Printf("submit_time=%s total_time=%s\n", submitted.Round(time.Millisecond), elapsed.Round(time.Millisecond))

	return errors.Join(submitErr, shutdownErr)
}
