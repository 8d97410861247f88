// Package metrics provides Prometheus instrumentation for lazypool components.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Pool submissions (accepted, rejected by reason)
//   - Task execution (executed, panicked, queue wait, duration)
//   - Worker state (max, live and busy workers, queued tasks)
//   - Scheduler dispatch (runs handed to the pool, runs the pool rejected)
//
// # Quick Start
//
// Wrap a pool with the metrics decorator:
//
//	pool, err := threadpool.NewWithMetrics(
//		threadpool.Config{MaxWorkers: 4, QueueCapacity: 64},
//		"ingest",
//		metrics.DefaultConfig(),
//	)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Available Metrics
//
//   - lazypool_threadpool_tasks_submitted_total
//   - lazypool_threadpool_tasks_rejected_total (reason: "queue_full", "pool_closed", "invalid", "canceled")
//   - lazypool_threadpool_tasks_executed_total
//   - lazypool_threadpool_tasks_panicked_total
//   - lazypool_threadpool_task_queue_wait_seconds
//   - lazypool_threadpool_task_duration_seconds
//   - lazypool_threadpool_max_workers
//   - lazypool_threadpool_live_workers
//   - lazypool_threadpool_busy_workers
//   - lazypool_threadpool_queued_tasks
//   - lazypool_scheduler_jobs_dispatched_total
//   - lazypool_scheduler_jobs_missed_total
//
// # Custom Registry
//
// Each registry must be backed by its own prometheus.Registerer, otherwise
// the collectors collide on registration:
//
//	reg := prometheus.NewRegistry()
//	registry := metrics.NewRegistryWithConfig(metrics.Config{
//		Registry:  reg,
//		Namespace: "myapp",
//		Labels:    prometheus.Labels{"region": "eu"},
//	})
package metrics
