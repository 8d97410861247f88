// Package config loads benchmark driver settings from YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	lperrors "github.com/vnykmshr/lazypool/pkg/common/errors"
	"github.com/vnykmshr/lazypool/pkg/common/validation"
	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

// Defaults for the benchmark driver.
const (
	DefaultMaxWorkers      = 1
	DefaultQueueCapacity   = 100000
	DefaultCPUIterations   = 1000 * 1000 * 333
	DefaultIOWait          = time.Second
	DefaultSubmitters      = 1
	DefaultShutdownTimeout = time.Minute
	DefaultPoolName        = "poolbench"
)

// FileConfig is the layout of a configuration file.
type FileConfig struct {
	Pool     PoolConfig     `yaml:"pool" json:"pool"`
	Workload WorkloadConfig `yaml:"workload" json:"workload"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// PoolConfig configures the pool under test.
type PoolConfig struct {
	Name            string `yaml:"name" json:"name"`
	MaxWorkers      int    `yaml:"max_workers" json:"max_workers"`
	QueueCapacity   int    `yaml:"queue_capacity" json:"queue_capacity"`
	ShutdownTimeout string `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// WorkloadConfig describes the tasks to submit.
type WorkloadConfig struct {
	CPUTasks      int    `yaml:"cpu_tasks" json:"cpu_tasks"`
	IOTasks       int    `yaml:"io_tasks" json:"io_tasks"`
	CPUIterations int    `yaml:"cpu_iterations" json:"cpu_iterations"`
	IOWait        string `yaml:"io_wait" json:"io_wait"`
	Submitters    int    `yaml:"submitters" json:"submitters"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Addr      string `yaml:"addr" json:"addr"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Settings are resolved driver settings with defaults applied.
type Settings struct {
	PoolName        string
	Pool            threadpool.Config
	ShutdownTimeout time.Duration

	CPUTasks      int
	IOTasks       int
	CPUIterations int
	IOWait        time.Duration
	Submitters    int

	MetricsEnabled   bool
	MetricsAddr      string
	MetricsNamespace string
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		PoolName: DefaultPoolName,
		Pool: threadpool.Config{
			MaxWorkers:    DefaultMaxWorkers,
			QueueCapacity: DefaultQueueCapacity,
		},
		ShutdownTimeout: DefaultShutdownTimeout,
		CPUIterations:   DefaultCPUIterations,
		IOWait:          DefaultIOWait,
		Submitters:      DefaultSubmitters,
	}
}

// LoadFile reads a configuration file. The format is chosen by extension:
// .yaml, .yml or .json.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %q", ext)
	}

	return &cfg, nil
}

// Validate rejects negative counts. Zero means "use the default".
func (f *FileConfig) Validate() error {
	checks := []struct {
		field string
		value int
	}{
		{"pool.max_workers", f.Pool.MaxWorkers},
		{"pool.queue_capacity", f.Pool.QueueCapacity},
		{"workload.cpu_tasks", f.Workload.CPUTasks},
		{"workload.io_tasks", f.Workload.IOTasks},
		{"workload.cpu_iterations", f.Workload.CPUIterations},
		{"workload.submitters", f.Workload.Submitters},
	}
	for _, c := range checks {
		if c.value < 0 {
			return lperrors.NewValidationError("config", c.field, c.value, "must be non-negative")
		}
	}
	if f.Metrics.Enabled {
		if err := validation.ValidateNotEmpty("config", "metrics.addr", f.Metrics.Addr); err != nil {
			return err
		}
	}
	return nil
}

// Settings validates f and merges it over Default.
func (f *FileConfig) Settings() (Settings, error) {
	s := Default()
	if err := f.Validate(); err != nil {
		return s, err
	}

	if f.Pool.Name != "" {
		s.PoolName = f.Pool.Name
	}
	if f.Pool.MaxWorkers > 0 {
		s.Pool.MaxWorkers = f.Pool.MaxWorkers
	}
	if f.Pool.QueueCapacity > 0 {
		s.Pool.QueueCapacity = f.Pool.QueueCapacity
	}
	if f.Pool.ShutdownTimeout != "" {
		d, err := parseDuration("pool.shutdown_timeout", f.Pool.ShutdownTimeout)
		if err != nil {
			return s, err
		}
		s.ShutdownTimeout = d
	}

	s.CPUTasks = f.Workload.CPUTasks
	s.IOTasks = f.Workload.IOTasks
	if f.Workload.CPUIterations > 0 {
		s.CPUIterations = f.Workload.CPUIterations
	}
	if f.Workload.IOWait != "" {
		d, err := parseDuration("workload.io_wait", f.Workload.IOWait)
		if err != nil {
			return s, err
		}
		s.IOWait = d
	}
	if f.Workload.Submitters > 0 {
		s.Submitters = f.Workload.Submitters
	}

	s.MetricsEnabled = f.Metrics.Enabled
	s.MetricsAddr = f.Metrics.Addr
	s.MetricsNamespace = f.Metrics.Namespace

	return s, nil
}

// Validate checks the resolved settings.
func (s Settings) Validate() error {
	if err := s.Pool.Validate(); err != nil {
		return err
	}
	if err := validation.ValidatePositive("config", "submitters", s.Submitters); err != nil {
		return err
	}
	if err := validation.ValidatePositive("config", "cpu_iterations", s.CPUIterations); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration("config", "io_wait", s.IOWait); err != nil {
		return err
	}
	return validation.ValidatePositiveDuration("config", "shutdown_timeout", s.ShutdownTimeout)
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, lperrors.NewValidationError("config", field, value, err.Error()).
			WithHint(`use a Go duration such as "500ms" or "2s"`)
	}
	if d <= 0 {
		return 0, lperrors.NewValidationError("config", field, value, "must be positive")
	}
	return d, nil
}
