// Package config holds the evaluator's tunables and loads them from a YAML
// file and NODEGRAPH_* environment variables.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variable names
const (
	EnvWorkers          = "NODEGRAPH_WORKERS"
	EnvChunkSize        = "NODEGRAPH_CHUNK_SIZE"
	EnvMinParallelItems = "NODEGRAPH_MIN_PARALLEL_ITEMS"
	EnvMaxNetworkDepth  = "NODEGRAPH_MAX_NETWORK_DEPTH"
	EnvMaxHeapMB        = "NODEGRAPH_MAX_HEAP_MB"
	EnvLogLevel         = "LOG_LEVEL"
)

// Config configures an evaluator
type Config struct {
	// Workers is the size of the elementwise worker pool
	Workers int `yaml:"workers" validate:"min=1,max=4096"`

	// ChunkSize is the number of list items per pool task
	ChunkSize int `yaml:"chunk_size" validate:"min=1"`

	// MinParallelItems is the list length at which elementwise dispatch
	// moves to the pool; shorter lists run inline
	MinParallelItems int `yaml:"min_parallel_items" validate:"min=1"`

	// MaxNetworkDepth bounds compound nesting
	MaxNetworkDepth int `yaml:"max_network_depth" validate:"min=1,max=10000"`

	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`

	// MaxHeapMB degrades the memory health check above this heap size.
	// Zero disables the limit.
	MaxHeapMB int `yaml:"max_heap_mb" validate:"min=0"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Workers:          runtime.NumCPU(),
		ChunkSize:        64,
		MinParallelItems: 2,
		MaxNetworkDepth:  64,
		LogLevel:         "info",
	}
}

// LoadFile reads a YAML config file on top of the defaults
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds a config from defaults, an optional YAML file and the
// environment, then validates it
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv() error {
	ints := []struct {
		env string
		dst *int
	}{
		{EnvWorkers, &c.Workers},
		{EnvChunkSize, &c.ChunkSize},
		{EnvMinParallelItems, &c.MinParallelItems},
		{EnvMaxNetworkDepth, &c.MaxNetworkDepth},
		{EnvMaxHeapMB, &c.MaxHeapMB},
	}
	for _, f := range ints {
		s := os.Getenv(f.env)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", f.env, s)
		}
		*f.dst = n
	}

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.LogLevel = lvl
	}
	return nil
}
