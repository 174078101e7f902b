/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads sharedmem settings from SHAREDMEM_* environment
// variables.
package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/srediag/sharedmem/internal/logging"
	"github.com/srediag/sharedmem/pkg/shm"
	"github.com/srediag/sharedmem/pkg/shmarray"
)

// Prefix is the environment variable prefix.
const Prefix = "SHAREDMEM"

// Config holds all configuration.
type Config struct {
	Segment SegmentConfig
	Heap    HeapConfig
	Fill    FillConfig
	Log     LogConfig
}

// SegmentConfig holds segment provider configuration.
type SegmentConfig struct {
	Dir            string `envconfig:"DIR" default:"/dev/shm"`
	Prefix         string `envconfig:"PREFIX" default:"sharedmem"`
	CheckFreeSpace bool   `envconfig:"CHECK_FREE_SPACE" default:"true"`
}

// HeapConfig holds allocator configuration.
type HeapConfig struct {
	PageSize     int  `envconfig:"PAGE_SIZE" default:"0"`
	ArenaCeiling int  `envconfig:"ARENA_CEILING" default:"1048576"`
	AttachCache  bool `envconfig:"ATTACH_CACHE" default:"true"`
}

// FillConfig holds array fill configuration.
type FillConfig struct {
	ParallelThreshold int `envconfig:"PARALLEL_THRESHOLD" default:"65536"`
	Workers           int `envconfig:"WORKERS" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Segment: SegmentConfig{
			Dir:            shm.DefaultDir,
			Prefix:         shm.DefaultPrefix,
			CheckFreeSpace: true,
		},
		Heap: HeapConfig{
			ArenaCeiling: shm.DefaultArenaCeiling,
			AttachCache:  true,
		},
		Fill: FillConfig{
			ParallelThreshold: shmarray.DefaultParallelThreshold,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Segment.Dir == "" {
		errs = append(errs, errors.New("segment dir must not be empty"))
	}
	if c.Heap.PageSize < 0 {
		errs = append(errs, fmt.Errorf("heap page size %d is negative", c.Heap.PageSize))
	}
	if c.Heap.ArenaCeiling < 0 {
		errs = append(errs, fmt.Errorf("heap arena ceiling %d is negative", c.Heap.ArenaCeiling))
	}
	if c.Fill.Workers < 0 {
		errs = append(errs, fmt.Errorf("fill workers %d is negative", c.Fill.Workers))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ProviderOptions returns the segment provider options.
func (c *Config) ProviderOptions(logger *zap.Logger) shm.ProviderOptions {
	return shm.ProviderOptions{
		Dir:            c.Segment.Dir,
		Prefix:         c.Segment.Prefix,
		CheckFreeSpace: c.Segment.CheckFreeSpace,
		Logger:         logger,
	}
}

// AttacherOptions returns the attach table options.
func (c *Config) AttacherOptions(logger *zap.Logger, metrics *shm.Metrics) shm.AttacherOptions {
	return shm.AttacherOptions{
		DisableCache: !c.Heap.AttachCache,
		Logger:       logger,
		Metrics:      metrics,
	}
}

// AllocatorOptions returns the allocator options.
func (c *Config) AllocatorOptions(logger *zap.Logger, metrics *shm.Metrics) shm.AllocatorOptions {
	return shm.AllocatorOptions{
		PageSize:     c.Heap.PageSize,
		ArenaCeiling: c.Heap.ArenaCeiling,
		Logger:       logger,
		Metrics:      metrics,
	}
}

// FillOptions returns the array fill options.
func (c *Config) FillOptions() shmarray.FillOptions {
	return shmarray.FillOptions{
		ParallelThreshold: c.Fill.ParallelThreshold,
		Workers:           c.Fill.Workers,
	}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
	}
}
