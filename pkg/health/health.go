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

// Package health exposes liveness and readiness checks for processes that
// host shared memory allocators.
package health

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// DefaultMaxGoroutines is the goroutine count above which the process
	// is reported as not live.
	DefaultMaxGoroutines = 10000
	// DefaultMinFreeBytes is the free space the segment directory needs for
	// the process to be ready (one default arena).
	DefaultMinFreeBytes = 1 << 20
)

// Options configures the health checks.
type Options struct {
	// SegmentDir is the directory segments are created in.
	SegmentDir    string
	MinFreeBytes  uint64
	MaxGoroutines int
}

// NewHandler returns a handler serving /live and /ready.
func NewHandler(opts Options) healthcheck.Handler {
	if opts.MaxGoroutines <= 0 {
		opts.MaxGoroutines = DefaultMaxGoroutines
	}
	if opts.MinFreeBytes == 0 {
		opts.MinFreeBytes = DefaultMinFreeBytes
	}
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(opts.MaxGoroutines))
	if opts.SegmentDir != "" {
		h.AddReadinessCheck("segment-dir-free-space", FreeSpaceCheck(opts.SegmentDir, opts.MinFreeBytes))
	}
	return h
}

// FreeSpaceCheck fails when dir has less than min bytes free.
func FreeSpaceCheck(dir string, min uint64) healthcheck.Check {
	return func() error {
		usage, err := disk.Usage(dir)
		if err != nil {
			return fmt.Errorf("stat %s: %w", dir, err)
		}
		if usage.Free < min {
			return fmt.Errorf("%s has %d bytes free, need %d", dir, usage.Free, min)
		}
		return nil
	}
}
