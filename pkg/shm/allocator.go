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

package shm

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// DefaultArenaCeiling caps the capacity arenas grow to (1 MiB).
const DefaultArenaCeiling = 1 << 20

// AllocatorOptions configures an Allocator.
type AllocatorOptions struct {
	// PageSize is the large-allocation threshold and the arena growth step.
	// Zero means os.Getpagesize().
	PageSize int
	// ArenaCeiling caps arena growth. Zero means DefaultArenaCeiling.
	ArenaCeiling int
	Logger       *zap.Logger
	Metrics      *Metrics
}

// Stats describes allocator activity.
type Stats struct {
	Allocations       uint64
	AllocatedBytes    uint64
	ArenaSegments     uint64
	DedicatedSegments uint64
	ArenaCapacity     int
	ArenaOffset       int
}

type arena struct {
	segment *Segment
	offset  int
	size    int
}

// Allocator hands out regions of shared memory.
//
// Requests larger than one page get a dedicated segment of exactly their
// size. Smaller requests are carved from the current arena with a bump
// pointer; when it runs out a bigger arena replaces it and the request
// becomes the first tenant of the new one. Nothing is ever freed: a segment
// goes away only once no handle references it.
//
// The lock is per instance and intra-process. Every process that allocates
// runs its own Allocator with its own arena.
type Allocator struct {
	mu       sync.Mutex
	segments *Attacher
	pageSize int
	ceiling  int
	arena    *arena
	stats    Stats
	logger   *zap.Logger
	metrics  *Metrics
}

// NewAllocator creates an Allocator that creates segments through segments.
// The first arena is created lazily.
func NewAllocator(segments *Attacher, opts AllocatorOptions) *Allocator {
	if opts.PageSize <= 0 {
		opts.PageSize = os.Getpagesize()
	}
	if opts.ArenaCeiling <= 0 {
		opts.ArenaCeiling = DefaultArenaCeiling
	}
	if opts.ArenaCeiling < opts.PageSize {
		opts.ArenaCeiling = opts.PageSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Allocator{
		segments: segments,
		pageSize: opts.PageSize,
		ceiling:  opts.ArenaCeiling,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// PageSize returns the large-allocation threshold.
func (a *Allocator) PageSize() int { return a.pageSize }

// Segments returns the attacher the allocator creates segments through.
func (a *Allocator) Segments() *Attacher { return a.segments }

// Allocate returns a handle to size bytes of shared memory. The bytes are
// not initialized.
func (a *Allocator) Allocate(size int) (*Handle, error) {
	if size <= 0 {
		return nil, &InvalidSizeError{Size: size}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if size > a.pageSize {
		return a.allocateLarge(size)
	}
	return a.allocateSmall(size)
}

func (a *Allocator) allocateLarge(size int) (*Handle, error) {
	seg, err := a.segments.Create(size)
	if err != nil {
		return nil, err
	}
	a.stats.DedicatedSegments++
	a.record(kindLarge, size)
	a.logger.Debug("dedicated segment allocated", zap.String("segment", seg.desc.Name), zap.Int("size", size))
	return &Handle{segment: seg, offset: 0, size: size}, nil
}

func (a *Allocator) allocateSmall(size int) (*Handle, error) {
	if a.arena == nil || a.arena.size-a.arena.offset < size {
		if err := a.grow(size); err != nil {
			return nil, err
		}
	}
	h := &Handle{segment: a.arena.segment, offset: a.arena.offset, size: size}
	a.arena.offset += size
	a.record(kindSmall, size)
	return h, nil
}

// grow replaces the current arena with a fresh segment. Handles carved from
// the old one keep it alive.
func (a *Allocator) grow(size int) error {
	capacity := a.pageSize
	if a.arena != nil {
		capacity = min(a.arena.size+a.pageSize, a.ceiling)
	}
	capacity = max(capacity, size)

	seg, err := a.segments.Create(capacity)
	if err != nil {
		return err
	}
	if a.arena != nil {
		a.metrics.ArenaGrowths.Inc()
	}
	a.arena = &arena{segment: seg, size: capacity}
	a.stats.ArenaSegments++
	a.metrics.ArenaCapacity.Set(float64(capacity))
	a.logger.Debug("arena segment created", zap.String("segment", seg.desc.Name), zap.Int("capacity", capacity))
	return nil
}

func (a *Allocator) record(kind string, size int) {
	a.stats.Allocations++
	a.stats.AllocatedBytes += uint64(size)
	a.metrics.Allocations.WithLabelValues(kind).Inc()
	a.metrics.AllocatedBytes.WithLabelValues(kind).Add(float64(size))
}

// Reset drops the current arena. Handles already returned stay valid; the
// next small allocation starts a fresh arena. The old arena is unmapped
// once its last handle is unreachable.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.arena = nil
	a.metrics.Resets.Inc()
	a.metrics.ArenaCapacity.Set(0)
	a.logger.Debug("allocator reset")
}

// Stats returns a snapshot of allocator activity.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	if a.arena != nil {
		s.ArenaCapacity = a.arena.size
		s.ArenaOffset = a.arena.offset
	}
	return s
}
