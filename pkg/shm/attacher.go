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
	"runtime"
	"weak"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"
)

// AttacherOptions configures an Attacher.
type AttacherOptions struct {
	// DisableCache maps a segment again on every Attach instead of reusing
	// the mapping this process already holds.
	DisableCache bool
	Logger       *zap.Logger
	Metrics      *Metrics
}

// Attacher is the per-process table of mapped segments. Segments created
// through it are registered too, so decoding a reference to a local segment
// reuses the mapping that created it.
//
// The table holds segments weakly. Once nothing references a segment its
// entry is dropped and, for providers implementing Unmapper, its mapping
// is released.
type Attacher struct {
	provider     Provider
	cache        cmap.ConcurrentMap[string, weak.Pointer[Segment]]
	disableCache bool
	logger       *zap.Logger
	metrics      *Metrics
}

// NewAttacher creates an Attacher over provider.
func NewAttacher(provider Provider, opts AttacherOptions) *Attacher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Attacher{
		provider:     provider,
		cache:        cmap.New[weak.Pointer[Segment]](),
		disableCache: opts.DisableCache,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// Provider returns the underlying segment provider.
func (a *Attacher) Provider() Provider { return a.provider }

// Create makes a new segment of size bytes.
func (a *Attacher) Create(size int) (*Segment, error) {
	desc, mem, err := a.provider.Create(size)
	if err != nil {
		return nil, &SegmentCreationError{Size: size, Err: err}
	}
	seg, err := newSegment(desc, mem)
	if err != nil {
		a.unmap(released{name: desc.Name, mem: mem})
		return nil, &SegmentCreationError{Size: size, Err: err}
	}
	a.track(seg, mem)
	if !a.disableCache {
		a.cache.Set(desc.Name, weak.Make(seg))
	}
	a.metrics.SegmentsCreated.Inc()
	a.logger.Info("shared memory segment created", zap.String("name", desc.Name), zap.Int("size", desc.Size))
	return seg, nil
}

// Attach returns this process's mapping of the segment named by desc,
// mapping it first if needed.
func (a *Attacher) Attach(desc Descriptor) (*Segment, error) {
	if desc.Name == "" || desc.Size <= 0 {
		a.metrics.Attaches.WithLabelValues(attachFailed).Inc()
		return nil, &AttachError{Descriptor: desc, Err: errInvalidDescriptor}
	}
	if !a.disableCache {
		if seg := a.cached(desc.Name); seg != nil {
			if seg.Size() != desc.Size {
				a.metrics.Attaches.WithLabelValues(attachFailed).Inc()
				return nil, &AttachError{Descriptor: desc, Err: errInvalidDescriptor}
			}
			a.metrics.Attaches.WithLabelValues(attachCached).Inc()
			return seg, nil
		}
	}

	mem, err := a.provider.Attach(desc)
	if err != nil {
		a.metrics.Attaches.WithLabelValues(attachFailed).Inc()
		a.logger.Warn("failed to attach segment", zap.Stringer("segment", desc), zap.Error(err))
		return nil, &AttachError{Descriptor: desc, Err: err}
	}
	seg, err := newSegment(desc, mem)
	if err != nil {
		a.unmap(released{name: desc.Name, mem: mem})
		a.metrics.Attaches.WithLabelValues(attachFailed).Inc()
		return nil, &AttachError{Descriptor: desc, Err: err}
	}
	a.track(seg, mem)
	a.metrics.Attaches.WithLabelValues(attachMapped).Inc()
	a.logger.Debug("shared memory segment attached", zap.Stringer("segment", desc))

	if a.disableCache {
		return seg, nil
	}
	// A concurrent Attach may have won; keep its mapping so every caller
	// in this process shares one. The loser is released by its cleanup.
	winner := seg
	a.cache.Upsert(desc.Name, weak.Make(seg),
		func(exists bool, old, fresh weak.Pointer[Segment]) weak.Pointer[Segment] {
			if exists {
				if live := old.Value(); live != nil && live.Size() == desc.Size {
					winner = live
					return old
				}
			}
			return fresh
		})
	return winner, nil
}

// Len returns the number of cached segments still referenced.
func (a *Attacher) Len() int {
	n := 0
	for _, wp := range a.cache.Items() {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}

func (a *Attacher) cached(name string) *Segment {
	wp, ok := a.cache.Get(name)
	if !ok {
		return nil
	}
	return wp.Value()
}

// released is what a segment's cleanup needs once the segment is gone.
// It must not point back at the segment.
type released struct {
	name string
	mem  []byte
}

// track arranges for seg's cache entry and mapping to be released once
// seg is unreachable.
func (a *Attacher) track(seg *Segment, mem []byte) {
	runtime.AddCleanup(seg, a.release, released{name: seg.desc.Name, mem: mem})
}

func (a *Attacher) release(r released) {
	a.cache.RemoveCb(r.name, func(_ string, wp weak.Pointer[Segment], exists bool) bool {
		return exists && wp.Value() == nil
	})
	a.unmap(r)
}

func (a *Attacher) unmap(r released) {
	u, ok := a.provider.(Unmapper)
	if !ok {
		return
	}
	if err := u.Unmap(r.mem); err != nil {
		a.logger.Warn("failed to unmap segment", zap.String("name", r.name), zap.Error(err))
		return
	}
	a.metrics.SegmentsReleased.Inc()
	a.logger.Debug("shared memory segment unmapped", zap.String("name", r.name))
}
