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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the allocator and attacher Prometheus metrics.
type Metrics struct {
	Allocations      *prometheus.CounterVec
	AllocatedBytes   *prometheus.CounterVec
	ArenaGrowths     prometheus.Counter
	ArenaCapacity    prometheus.Gauge
	Resets           prometheus.Counter
	SegmentsCreated  prometheus.Counter
	SegmentsReleased prometheus.Counter
	Attaches         *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Allocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmem_allocations_total",
				Help: "Total number of shared memory allocations",
			},
			[]string{"kind"},
		),
		AllocatedBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmem_allocated_bytes_total",
				Help: "Total number of bytes handed out by the allocator",
			},
			[]string{"kind"},
		),
		ArenaGrowths: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmem_arena_growths_total",
				Help: "Number of times a new arena segment replaced the current one",
			},
		),
		ArenaCapacity: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "sharedmem_arena_capacity_bytes",
				Help: "Capacity of the current arena segment",
			},
		),
		Resets: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmem_allocator_resets_total",
				Help: "Number of allocator resets",
			},
		),
		SegmentsCreated: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmem_segments_created_total",
				Help: "Number of segments created by this process",
			},
		),
		SegmentsReleased: f.NewCounter(
			prometheus.CounterOpts{
				Name: "sharedmem_segments_released_total",
				Help: "Number of segment mappings released after becoming unreachable",
			},
		),
		Attaches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedmem_segment_attaches_total",
				Help: "Segment attach requests by result",
			},
			[]string{"result"},
		),
	}
}

const (
	kindSmall = "small"
	kindLarge = "large"

	attachMapped = "mapped"
	attachCached = "cached"
	attachFailed = "failed"
)
