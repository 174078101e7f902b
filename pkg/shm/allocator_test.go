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
	"errors"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/suite"
)

const testPageSize = 4096

var errBoom = errors.New("boom")

type AllocatorTestSuite struct {
	suite.Suite
	provider *HeapProvider
	metrics  *Metrics
	segments *Attacher
	alloc    *Allocator
}

func (s *AllocatorTestSuite) SetupTest() {
	s.provider = NewHeapProvider()
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.segments = NewAttacher(s.provider, AttacherOptions{Metrics: s.metrics})
	s.alloc = NewAllocator(s.segments, AllocatorOptions{PageSize: testPageSize, Metrics: s.metrics})
}

func (s *AllocatorTestSuite) TestInvalidSize() {
	for _, size := range []int{0, -1, -testPageSize} {
		h, err := s.alloc.Allocate(size)
		s.Require().Nil(h)
		var invalid *InvalidSizeError
		s.Require().ErrorAs(err, &invalid)
		s.Require().Equal(size, invalid.Size)
	}
	s.Require().Equal(0, s.provider.Len())
}

func (s *AllocatorTestSuite) TestHandleWithinSegment() {
	for _, size := range []int{1, 7, 64, 1000, testPageSize - 1, testPageSize, testPageSize + 1, 3 * testPageSize, 17} {
		h, err := s.alloc.Allocate(size)
		s.Require().NoError(err)
		s.Require().Equal(size, h.Size())
		s.Require().GreaterOrEqual(h.Offset(), 0)
		s.Require().LessOrEqual(h.Offset()+h.Size(), h.Segment().Size())
		s.Require().Len(h.Bytes(), size)
		s.Require().Equal(size, cap(h.Bytes()))
	}
}

func (s *AllocatorTestSuite) TestFirstArena() {
	h, err := s.alloc.Allocate(100)
	s.Require().NoError(err)
	s.Require().Equal(0, h.Offset())
	s.Require().Equal(testPageSize, h.Segment().Size())

	stats := s.alloc.Stats()
	s.Require().Equal(testPageSize, stats.ArenaCapacity)
	s.Require().Equal(100, stats.ArenaOffset)
	s.Require().Equal(uint64(1), stats.ArenaSegments)
}

func (s *AllocatorTestSuite) TestSmallAllocationsDisjoint() {
	sizes := []int{100, 200, 300, 1, 8, 1000, 24}
	var handles []*Handle
	for _, size := range sizes {
		h, err := s.alloc.Allocate(size)
		s.Require().NoError(err)
		handles = append(handles, h)
	}
	offset := 0
	for i, h := range handles {
		s.Require().Same(handles[0].Segment(), h.Segment())
		s.Require().Equal(offset, h.Offset(), "allocation %d", i)
		offset += sizes[i]
	}
	s.Require().NoError(assertDisjoint(handles))
}

func (s *AllocatorTestSuite) TestGrowthLandsAtOffsetZero() {
	first, err := s.alloc.Allocate(4000)
	s.Require().NoError(err)
	s.Require().Equal(0, first.Offset())

	grown, err := s.alloc.Allocate(200)
	s.Require().NoError(err)
	s.Require().NotSame(first.Segment(), grown.Segment())
	s.Require().Equal(0, grown.Offset())
	s.Require().Equal(2*testPageSize, grown.Segment().Size())

	next, err := s.alloc.Allocate(100)
	s.Require().NoError(err)
	s.Require().Same(grown.Segment(), next.Segment())
	s.Require().Equal(200, next.Offset())

	s.Require().Equal(float64(1), prometheusToFloat64(s.metrics.ArenaGrowths))
	s.Require().Equal(float64(2*testPageSize), prometheusToFloat64(s.metrics.ArenaCapacity))
}

func (s *AllocatorTestSuite) TestGrowthStopsAtCeiling() {
	alloc := NewAllocator(s.segments, AllocatorOptions{PageSize: 1 << 16, ArenaCeiling: 1 << 18})
	var capacities []int
	for i := 0; i < 14; i++ {
		h, err := alloc.Allocate(1 << 16)
		s.Require().NoError(err)
		if h.Offset() == 0 {
			capacities = append(capacities, h.Segment().Size())
		}
	}
	s.Require().Equal([]int{1 << 16, 2 << 16, 3 << 16, 4 << 16, 4 << 16}, capacities)
}

func (s *AllocatorTestSuite) TestDefaultCeiling() {
	alloc := NewAllocator(s.segments, AllocatorOptions{PageSize: testPageSize})
	s.Require().Equal(DefaultArenaCeiling, alloc.ceiling)

	small := NewAllocator(s.segments, AllocatorOptions{PageSize: testPageSize, ArenaCeiling: 16})
	s.Require().Equal(testPageSize, small.ceiling)
}

func (s *AllocatorTestSuite) TestLargeAllocation() {
	small, err := s.alloc.Allocate(64)
	s.Require().NoError(err)

	large, err := s.alloc.Allocate(testPageSize + 1)
	s.Require().NoError(err)
	s.Require().Equal(0, large.Offset())
	s.Require().Equal(testPageSize+1, large.Segment().Size())
	s.Require().NotSame(small.Segment(), large.Segment())

	// The arena is untouched by large allocations.
	after, err := s.alloc.Allocate(64)
	s.Require().NoError(err)
	s.Require().Same(small.Segment(), after.Segment())
	s.Require().Equal(64, after.Offset())

	stats := s.alloc.Stats()
	s.Require().Equal(uint64(1), stats.DedicatedSegments)
	s.Require().Equal(uint64(1), stats.ArenaSegments)
	s.Require().Equal(uint64(3), stats.Allocations)
	s.Require().Equal(uint64(64+testPageSize+1+64), stats.AllocatedBytes)
}

func (s *AllocatorTestSuite) TestSegmentCreationError() {
	s.provider.FailCreate = func(int) error { return errBoom }

	for _, size := range []int{8, testPageSize * 2} {
		h, err := s.alloc.Allocate(size)
		s.Require().Nil(h)
		var creation *SegmentCreationError
		s.Require().ErrorAs(err, &creation)
		s.Require().Equal(size, creation.Size)
		s.Require().ErrorIs(err, errBoom)
	}
	s.Require().Equal(Stats{}, s.alloc.Stats())

	s.provider.FailCreate = nil
	h, err := s.alloc.Allocate(8)
	s.Require().NoError(err)
	s.Require().Equal(0, h.Offset())
}

func (s *AllocatorTestSuite) TestReset() {
	before, err := s.alloc.Allocate(16)
	s.Require().NoError(err)
	copy(before.Bytes(), "shared memory!!!")

	s.alloc.Reset()
	s.Require().Equal(0, s.alloc.Stats().ArenaCapacity)

	after, err := s.alloc.Allocate(16)
	s.Require().NoError(err)
	s.Require().NotSame(before.Segment(), after.Segment())
	s.Require().Equal(0, after.Offset())
	s.Require().Equal(testPageSize, after.Segment().Size())

	// Outstanding handles survive the reset.
	s.Require().Equal("shared memory!!!", string(before.Bytes()))
	s.Require().Equal(float64(1), prometheusToFloat64(s.metrics.Resets))
	// A reset is not a growth.
	s.Require().Equal(float64(0), prometheusToFloat64(s.metrics.ArenaGrowths))
}

func (s *AllocatorTestSuite) TestResetReleasesOldArena() {
	provider := &unmapRecorder{HeapProvider: s.provider}
	segments := NewAttacher(provider, AttacherOptions{Metrics: s.metrics})
	alloc := NewAllocator(segments, AllocatorOptions{PageSize: testPageSize, Metrics: s.metrics})

	old := func() string {
		h, err := alloc.Allocate(64)
		s.Require().NoError(err)
		return h.Segment().Descriptor().Name
	}()
	alloc.Reset()
	current, err := alloc.Allocate(64)
	s.Require().NoError(err)

	s.Require().Eventually(func() bool {
		runtime.GC()
		_, cached := segments.cache.Get(old)
		return !cached && len(provider.released()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	s.Require().Equal(1, segments.Len())

	again, err := segments.Attach(current.Segment().Descriptor())
	s.Require().NoError(err)
	s.Require().Same(current.Segment(), again)
}

func (s *AllocatorTestSuite) TestConcurrentAllocate() {
	const workers, perWorker = 8, 200
	var (
		mu      sync.Mutex
		handles []*Handle
		wg      sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				h, err := s.alloc.Allocate(24)
				if err != nil {
					s.T().Error(err)
					return
				}
				mu.Lock()
				handles = append(handles, h)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Require().Len(handles, workers*perWorker)
	s.Require().NoError(assertDisjoint(handles))
}

func (s *AllocatorTestSuite) TestMetrics() {
	_, err := s.alloc.Allocate(10)
	s.Require().NoError(err)
	_, err = s.alloc.Allocate(testPageSize * 2)
	s.Require().NoError(err)

	s.Require().Equal(float64(1), prometheusToFloat64(s.metrics.Allocations.WithLabelValues(kindSmall)))
	s.Require().Equal(float64(1), prometheusToFloat64(s.metrics.Allocations.WithLabelValues(kindLarge)))
	s.Require().Equal(float64(10), prometheusToFloat64(s.metrics.AllocatedBytes.WithLabelValues(kindSmall)))
	s.Require().Equal(float64(2), prometheusToFloat64(s.metrics.SegmentsCreated))
}

func TestAllocatorTestSuite(t *testing.T) {
	suite.Run(t, new(AllocatorTestSuite))
}

// assertDisjoint checks that no two handles on the same segment overlap.
func assertDisjoint(handles []*Handle) error {
	bySegment := make(map[*Segment][]*Handle)
	for _, h := range handles {
		bySegment[h.Segment()] = append(bySegment[h.Segment()], h)
	}
	for seg, hs := range bySegment {
		sort.Slice(hs, func(i, j int) bool { return hs[i].Offset() < hs[j].Offset() })
		for i := 1; i < len(hs); i++ {
			if hs[i-1].Offset()+hs[i-1].Size() > hs[i].Offset() {
				return errors.New("overlapping allocations in " + seg.Descriptor().Name)
			}
		}
	}
	return nil
}

// prometheusToFloat64 reads the current value of a counter or gauge.
func prometheusToFloat64(c prometheus.Metric) float64 {
	m := &dto.Metric{}
	_ = c.Write(m)
	if m.Gauge != nil {
		return m.GetGauge().GetValue()
	}
	return m.GetCounter().GetValue()
}
