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

// Package shmarray creates array views whose memory comes from a shared
// memory allocator, so that they can be passed to other processes by
// reference.
package shmarray

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/srediag/sharedmem/pkg/ndarray"
	"github.com/srediag/sharedmem/pkg/shm"
)

// DefaultParallelThreshold is the array size in bytes from which fills are
// split across goroutines.
const DefaultParallelThreshold = 64 << 10

// FillOptions controls how Zeros, Ones and Full write their values.
type FillOptions struct {
	// ParallelThreshold is the size in bytes from which a fill is split
	// into chunks. Zero means DefaultParallelThreshold; negative disables
	// parallel fills.
	ParallelThreshold int
	// Workers is the size of a dedicated fill pool. Zero uses the shared
	// ants pool.
	Workers int
}

// Factory creates shared arrays on one allocator.
type Factory struct {
	alloc     *shm.Allocator
	threshold int
	pool      *ants.Pool
}

// NewFactory creates a Factory. Call Release when a dedicated pool was requested.
func NewFactory(alloc *shm.Allocator, opts FillOptions) (*Factory, error) {
	f := &Factory{alloc: alloc, threshold: opts.ParallelThreshold}
	if f.threshold == 0 {
		f.threshold = DefaultParallelThreshold
	}
	if opts.Workers > 0 {
		pool, err := ants.NewPool(opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("shmarray: create fill pool: %w", err)
		}
		f.pool = pool
	}
	return f, nil
}

// Release stops the dedicated fill pool, if any.
func (f *Factory) Release() {
	if f.pool != nil {
		f.pool.Release()
	}
}

// Allocator returns the allocator backing f.
func (f *Factory) Allocator() *shm.Allocator { return f.alloc }

// Empty returns a view of shape whose element values are unspecified.
func (f *Factory) Empty(shape []int, dtype ndarray.DType, order ndarray.Order) (*ndarray.View, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %s", ndarray.ErrDType, dtype)
	}
	nbytes, err := ndarray.ByteSize(shape, dtype.Size())
	if err != nil {
		return nil, err
	}
	if _, err := ndarray.StridesFor(shape, dtype.Size(), order); err != nil {
		return nil, err
	}
	// Empty arrays still get a handle so they can be shared like any other.
	h, err := f.alloc.Allocate(max(nbytes, 1))
	if err != nil {
		return nil, err
	}
	return ndarray.New(h, dtype, shape, order)
}

// Zeros returns a view of shape with every element zero.
func (f *Factory) Zeros(shape []int, dtype ndarray.DType, order ndarray.Order) (*ndarray.View, error) {
	return f.Full(shape, dtype, order, 0)
}

// Ones returns a view of shape with every element one.
func (f *Factory) Ones(shape []int, dtype ndarray.DType, order ndarray.Order) (*ndarray.View, error) {
	return f.Full(shape, dtype, order, 1)
}

// Full returns a view of shape with every element set to x. The value is
// always written: arena memory may hold bytes of earlier allocations.
func (f *Factory) Full(shape []int, dtype ndarray.DType, order ndarray.Order, x float64) (*ndarray.View, error) {
	v, err := f.Empty(shape, dtype, order)
	if err != nil {
		return nil, err
	}
	f.fill(v, x)
	return v, nil
}

func (f *Factory) submit(task func()) error {
	if f.pool != nil {
		return f.pool.Submit(task)
	}
	return ants.Submit(task)
}

func (f *Factory) workers() int {
	if f.pool != nil {
		return f.pool.Cap()
	}
	return runtime.GOMAXPROCS(0)
}

// fill writes x into a freshly laid out view. Large views are split into
// contiguous chunks filled concurrently.
func (f *Factory) fill(v *ndarray.View, x float64) {
	if f.threshold < 0 || v.NBytes() < f.threshold {
		v.Fill(x)
		return
	}
	flat, err := ndarray.New(v.Root().Owner(), v.DType(), []int{v.Len()}, ndarray.RowMajor)
	if err != nil {
		v.Fill(x)
		return
	}
	n := flat.Len()
	chunks := min(f.workers(), n)
	step := (n + chunks - 1) / chunks
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += step {
		chunk, err := flat.Slice(0, lo, min(lo+step, n), 1)
		if err != nil {
			continue
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			chunk.Fill(x)
		}
		if err := f.submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
}

var defaultFactory = &Factory{threshold: DefaultParallelThreshold}

func withAllocator(alloc *shm.Allocator) *Factory {
	f := *defaultFactory
	f.alloc = alloc
	return &f
}

// Empty allocates an array from alloc without initializing its elements.
func Empty(alloc *shm.Allocator, shape []int, dtype ndarray.DType, order ndarray.Order) (*ndarray.View, error) {
	return withAllocator(alloc).Empty(shape, dtype, order)
}

// Zeros allocates an array from alloc filled with zeros.
func Zeros(alloc *shm.Allocator, shape []int, dtype ndarray.DType, order ndarray.Order) (*ndarray.View, error) {
	return withAllocator(alloc).Zeros(shape, dtype, order)
}

// Ones allocates an array from alloc filled with ones.
func Ones(alloc *shm.Allocator, shape []int, dtype ndarray.DType, order ndarray.Order) (*ndarray.View, error) {
	return withAllocator(alloc).Ones(shape, dtype, order)
}

// Full allocates an array from alloc filled with x.
func Full(alloc *shm.Allocator, shape []int, dtype ndarray.DType, order ndarray.Order, x float64) (*ndarray.View, error) {
	return withAllocator(alloc).Full(shape, dtype, order, x)
}
