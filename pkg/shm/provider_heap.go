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
	"fmt"
	"io/fs"
	"sync"
)

// HeapProvider keeps segments in ordinary process memory ("heap-only mode").
//
// Every Attacher sharing one HeapProvider sees the same bytes, which makes
// it a stand-in for the OS when several simulated processes live in one
// test binary.
type HeapProvider struct {
	mu       sync.Mutex
	segments map[string][]byte
	seq      int

	// FailCreate, when set, is consulted before every Create and its error returned.
	FailCreate func(size int) error
}

// NewHeapProvider creates an empty HeapProvider.
func NewHeapProvider() *HeapProvider {
	return &HeapProvider{segments: make(map[string][]byte)}
}

// Create implements Provider.
func (p *HeapProvider) Create(size int) (Descriptor, []byte, error) {
	if p.FailCreate != nil {
		if err := p.FailCreate(size); err != nil {
			return Descriptor{}, nil, err
		}
	}
	if size <= 0 {
		return Descriptor{}, nil, fmt.Errorf("invalid segment size %d", size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	name := fmt.Sprintf("heap-%d", p.seq)
	mem := make([]byte, size)
	p.segments[name] = mem
	return Descriptor{Name: name, Size: size}, mem, nil
}

// Attach implements Provider.
func (p *HeapProvider) Attach(desc Descriptor) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.segments[desc.Name]
	if !ok {
		return nil, fmt.Errorf("segment %s: %w", desc.Name, fs.ErrNotExist)
	}
	return mem, nil
}

// SizeOf implements Provider.
func (p *HeapProvider) SizeOf(desc Descriptor) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mem, ok := p.segments[desc.Name]
	if !ok {
		return 0, fmt.Errorf("segment %s: %w", desc.Name, fs.ErrNotExist)
	}
	return len(mem), nil
}

// Remove forgets a segment, as if its OS name had been unlinked.
func (p *HeapProvider) Remove(desc Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.segments, desc.Name)
}

// Len returns the number of live segments.
func (p *HeapProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.segments)
}
