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
	"unsafe"

	"github.com/bytedance/sonic"
)

// Descriptor identifies a segment across process boundaries.
type Descriptor struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s[%d]", d.Name, d.Size)
}

// Provider creates and attaches OS shared memory segments.
//
// Two Attach calls with the same descriptor may return different mappings,
// in one process or in two; deduplication is the Attacher's job.
type Provider interface {
	// Create makes a new segment of exactly size bytes and maps it.
	Create(size int) (Descriptor, []byte, error)
	// Attach maps an existing segment into this process.
	Attach(desc Descriptor) ([]byte, error)
	// SizeOf returns the size of an existing segment.
	SizeOf(desc Descriptor) (int, error)
}

// Unmapper is implemented by providers whose mappings outlive the garbage
// collector and must be released explicitly.
type Unmapper interface {
	// Unmap releases a mapping returned by Create or Attach.
	Unmap(mem []byte) error
}

// Segment is a shared memory segment mapped into this process.
//
// Its JSON form is the descriptor only; the mapping is process-local.
// Segments obtained from an Attacher are unmapped once they become
// unreachable, so slices taken from Bytes are only valid while the
// Segment, or a Handle into it, is still referenced.
type Segment struct {
	desc Descriptor
	mem  []byte
}

func newSegment(desc Descriptor, mem []byte) (*Segment, error) {
	if desc.Size <= 0 || len(mem) < desc.Size {
		return nil, fmt.Errorf("%w: %s mapped %d bytes", errInvalidDescriptor, desc, len(mem))
	}
	return &Segment{desc: desc, mem: mem[:desc.Size:desc.Size]}, nil
}

// Descriptor returns the transferable identity of the segment.
func (s *Segment) Descriptor() Descriptor { return s.desc }

// Size returns the segment size in bytes.
func (s *Segment) Size() int { return s.desc.Size }

// Bytes returns the whole mapping.
func (s *Segment) Bytes() []byte { return s.mem }

// Base returns the process-local address of the first byte of the mapping.
func (s *Segment) Base() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s.mem)))
}

// MarshalJSON implements json.Marshaler.
func (s *Segment) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(s.desc)
}
