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

	"github.com/bytedance/sonic"
)

// Handle identifies a region of one segment. Handles are immutable; every
// view built on a handle keeps it, and therefore its segment, reachable.
type Handle struct {
	segment *Segment
	offset  int
	size    int
}

// HandleRef is the wire form of a Handle.
type HandleRef struct {
	Segment Descriptor `json:"segment"`
	Offset  int        `json:"offset"`
	Size    int        `json:"size"`
}

// Validate checks that the region lies within the segment.
func (r HandleRef) Validate() error {
	if !regionFits(r.Offset, r.Size, r.Segment.Size) {
		return fmt.Errorf("%w: offset %d size %d in %s", errOutOfBounds, r.Offset, r.Size, r.Segment)
	}
	return nil
}

// NewHandle returns a handle for size bytes at offset within seg.
func NewHandle(seg *Segment, offset, size int) (*Handle, error) {
	if !regionFits(offset, size, seg.Size()) {
		return nil, fmt.Errorf("%w: offset %d size %d in %s", errOutOfBounds, offset, size, seg.desc)
	}
	return &Handle{segment: seg, offset: offset, size: size}, nil
}

// regionFits reports whether [offset, offset+size) lies in [0, total)
// without computing offset+size, which may overflow.
func regionFits(offset, size, total int) bool {
	return offset >= 0 && size >= 0 && offset <= total && size <= total-offset
}

// Segment returns the segment the handle points into.
func (h *Handle) Segment() *Segment { return h.segment }

// Offset returns the byte offset of the region within its segment.
func (h *Handle) Offset() int { return h.offset }

// Size returns the region size in bytes.
func (h *Handle) Size() int { return h.size }

// Bytes returns the region. Its capacity is clipped to the region size.
func (h *Handle) Bytes() []byte {
	end := h.offset + h.size
	return h.segment.mem[h.offset:end:end]
}

// Address returns the process-local address of the first byte of the region.
func (h *Handle) Address() uintptr {
	return h.segment.Base() + uintptr(h.offset)
}

// Ref returns the wire form of the handle.
func (h *Handle) Ref() HandleRef {
	return HandleRef{Segment: h.segment.desc, Offset: h.offset, Size: h.size}
}

// MarshalJSON implements json.Marshaler.
func (h *Handle) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(h.Ref())
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s+%d[%d]", h.segment.desc.Name, h.offset, h.size)
}
