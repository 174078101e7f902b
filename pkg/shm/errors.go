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
	"fmt"
)

var (
	errOutOfBounds       = errors.New("region out of segment bounds")
	errInvalidDescriptor = errors.New("invalid segment descriptor")
)

// InvalidSizeError is returned when an allocation of a non-positive size is requested.
type InvalidSizeError struct {
	Size int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("shm: invalid allocation size %d", e.Size)
}

// SegmentCreationError is returned when the provider fails to create a segment.
//
// The provider error can be accessed via errors.Unwrap.
type SegmentCreationError struct {
	Size int
	Err  error
}

func (e *SegmentCreationError) Error() string {
	return fmt.Sprintf("shm: create segment of %d bytes: %v", e.Size, e.Err)
}

func (e *SegmentCreationError) Unwrap() error { return e.Err }

// AttachError is returned when a segment cannot be attached in this process,
// typically because its descriptor is stale or the segment was removed.
//
// The provider error can be accessed via errors.Unwrap.
type AttachError struct {
	Descriptor Descriptor
	Err        error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("shm: attach segment %s: %v", e.Descriptor, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }
