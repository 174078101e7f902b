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

// Package shm contains platform-specific helpers for named shared memory segments.
package shm

import "errors"

var (
	// ErrUnsupported is returned on platforms without a segment implementation.
	ErrUnsupported = errors.New("shm: shared memory segments are not supported on this platform")
	// ErrNoSpace is returned when the segment directory cannot hold the requested size.
	ErrNoSpace = errors.New("shm: not enough free space for segment")
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Name string
	Path string
	Size int
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Dir  string
	Name string
	// Size is required when Create is set. Attaching takes the size from the segment itself.
	Size           int
	Create         bool
	CheckFreeSpace bool
}

// Function implementations are provided in platform-specific files (platform_linux.go, platform_other.go).
