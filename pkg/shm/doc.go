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

// Package shm provides shared memory segments, allocation handles and a
// process-local heap allocator for handing memory between cooperating processes.
//
// Segments are created and attached through a Provider. The Attacher is the
// per-process view of every segment the process has mapped; the Allocator
// carves small requests out of a bump-pointer arena segment and gives large
// requests a dedicated segment of their own.
//
// A Handle names a region of a segment. Its wire form, HandleRef, carries the
// segment descriptor, offset and size so another process can attach the same
// bytes; it never carries a process-local address.
//
// Example usage:
//
//	provider := shm.NewDevShmProvider(shm.ProviderOptions{})
//	segments := shm.NewAttacher(provider, shm.AttacherOptions{})
//	alloc := shm.NewAllocator(segments, shm.AllocatorOptions{})
//	h, err := alloc.Allocate(128)
//	// ...
//
// Platform-specific helpers are in internal/shm.
package shm
