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

// Package codec serializes array views for transport between processes.
//
// A view whose memory lives in a shared memory allocation is encoded as a
// Reference: the allocation's handle plus the shape, dtype and strides
// needed to rebuild the view. The receiver attaches the segment and reads
// the same bytes, so writes on either side are visible to the other.
// Views over private memory are encoded as a Copy of their values.
//
// Payloads are plain structs with JSON tags and can be carried by any
// transport that moves bytes.
package codec
