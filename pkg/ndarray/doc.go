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

// Package ndarray provides strided, multi-dimensional views over raw bytes.
//
// A View describes how to read elements of one DType out of a byte buffer:
// a shape, per-axis byte strides and the byte offset of the first element.
// Views built by slicing keep a reference to the view they came from, so
// every view has exactly one root whose Owner holds the memory. Owners are
// either private buffers created by Make or externally managed memory such
// as shared memory handles.
//
// Element access converts through float64. Values are stored in native
// byte order with no alignment requirement.
package ndarray
