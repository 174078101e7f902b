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

package ndarray

import "errors"

var (
	// ErrShape is returned for invalid or mismatched shapes.
	ErrShape = errors.New("ndarray: invalid shape")
	// ErrDType is returned for unknown element types.
	ErrDType = errors.New("ndarray: invalid dtype")
	// ErrOrder is returned for an unusable memory order.
	ErrOrder = errors.New("ndarray: invalid order")
	// ErrIndex is returned for out of range axes, indices and slices.
	ErrIndex = errors.New("ndarray: index out of range")
	// ErrOutOfBounds is returned when a view would reach outside its owner's bytes.
	ErrOutOfBounds = errors.New("ndarray: view out of bounds")
	// ErrNotContiguous is returned by operations that need a contiguous view.
	ErrNotContiguous = errors.New("ndarray: view is not contiguous")
)
