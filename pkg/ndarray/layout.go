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

import (
	"fmt"
	"math"
	"slices"
)

// Order is the memory layout of a view.
type Order uint8

const (
	// RowMajor is C order: the last axis varies fastest.
	RowMajor Order = iota
	// ColumnMajor is Fortran order: the first axis varies fastest.
	ColumnMajor
	// Arbitrary is any other strided layout.
	Arbitrary
)

var orderNames = [...]string{RowMajor: "C", ColumnMajor: "F", Arbitrary: "A"}

func (o Order) String() string {
	if int(o) >= len(orderNames) {
		return fmt.Sprintf("order(%d)", uint8(o))
	}
	return orderNames[o]
}

// MarshalText implements encoding.TextMarshaler.
func (o Order) MarshalText() ([]byte, error) {
	if int(o) >= len(orderNames) {
		return nil, fmt.Errorf("ndarray: cannot marshal %s", o)
	}
	return []byte(orderNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Order) UnmarshalText(b []byte) error {
	for i, name := range orderNames {
		if name == string(b) {
			*o = Order(i)
			return nil
		}
	}
	return fmt.Errorf("ndarray: unknown order %q", b)
}

// NumElements returns the number of elements of shape. A 0-d shape holds one.
// The count wraps for shapes that fail validation; use ByteSize for shapes
// from untrusted input.
func NumElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// RowMajorStrides returns the C-order byte strides of shape.
func RowMajorStrides(shape []int, itemsize int) []int {
	strides := make([]int, len(shape))
	acc := itemsize
	for k := len(shape) - 1; k >= 0; k-- {
		strides[k] = acc
		acc *= shape[k]
	}
	return strides
}

// ColumnMajorStrides returns the Fortran-order byte strides of shape.
func ColumnMajorStrides(shape []int, itemsize int) []int {
	strides := make([]int, len(shape))
	acc := itemsize
	for k := range shape {
		strides[k] = acc
		acc *= shape[k]
	}
	return strides
}

// StridesFor returns the canonical strides of shape in order o.
func StridesFor(shape []int, itemsize int, o Order) ([]int, error) {
	switch o {
	case RowMajor:
		return RowMajorStrides(shape, itemsize), nil
	case ColumnMajor:
		return ColumnMajorStrides(shape, itemsize), nil
	}
	return nil, fmt.Errorf("%w: no canonical strides for order %s", ErrOrder, o)
}

// ByteSize returns the number of bytes a packed array of shape occupies.
// It fails with ErrShape when an extent is negative or the size does not
// fit in an int.
func ByteSize(shape []int, itemsize int) (int, error) {
	if err := validateShape(shape); err != nil {
		return 0, err
	}
	n, ok := mulInt(NumElements(shape), itemsize)
	if !ok {
		return 0, fmt.Errorf("%w: %v elements of %d bytes overflow", ErrShape, shape, itemsize)
	}
	return n, nil
}

// Extent returns the byte range [lo, hi) touched by a view relative to its
// first element. Negative strides make lo negative. Empty views touch nothing.
// The layout must be one InBounds accepts.
func Extent(shape, strides []int, itemsize int) (lo, hi int) {
	lo, hi, _ = extent(shape, strides, itemsize)
	return lo, hi
}

// extent is Extent with overflow detection.
func extent(shape, strides []int, itemsize int) (lo, hi int, ok bool) {
	if slices.Contains(shape, 0) {
		return 0, 0, true
	}
	hi = itemsize
	for k := range shape {
		span, ok := mulInt(shape[k]-1, strides[k])
		if !ok {
			return 0, 0, false
		}
		if span < 0 {
			lo, ok = addInt(lo, span)
		} else {
			hi, ok = addInt(hi, span)
		}
		if !ok {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

// elementCount is NumElements with overflow detection.
func elementCount(shape []int) (int, bool) {
	if slices.Contains(shape, 0) {
		return 0, true
	}
	n := 1
	for _, d := range shape {
		var ok bool
		if n, ok = mulInt(n, d); !ok {
			return 0, false
		}
	}
	return n, true
}

func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func addInt(a, b int) (int, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

// contiguous reports whether strides are the canonical strides of shape,
// ignoring axes of length one.
func contiguous(shape, strides []int, itemsize int, rowMajor bool) bool {
	if NumElements(shape) == 0 {
		return true
	}
	expected := itemsize
	nd := len(shape)
	for i := 0; i < nd; i++ {
		k := i
		if rowMajor {
			k = nd - 1 - i
		}
		if shape[k] == 1 {
			continue
		}
		if strides[k] != expected {
			return false
		}
		expected *= shape[k]
	}
	return true
}

func validateShape(shape []int) error {
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("%w: negative extent in %v", ErrShape, shape)
		}
	}
	if _, ok := elementCount(shape); !ok {
		return fmt.Errorf("%w: element count of %v overflows", ErrShape, shape)
	}
	return nil
}
