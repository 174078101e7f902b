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
	"slices"
	"strings"
	"unsafe"
)

// Owner holds the memory a root view reads from.
type Owner interface {
	Bytes() []byte
}

type heapOwner struct {
	buf []byte
}

func (o *heapOwner) Bytes() []byte { return o.buf }

// View is a strided window onto an owner's bytes.
//
// A view is either a root, in which case Owner is set, or derived from
// another view through slicing, indexing, transposing or reshaping, in
// which case Base is set. All views in a chain share the root's bytes.
type View struct {
	dtype   DType
	shape   []int
	strides []int
	offset  int
	buf     []byte

	base  *View
	owner Owner
}

// Make returns a zeroed view backed by a private buffer.
func Make(dtype DType, shape []int, order Order) (*View, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrDType, dtype)
	}
	nbytes, err := ByteSize(shape, dtype.Size())
	if err != nil {
		return nil, err
	}
	owner := &heapOwner{buf: make([]byte, nbytes)}
	return New(owner, dtype, shape, order)
}

// FromFloat64s returns a row-major float64 view holding a copy of values.
func FromFloat64s(values []float64, shape ...int) (*View, error) {
	if shape == nil {
		shape = []int{len(values)}
	}
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if NumElements(shape) != len(values) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(values), shape)
	}
	v, err := Make(Float64, shape, RowMajor)
	if err != nil {
		return nil, err
	}
	if err := v.SetValues(values); err != nil {
		return nil, err
	}
	return v, nil
}

// New lays out a root view of shape over the start of owner's bytes using
// the canonical strides of order.
func New(owner Owner, dtype DType, shape []int, order Order) (*View, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrDType, dtype)
	}
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	strides, err := StridesFor(shape, dtype.Size(), order)
	if err != nil {
		return nil, err
	}
	return NewStrided(owner, dtype, shape, strides, 0)
}

// NewStrided returns a root view with explicit byte strides whose first
// element sits offset bytes into owner's bytes. Every element the view can
// address must lie inside the owner.
func NewStrided(owner Owner, dtype DType, shape, strides []int, offset int) (*View, error) {
	if owner == nil {
		return nil, fmt.Errorf("ndarray: nil owner")
	}
	if !dtype.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrDType, dtype)
	}
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if len(strides) != len(shape) {
		return nil, fmt.Errorf("%w: %d strides for %d axes", ErrShape, len(strides), len(shape))
	}
	buf := owner.Bytes()
	if !InBounds(shape, strides, dtype.Size(), offset, len(buf)) {
		return nil, fmt.Errorf("%w: shape %v strides %v offset %d over %d bytes",
			ErrOutOfBounds, shape, strides, offset, len(buf))
	}
	return &View{
		dtype:   dtype,
		shape:   slices.Clone(shape),
		strides: slices.Clone(strides),
		offset:  offset,
		buf:     buf,
		owner:   owner,
	}, nil
}

// InBounds reports whether a view with the given layout fits inside a
// buffer of size bytes. Negative extents never fit, nor do layouts whose
// element count or byte span overflows an int.
func InBounds(shape, strides []int, itemsize, offset, size int) bool {
	if offset < 0 || offset > size || len(strides) != len(shape) {
		return false
	}
	if validateShape(shape) != nil {
		return false
	}
	lo, hi, ok := extent(shape, strides, itemsize)
	if !ok {
		return false
	}
	return offset+lo >= 0 && hi <= size-offset
}

func (v *View) derive(shape, strides []int, offset int) *View {
	return &View{
		dtype:   v.dtype,
		shape:   shape,
		strides: strides,
		offset:  offset,
		buf:     v.buf,
		base:    v,
	}
}

func (v *View) DType() DType { return v.dtype }

// Shape returns a copy of the extents.
func (v *View) Shape() []int { return slices.Clone(v.shape) }

// Strides returns a copy of the byte strides.
func (v *View) Strides() []int { return slices.Clone(v.strides) }

func (v *View) NDim() int { return len(v.shape) }

// Len returns the number of elements.
func (v *View) Len() int { return NumElements(v.shape) }

func (v *View) ItemSize() int { return v.dtype.Size() }

// NBytes returns the packed size of the elements.
func (v *View) NBytes() int { return v.Len() * v.dtype.Size() }

// ByteOffset returns the offset of the first element in the root's bytes.
func (v *View) ByteOffset() int { return v.offset }

// Base returns the view v was derived from, or nil for a root.
func (v *View) Base() *View { return v.base }

// Owner returns the owner of a root view, or nil for a derived view.
func (v *View) Owner() Owner { return v.owner }

// Root walks Base links to the view that owns the memory.
func (v *View) Root() *View {
	r := v
	for r.base != nil {
		r = r.base
	}
	return r
}

// DataAddress returns the address of the first element.
func (v *View) DataAddress() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(v.buf))) + uintptr(v.offset)
}

// IsRowMajor reports whether the elements are packed in C order.
func (v *View) IsRowMajor() bool {
	return contiguous(v.shape, v.strides, v.dtype.Size(), true)
}

// IsColumnMajor reports whether the elements are packed in Fortran order.
func (v *View) IsColumnMajor() bool {
	return contiguous(v.shape, v.strides, v.dtype.Size(), false)
}

// Layout classifies the view, preferring RowMajor when both apply.
func (v *View) Layout() Order {
	switch {
	case v.IsRowMajor():
		return RowMajor
	case v.IsColumnMajor():
		return ColumnMajor
	}
	return Arbitrary
}

// Slice restricts axis to the elements start, start+step, ... up to but
// excluding stop. Negative steps walk backwards; use stop -1 to include
// index 0. An empty selection is written as start == stop.
func (v *View) Slice(axis, start, stop, step int) (*View, error) {
	if axis < 0 || axis >= len(v.shape) {
		return nil, fmt.Errorf("%w: axis %d of %d", ErrIndex, axis, len(v.shape))
	}
	if step == 0 {
		return nil, fmt.Errorf("%w: zero step", ErrIndex)
	}
	n := v.shape[axis]
	var length int
	switch {
	case start == stop:
		if start < 0 || start > n {
			return nil, fmt.Errorf("%w: slice %d:%d of %d", ErrIndex, start, stop, n)
		}
	case step > 0:
		if start < 0 || stop > n || start > stop {
			return nil, fmt.Errorf("%w: slice %d:%d:%d of %d", ErrIndex, start, stop, step, n)
		}
		length = (stop - start + step - 1) / step
	default:
		if stop < -1 || start > n-1 || start < stop {
			return nil, fmt.Errorf("%w: slice %d:%d:%d of %d", ErrIndex, start, stop, step, n)
		}
		length = (start - stop - step - 1) / -step
	}
	shape := slices.Clone(v.shape)
	strides := slices.Clone(v.strides)
	offset := v.offset
	if length > 0 {
		offset += start * v.strides[axis]
	}
	shape[axis] = length
	strides[axis] *= step
	return v.derive(shape, strides, offset), nil
}

// Index selects position i of axis and drops that axis.
func (v *View) Index(axis, i int) (*View, error) {
	if axis < 0 || axis >= len(v.shape) {
		return nil, fmt.Errorf("%w: axis %d of %d", ErrIndex, axis, len(v.shape))
	}
	if i < 0 || i >= v.shape[axis] {
		return nil, fmt.Errorf("%w: index %d of %d", ErrIndex, i, v.shape[axis])
	}
	shape := slices.Delete(slices.Clone(v.shape), axis, axis+1)
	strides := slices.Delete(slices.Clone(v.strides), axis, axis+1)
	return v.derive(shape, strides, v.offset+i*v.strides[axis]), nil
}

// Transpose reverses the axes.
func (v *View) Transpose() *View {
	shape := slices.Clone(v.shape)
	strides := slices.Clone(v.strides)
	slices.Reverse(shape)
	slices.Reverse(strides)
	return v.derive(shape, strides, v.offset)
}

// Reshape returns a row-major view of the same elements with a new shape.
// The view must be row-major contiguous.
func (v *View) Reshape(shape ...int) (*View, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if NumElements(shape) != v.Len() {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrShape, v.shape, shape)
	}
	if !v.IsRowMajor() {
		return nil, fmt.Errorf("%w: reshape of %v with strides %v", ErrNotContiguous, v.shape, v.strides)
	}
	return v.derive(slices.Clone(shape), RowMajorStrides(shape, v.dtype.Size()), v.offset), nil
}

func (v *View) offsetOf(idx []int) int {
	if len(idx) != len(v.shape) {
		panic(fmt.Errorf("%w: %d indices for %d axes", ErrIndex, len(idx), len(v.shape)))
	}
	off := v.offset
	for k, i := range idx {
		if i < 0 || i >= v.shape[k] {
			panic(fmt.Errorf("%w: index %d of axis %d with extent %d", ErrIndex, i, k, v.shape[k]))
		}
		off += i * v.strides[k]
	}
	return off
}

// At returns the element at idx. It panics if idx is out of range.
func (v *View) At(idx ...int) float64 {
	return v.dtype.load(v.buf[v.offsetOf(idx):])
}

// Set stores x at idx. It panics if idx is out of range.
func (v *View) Set(x float64, idx ...int) {
	v.dtype.store(v.buf[v.offsetOf(idx):], x)
}

// each calls fn with the byte offset of every element in row-major order.
func (v *View) each(fn func(off int)) {
	if v.Len() == 0 {
		return
	}
	nd := len(v.shape)
	idx := make([]int, nd)
	off := v.offset
	for {
		fn(off)
		k := nd - 1
		for ; k >= 0; k-- {
			idx[k]++
			off += v.strides[k]
			if idx[k] < v.shape[k] {
				break
			}
			off -= v.strides[k] * v.shape[k]
			idx[k] = 0
		}
		if k < 0 {
			return
		}
	}
}

// Fill stores x in every element.
func (v *View) Fill(x float64) {
	size := v.dtype.Size()
	if v.Len() > 0 && (v.IsRowMajor() || v.IsColumnMajor()) {
		// Packed views are one run of bytes: encode once and replicate.
		lo, _ := Extent(v.shape, v.strides, size)
		run := v.buf[v.offset+lo : v.offset+lo+v.NBytes()]
		v.dtype.store(run, x)
		for n := size; n < len(run); n *= 2 {
			copy(run[n:], run[:n])
		}
		return
	}
	v.each(func(off int) { v.dtype.store(v.buf[off:], x) })
}

// Values returns the elements in row-major order.
func (v *View) Values() []float64 {
	out := make([]float64, 0, v.Len())
	v.each(func(off int) { out = append(out, v.dtype.load(v.buf[off:])) })
	return out
}

// SetValues stores values in row-major order.
func (v *View) SetValues(values []float64) error {
	if len(values) != v.Len() {
		return fmt.Errorf("%w: %d values for %d elements", ErrShape, len(values), v.Len())
	}
	i := 0
	v.each(func(off int) {
		v.dtype.store(v.buf[off:], values[i])
		i++
	})
	return nil
}

// Bytes returns a packed row-major copy of the element bytes.
func (v *View) Bytes() []byte {
	size := v.dtype.Size()
	out := make([]byte, 0, v.NBytes())
	v.each(func(off int) { out = append(out, v.buf[off:off+size]...) })
	return out
}

// SetBytes copies packed row-major element bytes into the view.
func (v *View) SetBytes(b []byte) error {
	size := v.dtype.Size()
	if len(b) != v.NBytes() {
		return fmt.Errorf("%w: %d bytes for %d elements of %s", ErrShape, len(b), v.Len(), v.dtype)
	}
	i := 0
	v.each(func(off int) {
		copy(v.buf[off:off+size], b[i:i+size])
		i += size
	})
	return nil
}

// Equal reports whether o has the same dtype, shape and element values.
func (v *View) Equal(o *View) bool {
	if v.dtype != o.dtype || !slices.Equal(v.shape, o.shape) {
		return false
	}
	return slices.Equal(v.Values(), o.Values())
}

func (v *View) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%v", v.dtype, v.shape)
	sb.WriteByte(' ')
	fmt.Fprint(&sb, v.Values())
	return sb.String()
}
