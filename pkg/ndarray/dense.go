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
	"unsafe"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// Dense returns a gonum matrix sharing memory with a 2-D float64 view. The
// columns must be packed and the first element aligned to eight bytes.
// Writes through the matrix are visible through the view and vice versa.
// The matrix does not keep the view's owner alive; keep the view referenced
// for as long as the matrix is used.
func (v *View) Dense() (*mat.Dense, error) {
	if v.dtype != Float64 || len(v.shape) != 2 {
		return nil, fmt.Errorf("%w: dense needs a 2-D float64 view, have %s%v", ErrShape, v.dtype, v.shape)
	}
	rows, cols := v.shape[0], v.shape[1]
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: dense of empty view %v", ErrShape, v.shape)
	}
	const item = 8
	if cols > 1 && v.strides[1] != item {
		return nil, fmt.Errorf("%w: column stride %d", ErrNotContiguous, v.strides[1])
	}
	stride := cols
	if rows > 1 {
		if v.strides[0]%item != 0 || v.strides[0]/item < cols {
			return nil, fmt.Errorf("%w: row stride %d", ErrNotContiguous, v.strides[0])
		}
		stride = v.strides[0] / item
	}
	if v.DataAddress()%item != 0 {
		return nil, fmt.Errorf("%w: misaligned data at %#x", ErrNotContiguous, v.DataAddress())
	}
	n := (rows-1)*stride + cols
	data := unsafe.Slice((*float64)(unsafe.Pointer(&v.buf[v.offset])), n)
	var d mat.Dense
	d.SetRawMatrix(blas64.General{Rows: rows, Cols: cols, Stride: stride, Data: data})
	return &d, nil
}
