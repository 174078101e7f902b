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

package codec

import (
	"fmt"

	"github.com/srediag/sharedmem/pkg/ndarray"
	"github.com/srediag/sharedmem/pkg/shm"
)

// Kind distinguishes the two payload variants.
type Kind string

const (
	KindReference Kind = "reference"
	KindCopy      Kind = "copy"
)

// Payload is an encoded view. Exactly one of Ref and Copy is set.
type Payload struct {
	Ref  *Reference `json:"ref,omitempty"`
	Copy *Copy      `json:"copy,omitempty"`
}

// Kind reports which variant p carries.
func (p *Payload) Kind() Kind {
	if p.Ref != nil {
		return KindReference
	}
	return KindCopy
}

// Reference describes a view into a shared memory allocation.
type Reference struct {
	Handle shm.HandleRef `json:"handle"`
	Shape  []int         `json:"shape"`
	DType  ndarray.DType `json:"dtype"`
	Order  ndarray.Order `json:"order"`
	// Strides are omitted for row-major views.
	Strides []int `json:"strides,omitempty"`
	// Offset is the byte offset of the first element from the start of the
	// allocation.
	Offset int `json:"offset"`
}

// strides returns the carried strides, or the canonical strides of Order.
func (r *Reference) strides() ([]int, error) {
	if r.Strides != nil {
		if len(r.Strides) != len(r.Shape) {
			return nil, fmt.Errorf("%d strides for %d axes", len(r.Strides), len(r.Shape))
		}
		return r.Strides, nil
	}
	return ndarray.StridesFor(r.Shape, r.DType.Size(), r.Order)
}

// Copy holds the values of a view that lives in private memory.
type Copy struct {
	Shape []int         `json:"shape"`
	DType ndarray.DType `json:"dtype"`
	// Data is the element bytes in row-major order and native byte order.
	Data []byte `json:"data"`
}
