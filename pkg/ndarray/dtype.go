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
	"encoding/binary"
	"fmt"
	"math"
)

// DType is an element type.
type DType uint8

const (
	Invalid DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

var dtypeNames = [...]string{
	Invalid: "invalid",
	Bool:    "bool",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

var dtypeSizes = [...]int{
	Bool:    1,
	Int8:    1,
	Int16:   2,
	Int32:   4,
	Int64:   8,
	Uint8:   1,
	Uint16:  2,
	Uint32:  4,
	Uint64:  8,
	Float32: 4,
	Float64: 8,
}

// ParseDType parses a dtype name such as "float64".
func ParseDType(s string) (DType, error) {
	for i, name := range dtypeNames {
		if DType(i) != Invalid && name == s {
			return DType(i), nil
		}
	}
	return Invalid, fmt.Errorf("ndarray: unknown dtype %q", s)
}

// Valid reports whether d is a known element type.
func (d DType) Valid() bool {
	return d > Invalid && int(d) < len(dtypeNames)
}

// Size returns the element size in bytes.
func (d DType) Size() int {
	if !d.Valid() {
		return 0
	}
	return dtypeSizes[d]
}

func (d DType) String() string {
	if int(d) >= len(dtypeNames) {
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
	return dtypeNames[d]
}

// MarshalText implements encoding.TextMarshaler.
func (d DType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("ndarray: cannot marshal %s", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(b []byte) error {
	v, err := ParseDType(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d DType) load(b []byte) float64 {
	ne := binary.NativeEndian
	switch d {
	case Bool:
		if b[0] != 0 {
			return 1
		}
		return 0
	case Int8:
		return float64(int8(b[0]))
	case Int16:
		return float64(int16(ne.Uint16(b)))
	case Int32:
		return float64(int32(ne.Uint32(b)))
	case Int64:
		return float64(int64(ne.Uint64(b)))
	case Uint8:
		return float64(b[0])
	case Uint16:
		return float64(ne.Uint16(b))
	case Uint32:
		return float64(ne.Uint32(b))
	case Uint64:
		return float64(ne.Uint64(b))
	case Float32:
		return float64(math.Float32frombits(ne.Uint32(b)))
	case Float64:
		return math.Float64frombits(ne.Uint64(b))
	}
	panic(fmt.Sprintf("ndarray: load of %s", d))
}

func (d DType) store(b []byte, v float64) {
	ne := binary.NativeEndian
	switch d {
	case Bool:
		if v != 0 {
			b[0] = 1
		} else {
			b[0] = 0
		}
	case Int8:
		b[0] = byte(int8(v))
	case Int16:
		ne.PutUint16(b, uint16(int16(v)))
	case Int32:
		ne.PutUint32(b, uint32(int32(v)))
	case Int64:
		ne.PutUint64(b, uint64(int64(v)))
	case Uint8:
		b[0] = uint8(v)
	case Uint16:
		ne.PutUint16(b, uint16(v))
	case Uint32:
		ne.PutUint32(b, uint32(v))
	case Uint64:
		ne.PutUint64(b, uint64(v))
	case Float32:
		ne.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		ne.PutUint64(b, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("ndarray: store of %s", d))
	}
}
